package feed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"task-observer/src/interfaces"
	"task-observer/src/logger"
	"task-observer/src/models"
	"task-observer/src/utils"
)

// -----------------------------------------------------------------------------
// QuoteFeed drives the simulator's push side: every tick it walks the
// running tasks and publishes one synthetic quote per task. Prices follow
// a per-symbol random walk so charts look plausible across ticks and
// across tasks sharing a symbol.
// -----------------------------------------------------------------------------

type PublishFunc func(models.MQuoteSample)

type QuoteFeed struct {
	Config    *models.MConfig
	Store     interfaces.ITaskStore
	Publish   PublishFunc
	Scheduler *utils.MarketScheduler
	Logger    *logger.Logger

	mu     sync.Mutex
	prices map[string]float64
	rng    *rand.Rand
}

// -----------------------------------------------------------------------------

func NewQuoteFeed(cfg *models.MConfig, store interfaces.ITaskStore, publish PublishFunc, l *logger.Logger) *QuoteFeed {
	return &QuoteFeed{
		Config:    cfg,
		Store:     store,
		Publish:   publish,
		Scheduler: utils.NewMarketScheduler(l),
		Logger:    l,
		prices:    make(map[string]float64),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// -----------------------------------------------------------------------------

// Run emits quotes until ctx is cancelled.
func (f *QuoteFeed) Run(ctx context.Context) {
	interval := time.Duration(f.Config.Sim.TickIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	f.Logger.Info("Quote feed started (interval %s)", interval)

	for {
		select {
		case <-ticker.C:
			f.tick(time.Now().UTC())
		case <-ctx.Done():
			f.Logger.Info("Quote feed stopped")
			return
		}
	}
}

// -----------------------------------------------------------------------------

func (f *QuoteFeed) tick(now time.Time) {
	tasks, err := f.Store.ListTasks()
	if err != nil {
		f.Logger.Warning("Feed could not list tasks: %v", err)
		return
	}

	if f.Config.Sim.RespectMarketHours {
		for _, task := range tasks {
			if task.Status == models.TaskRunning {
				f.Scheduler.Track(task.Symbol)
			}
		}
		// Every tracked market closed: skip the whole tick
		if !f.Scheduler.AnyMarketOpen(now) {
			f.Logger.Debug("All tracked markets closed, skipping tick")
			return
		}
	}

	for _, task := range tasks {
		if task.Status != models.TaskRunning {
			continue
		}

		if f.Config.Sim.RespectMarketHours && !f.Scheduler.IsOpen(task.Symbol, now) {
			continue
		}

		f.Publish(f.nextSample(task, now))
	}
}

// -----------------------------------------------------------------------------

// nextSample advances the symbol's random walk and packages a quote for
// the task. Bid and ask straddle the last price by a fixed half-spread.
func (f *QuoteFeed) nextSample(task models.MTask, now time.Time) models.MQuoteSample {
	f.mu.Lock()
	price, ok := f.prices[task.Symbol]
	if !ok {
		// Seed each symbol somewhere in a plausible equity range
		price = 50 + f.rng.Float64()*450
	}

	// Drift-free walk, ~0.1% step
	price *= 1 + (f.rng.Float64()-0.5)*0.002
	if price < 1 {
		price = 1
	}
	f.prices[task.Symbol] = price

	volume := 100 + f.rng.Float64()*10000
	f.mu.Unlock()

	spread := price * 0.0005
	bid := price - spread
	ask := price + spread

	return models.MQuoteSample{
		TaskID:    task.ID,
		Symbol:    task.Symbol,
		LastPrice: &price,
		BidPrice1: &bid,
		AskPrice1: &ask,
		Volume:    &volume,
		Datetime:  now.Format("2006-01-02 15:04:05"),
	}
}
