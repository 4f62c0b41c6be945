package feed

import (
	"sync"
	"testing"
	"time"

	"task-observer/src/buffers"
	"task-observer/src/logger"
	"task-observer/src/models"
)

// -----------------------------------------------------------------------------

type fakeStore struct {
	tasks []models.MTask
}

func (s *fakeStore) Initialize() error                  { return nil }
func (s *fakeStore) ListTasks() ([]models.MTask, error) { return s.tasks, nil }
func (s *fakeStore) GetTask(id int64) (models.MTask, error) {
	return models.MTask{}, nil
}
func (s *fakeStore) CreateTask(name, symbol string) (models.MTask, error) {
	return models.MTask{}, nil
}
func (s *fakeStore) UpdateStatus(id int64, status models.MTaskStatus) (models.MTask, error) {
	return models.MTask{}, nil
}
func (s *fakeStore) Close() error { return nil }

type capture struct {
	mu      sync.Mutex
	samples []models.MQuoteSample
}

func (c *capture) publish(sample models.MQuoteSample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, sample)
}

func (c *capture) all() []models.MQuoteSample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.MQuoteSample(nil), c.samples...)
}

// -----------------------------------------------------------------------------

func TestTickPublishesOnlyRunningTasks(t *testing.T) {
	store := &fakeStore{tasks: []models.MTask{
		{ID: 1, Symbol: "AAPL", Status: models.TaskRunning},
		{ID: 2, Symbol: "MSFT", Status: models.TaskPending},
		{ID: 3, Symbol: "NVDA", Status: models.TaskStopped},
	}}

	cfg := &models.MConfig{}
	cap := &capture{}
	f := NewQuoteFeed(cfg, store, cap.publish, logger.NewLogger("ERROR", "test"))

	f.tick(time.Now().UTC())

	samples := cap.all()
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(samples))
	}
	if samples[0].TaskID != 1 {
		t.Errorf("expected sample for task 1, got %d", samples[0].TaskID)
	}
}

func TestSamplesAreWellFormed(t *testing.T) {
	store := &fakeStore{tasks: []models.MTask{
		{ID: 5, Symbol: "AAPL", Status: models.TaskRunning},
	}}

	cfg := &models.MConfig{}
	cap := &capture{}
	f := NewQuoteFeed(cfg, store, cap.publish, logger.NewLogger("ERROR", "test"))

	f.tick(time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC))

	samples := cap.all()
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(samples))
	}

	s := samples[0]
	if s.LastPrice == nil || *s.LastPrice <= 0 {
		t.Fatal("expected a positive last price")
	}
	if s.BidPrice1 == nil || s.AskPrice1 == nil || *s.BidPrice1 >= *s.AskPrice1 {
		t.Error("expected bid below ask")
	}
	if _, err := buffers.ParseSampleTime(s.Datetime); err != nil {
		t.Errorf("datetime %q must be parseable by the client: %v", s.Datetime, err)
	}
}

func TestTickSkippedWhileMarketsClosed(t *testing.T) {
	store := &fakeStore{tasks: []models.MTask{
		{ID: 1, Symbol: "AAPL", Status: models.TaskRunning},
	}}

	cfg := &models.MConfig{}
	cfg.Sim.RespectMarketHours = true
	cap := &capture{}
	f := NewQuoteFeed(cfg, store, cap.publish, logger.NewLogger("ERROR", "test"))

	// Sunday: NYSE closed, nothing may be published
	f.tick(time.Date(2026, 1, 4, 15, 0, 0, 0, time.UTC))
	if got := len(cap.all()); got != 0 {
		t.Fatalf("expected no samples on a closed market, got %d", got)
	}

	// Weekday session minute: the same task ticks
	f.tick(time.Date(2026, 1, 7, 15, 0, 0, 0, time.UTC))
	if got := len(cap.all()); got != 1 {
		t.Fatalf("expected 1 sample during the session, got %d", got)
	}
}

func TestWalkIsSharedPerSymbol(t *testing.T) {
	store := &fakeStore{tasks: []models.MTask{
		{ID: 1, Symbol: "AAPL", Status: models.TaskRunning},
		{ID: 2, Symbol: "AAPL", Status: models.TaskRunning},
	}}

	cfg := &models.MConfig{}
	cap := &capture{}
	f := NewQuoteFeed(cfg, store, cap.publish, logger.NewLogger("ERROR", "test"))

	f.tick(time.Now().UTC())

	samples := cap.all()
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}

	// Two ticks of the same walk: prices stay within the step bound
	ratio := *samples[1].LastPrice / *samples[0].LastPrice
	if ratio < 0.99 || ratio > 1.01 {
		t.Errorf("same-symbol prices diverged too far: ratio %f", ratio)
	}
}
