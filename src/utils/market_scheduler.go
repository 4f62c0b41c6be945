package utils

import (
	"sync"
	"time"

	"task-observer/src/logger"
)

// MarketScheduler tracks one calendar per instrument symbol so the quote
// feed only ticks while a symbol's market is open.
type MarketScheduler struct {
	Calendars map[string]*TradingCalendar
	Logger    *logger.Logger
	mu        sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(l *logger.Logger) *MarketScheduler {
	return &MarketScheduler{
		Calendars: make(map[string]*TradingCalendar),
		Logger:    l,
	}
}

// -----------------------------------------------------------------------------

// Track registers a symbol. Re-tracking an already known symbol is a no-op.
func (ms *MarketScheduler) Track(symbol string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.Calendars[symbol]; ok {
		return
	}
	ms.Calendars[symbol] = GetCalendar(symbol)
}

// -----------------------------------------------------------------------------

// IsOpen reports whether the market for symbol is open at the given time.
// Untracked symbols count as open so a missing calendar never silences a feed.
func (ms *MarketScheduler) IsOpen(symbol string, at time.Time) bool {
	ms.mu.RLock()
	cal, ok := ms.Calendars[symbol]
	ms.mu.RUnlock()

	if !ok {
		return true
	}
	return cal.IsOpenOnMinute(at)
}

// -----------------------------------------------------------------------------

// AnyMarketOpen checks if ANY tracked market is open at the given time.
// With nothing tracked it reports open, consistent with IsOpen for
// untracked symbols.
func (ms *MarketScheduler) AnyMarketOpen(at time.Time) bool {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if len(ms.Calendars) == 0 {
		return true
	}

	for _, cal := range ms.Calendars {
		if cal.IsOpenOnMinute(at) {
			return true
		}
	}
	return false
}
