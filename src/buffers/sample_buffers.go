package buffers

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"task-observer/src/logger"
	"task-observer/src/models"
	"task-observer/src/utils"
)

// -----------------------------------------------------------------------------
// SampleBuffers converts the unbounded quote stream into bounded,
// renderable per-task series. One fixed-capacity ring per task id.
// -----------------------------------------------------------------------------

type SampleBuffers struct {
	streams  map[int64]*utils.RingBuffer
	capacity int
	Logger   *logger.Logger
	mu       sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewSampleBuffers(capacity int, l *logger.Logger) *SampleBuffers {
	return &SampleBuffers{
		streams:  make(map[int64]*utils.RingBuffer),
		capacity: capacity,
		Logger:   l,
	}
}

// -----------------------------------------------------------------------------

// Append adds a sample to the task's buffer. Samples with a missing or
// not-a-number price, or an unparsable timestamp, are rejected with no
// effect. Returns true when the point was stored.
func (sb *SampleBuffers) Append(taskID int64, sample models.MQuoteSample) bool {
	if sample.LastPrice == nil || math.IsNaN(*sample.LastPrice) || math.IsInf(*sample.LastPrice, 0) {
		sb.Logger.Debug("Dropping sample for task %d: missing or invalid price", taskID)
		return false
	}

	ts, err := ParseSampleTime(sample.Datetime)
	if err != nil {
		sb.Logger.Debug("Dropping sample for task %d: %v", taskID, err)
		return false
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()

	if _, ok := sb.streams[taskID]; !ok {
		sb.streams[taskID] = utils.NewRingBuffer(sb.capacity)
	}

	sb.streams[taskID].Append(models.MChartPoint{
		Timestamp: ts,
		Price:     *sample.LastPrice,
	})
	return true
}

// -----------------------------------------------------------------------------

// Reset clears the series for a task. Must be called whenever a different
// task id begins occupying the same chart slot, so stale data never bleeds
// between tasks.
func (sb *SampleBuffers) Reset(taskID int64) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if buf, ok := sb.streams[taskID]; ok {
		buf.Clear()
	}
}

// -----------------------------------------------------------------------------

// Series returns a copy of the task's current series, oldest first.
// Never a live view: renderers cannot observe mid-append tearing.
func (sb *SampleBuffers) Series(taskID int64) []models.MChartPoint {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	buf, ok := sb.streams[taskID]
	if !ok {
		return []models.MChartPoint{}
	}
	return buf.GetAll()
}

// -----------------------------------------------------------------------------

// AllSeries returns copies of every non-empty series keyed by task id.
func (sb *SampleBuffers) AllSeries() map[int64][]models.MChartPoint {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	result := make(map[int64][]models.MChartPoint, len(sb.streams))
	for id, buf := range sb.streams {
		if buf.Size() == 0 {
			continue
		}
		result[id] = buf.GetAll()
	}
	return result
}

// -----------------------------------------------------------------------------

// Len returns the number of buffered points for a task.
func (sb *SampleBuffers) Len(taskID int64) int {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	buf, ok := sb.streams[taskID]
	if !ok {
		return 0
	}
	return buf.Size()
}

// -----------------------------------------------------------------------------

// ParseSampleTime parses a sample's datetime. Accepts RFC3339, the plain
// "2006-01-02 15:04:05" form and unix seconds. Returns unix seconds.
func ParseSampleTime(raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("empty timestamp")
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.Unix(), nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", raw); err == nil {
		return t.Unix(), nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}

	return 0, fmt.Errorf("unparsable timestamp %q", raw)
}
