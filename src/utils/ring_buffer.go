package utils

import (
	"task-observer/src/models"
)

// -----------------------------------------------------------------------------
// RingBuffer is a fixed-size circular buffer of chart points.
// True ring buffer - no resizing, strict FIFO eviction by age.
// -----------------------------------------------------------------------------

type RingBuffer struct {
	// Data storage as 2D slice (rows x features)
	data     [][models.RB_NUM_FEATURES]float64
	capacity int
	index    int // Next write position
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewRingBuffer creates a new buffer with fixed capacity
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 180 // Default chart window
	}

	return &RingBuffer{
		data:     make([][models.RB_NUM_FEATURES]float64, capacity),
		capacity: capacity,
		index:    0,
		size:     0,
	}
}

// -----------------------------------------------------------------------------

// Append adds a chart point. When the buffer is full the oldest entry is
// overwritten before the newest lands.
func (rb *RingBuffer) Append(point models.MChartPoint) {
	rb.data[rb.index] = [models.RB_NUM_FEATURES]float64{
		float64(point.Timestamp),
		point.Price,
	}

	rb.index = (rb.index + 1) % rb.capacity

	// Update size (never exceeds capacity)
	if rb.size < rb.capacity {
		rb.size++
	}
}

// -----------------------------------------------------------------------------

// GetLatest returns the n latest points in insertion order
func (rb *RingBuffer) GetLatest(n int) []models.MChartPoint {
	if rb.size == 0 || n <= 0 {
		return []models.MChartPoint{}
	}

	count := n
	if n > rb.size {
		count = rb.size
	}

	result := make([]models.MChartPoint, count)

	// Latest data ends at index-1
	startIdx := (rb.index - count + rb.capacity) % rb.capacity

	for i := 0; i < count; i++ {
		idx := (startIdx + i) % rb.capacity
		row := rb.data[idx]

		result[i] = models.MChartPoint{
			Timestamp: int64(row[models.RB_IDX_TIMESTAMP]),
			Price:     row[models.RB_IDX_PRICE],
		}
	}

	return result
}

// -----------------------------------------------------------------------------

// GetAll returns all data in insertion order (oldest to newest).
// The result is a fresh copy; mutating it never touches the buffer.
func (rb *RingBuffer) GetAll() []models.MChartPoint {
	if rb.size == 0 {
		return []models.MChartPoint{}
	}

	result := make([]models.MChartPoint, rb.size)

	// Oldest element position
	var startIdx int
	if rb.size == rb.capacity {
		// Buffer is full, oldest is at current index (wrap-around)
		startIdx = rb.index
	} else {
		startIdx = 0
	}

	for i := 0; i < rb.size; i++ {
		idx := (startIdx + i) % rb.capacity
		row := rb.data[idx]

		result[i] = models.MChartPoint{
			Timestamp: int64(row[models.RB_IDX_TIMESTAMP]),
			Price:     row[models.RB_IDX_PRICE],
		}
	}

	return result
}

// -----------------------------------------------------------------------------

// Size returns current number of elements
func (rb *RingBuffer) Size() int {
	return rb.size
}

// -----------------------------------------------------------------------------

// Capacity returns buffer capacity (fixed)
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}

// -----------------------------------------------------------------------------

// IsFull returns whether buffer is full
func (rb *RingBuffer) IsFull() bool {
	return rb.size == rb.capacity
}

// -----------------------------------------------------------------------------

// Clear resets the buffer
func (rb *RingBuffer) Clear() {
	rb.index = 0
	rb.size = 0
}
