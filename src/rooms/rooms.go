package rooms

import (
	"encoding/json"
	"sync"

	"task-observer/src/buffers"
	"task-observer/src/interfaces"
	"task-observer/src/logger"
	"task-observer/src/models"
)

// -----------------------------------------------------------------------------
// Manager maps each observed, RUNNING task to exactly one server-side
// room. It joins when a task becomes running-and-observed while the
// channel is connected, leaves when any of those conditions stops
// holding, and re-joins from scratch after every reconnect: server-side
// membership is never assumed to survive a disconnect.
//
// The manager performs no reconciliation; it only reacts to the status
// the reconciler tells it about.
// -----------------------------------------------------------------------------

type subscription struct {
	taskID  int64
	running bool
	joined  bool
}

type Manager struct {
	conn    interfaces.IConnection
	buffers *buffers.SampleBuffers
	Logger  *logger.Logger

	mu   sync.Mutex
	subs map[int64]*subscription

	offQuote func()
	offState func()
}

// -----------------------------------------------------------------------------

func NewManager(conn interfaces.IConnection, bufs *buffers.SampleBuffers, l *logger.Logger) *Manager {
	m := &Manager{
		conn:    conn,
		buffers: bufs,
		Logger:  l,
		subs:    make(map[int64]*subscription),
	}

	// One handler for the whole interest set; per-task filtering happens
	// here so a stale or unmatched tick can never mutate a buffer.
	m.offQuote = conn.OnEvent(models.EventQuoteUpdate, m.handleQuote)
	m.offState = conn.OnStateChange(m.handleStateChange)

	return m
}

// -----------------------------------------------------------------------------

// Observe adds a task to the interest set, or updates its known status.
// Joins or leaves the task's room as the three conditions (running,
// observed, connected) change.
func (m *Manager) Observe(task models.MTask) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[task.ID]
	if !ok {
		sub = &subscription{taskID: task.ID}
		m.subs[task.ID] = sub
	}
	sub.running = task.Status == models.TaskRunning

	m.evaluate(sub)
}

// -----------------------------------------------------------------------------

// Forget removes a task from the interest set, leaving its room
// best-effort and resetting its display buffer so a later occupant of the
// same chart slot starts clean.
func (m *Manager) Forget(taskID int64) {
	m.mu.Lock()
	sub, ok := m.subs[taskID]
	if !ok {
		m.mu.Unlock()
		return
	}
	joined := sub.joined
	delete(m.subs, taskID)
	m.mu.Unlock()

	if joined {
		m.conn.Send(models.EventLeaveTaskRoom, models.MRoomRequest{TaskID: taskID})
	}
	m.buffers.Reset(taskID)
}

// -----------------------------------------------------------------------------

// IsJoined reports whether the manager currently holds a room membership
// for the task.
func (m *Manager) IsJoined(taskID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[taskID]
	return ok && sub.joined
}

// -----------------------------------------------------------------------------

// Shutdown leaves every joined room and detaches the channel listeners.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	var joined []int64
	for id, sub := range m.subs {
		if sub.joined {
			joined = append(joined, id)
			sub.joined = false
		}
	}
	m.subs = make(map[int64]*subscription)
	m.mu.Unlock()

	for _, id := range joined {
		m.conn.Send(models.EventLeaveTaskRoom, models.MRoomRequest{TaskID: id})
	}

	m.offQuote()
	m.offState()
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

// evaluate reconciles one subscription against the join invariant.
// Caller holds m.mu; join/leave for a given task are therefore serialized
// relative to each other.
func (m *Manager) evaluate(sub *subscription) {
	connected := m.conn.State().Phase == models.PhaseConnected

	switch {
	case sub.running && connected && !sub.joined:
		sub.joined = true
		m.conn.Send(models.EventJoinTaskRoom, models.MRoomRequest{TaskID: sub.taskID})
		m.Logger.Debug("Joined room for task %d", sub.taskID)

	case !sub.running && sub.joined:
		sub.joined = false
		// Best-effort: no error surfaced if the channel is already down
		m.conn.Send(models.EventLeaveTaskRoom, models.MRoomRequest{TaskID: sub.taskID})
		m.Logger.Debug("Left room for task %d", sub.taskID)
	}
}

// -----------------------------------------------------------------------------

func (m *Manager) handleQuote(data json.RawMessage) {
	var sample models.MQuoteSample
	if err := json.Unmarshal(data, &sample); err != nil {
		m.Logger.Warning("Malformed quote_update: %v", err)
		return
	}

	m.mu.Lock()
	sub, ok := m.subs[sample.TaskID]
	accept := ok && sub.joined
	m.mu.Unlock()

	if !accept {
		// Unmatched task id: dropped with no buffer mutation
		m.Logger.Debug("Dropping quote for unsubscribed task %d", sample.TaskID)
		return
	}

	m.buffers.Append(sample.TaskID, sample)
}

// -----------------------------------------------------------------------------

func (m *Manager) handleStateChange(state models.MConnectionState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch state.Phase {
	case models.PhaseConnected:
		// Memberships never survive a disconnect; re-join everything that
		// should be live before accepting its ticks again
		for _, sub := range m.subs {
			if sub.running && !sub.joined {
				sub.joined = true
				m.conn.Send(models.EventJoinTaskRoom, models.MRoomRequest{TaskID: sub.taskID})
				m.Logger.Debug("Re-joined room for task %d", sub.taskID)
			}
		}

	default:
		// Channel down: memberships are gone server-side, mark them so
		for _, sub := range m.subs {
			sub.joined = false
		}
	}
}
