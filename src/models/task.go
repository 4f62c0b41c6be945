package models

import "time"

// -----------------------------------------------------------------------------
// Task Model
// -----------------------------------------------------------------------------

// MTaskStatus is the lifecycle state of a trading task. The server is the
// source of truth; the client never invents a transition.
type MTaskStatus string

const (
	TaskPending MTaskStatus = "PENDING"
	TaskRunning MTaskStatus = "RUNNING"
	TaskStopped MTaskStatus = "STOPPED"
	TaskError   MTaskStatus = "ERROR"
)

// -----------------------------------------------------------------------------

// MTask represents one automated-trading task as returned by the server.
type MTask struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Symbol    string      `json:"symbol"`
	Status    MTaskStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt *time.Time  `json:"updated_at,omitempty"`
}

// -----------------------------------------------------------------------------

// MTaskAction is a start/stop command applied to an existing task.
type MTaskAction string

const (
	ActionStart MTaskAction = "start"
	ActionStop  MTaskAction = "stop"
)

// -----------------------------------------------------------------------------

// MCreateTaskRequest is the POST /tasks body.
type MCreateTaskRequest struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}
