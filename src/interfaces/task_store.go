package interfaces

import "task-observer/src/models"

// -----------------------------------------------------------------------------
// ITaskStore defines the contract for the simulator's task storage.
// -----------------------------------------------------------------------------

type ITaskStore interface {

	// Initialize sets up the schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// ListTasks returns all tasks sorted by descending id.
	ListTasks() ([]models.MTask, error)

	// -----------------------------------------------------------------------------

	// GetTask returns one task by id.
	GetTask(id int64) (models.MTask, error)

	// -----------------------------------------------------------------------------

	// CreateTask inserts a new PENDING task and returns it with the
	// assigned id.
	CreateTask(name, symbol string) (models.MTask, error)

	// -----------------------------------------------------------------------------

	// UpdateStatus sets a task's status and returns the updated task.
	UpdateStatus(id int64, status models.MTaskStatus) (models.MTask, error)

	// -----------------------------------------------------------------------------

	// Close the underlying connection
	Close() error
}
