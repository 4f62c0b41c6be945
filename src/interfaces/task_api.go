package interfaces

import (
	"context"

	"task-observer/src/models"
)

// -----------------------------------------------------------------------------
// ITaskAPI defines the REST task surface consumed by the reconciler.
// -----------------------------------------------------------------------------

type ITaskAPI interface {

	// ListTasks fetches the full task list (GET /tasks).
	ListTasks(ctx context.Context) ([]models.MTask, error)

	// -----------------------------------------------------------------------------

	// CreateTask creates a new task (POST /tasks) and returns the
	// server-assigned task.
	CreateTask(ctx context.Context, name, symbol string) (models.MTask, error)

	// -----------------------------------------------------------------------------

	// ApplyAction starts or stops a task (POST /tasks/{id}/{action}) and
	// returns the server's updated task state.
	ApplyAction(ctx context.Context, taskID int64, action models.MTaskAction) (models.MTask, error)
}
