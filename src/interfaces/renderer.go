package interfaces

import "task-observer/src/models"

// -----------------------------------------------------------------------------
// IRenderer is the dashboard collaborator. It consumes reconciled tasks,
// the connection state and buffered series snapshots; the actual rendering
// is outside this module's contract.
// -----------------------------------------------------------------------------

type IRenderer interface {

	// Render draws one snapshot. The series map holds copies, never live
	// buffer views.
	Render(tasks []models.MTask, state models.MConnectionState, series map[int64][]models.MChartPoint)
}
