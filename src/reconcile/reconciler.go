package reconcile

import (
	"context"
	"sort"
	"strings"
	"sync"

	"task-observer/src/helpers"
	"task-observer/src/interfaces"
	"task-observer/src/logger"
	"task-observer/src/models"
)

// -----------------------------------------------------------------------------
// Reconciler maintains the canonical in-memory task list. Every mutation
// comes from applying a server response to a create/start/stop call or
// from a full list refresh; pushed events never touch task status.
// -----------------------------------------------------------------------------

type Reconciler struct {
	api    interfaces.ITaskAPI
	Logger *logger.Logger

	mu     sync.RWMutex
	tasks  []models.MTask
	loaded bool // at least one refresh succeeded

	listeners map[int]func(tasks []models.MTask)
	nextID    int
}

// -----------------------------------------------------------------------------

func NewReconciler(api interfaces.ITaskAPI, l *logger.Logger) *Reconciler {
	return &Reconciler{
		api:       api,
		Logger:    l,
		listeners: make(map[int]func([]models.MTask)),
	}
}

// -----------------------------------------------------------------------------

// Refresh fetches the full task list and replaces the local one. On
// failure the previous list is kept untouched and the error is surfaced
// to the caller, never retried here.
func (r *Reconciler) Refresh(ctx context.Context) error {
	tasks, err := r.api.ListTasks(ctx)
	if err != nil {
		r.Logger.Warning("Task list refresh failed: %v", err)
		return err
	}

	sortTasks(tasks)

	r.mu.Lock()
	r.tasks = tasks
	r.loaded = true
	r.mu.Unlock()

	r.notify()
	return nil
}

// -----------------------------------------------------------------------------

// HasLoaded reports whether any refresh ever succeeded. Callers use it to
// choose between a full-screen error and a stale-data banner.
func (r *Reconciler) HasLoaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// -----------------------------------------------------------------------------

// Tasks returns a copy of the current list, sorted by descending id.
func (r *Reconciler) Tasks() []models.MTask {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.MTask, len(r.tasks))
	copy(out, r.tasks)
	return out
}

// -----------------------------------------------------------------------------

// Task returns one task by id.
func (r *Reconciler) Task(id int64) (models.MTask, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return models.MTask{}, false
}

// -----------------------------------------------------------------------------

// Create validates the inputs, sends the create request and prepends the
// returned task. Validation happens before any network call.
func (r *Reconciler) Create(ctx context.Context, name, symbol string) (models.MTask, error) {
	name = strings.TrimSpace(name)
	symbol = strings.TrimSpace(symbol)

	if name == "" {
		return models.MTask{}, helpers.NewValidationError("task name is required")
	}
	if symbol == "" {
		return models.MTask{}, helpers.NewValidationError("instrument symbol is required")
	}

	task, err := r.api.CreateTask(ctx, name, symbol)
	if err != nil {
		return models.MTask{}, err
	}

	r.mu.Lock()
	r.tasks = append(r.tasks, task)
	sortTasks(r.tasks)
	r.mu.Unlock()

	r.notify()
	return task, nil
}

// -----------------------------------------------------------------------------

// ApplyAction sends a start/stop command. No optimistic transition: the
// local entry changes only when the server's response arrives, and the
// server's status is ground truth. Failures leave the task untouched and
// never affect other tasks. Two racing actions on the same id are
// last-response-wins.
func (r *Reconciler) ApplyAction(ctx context.Context, taskID int64, action models.MTaskAction) (models.MTask, error) {
	updated, err := r.api.ApplyAction(ctx, taskID, action)
	if err != nil {
		r.Logger.Warning("Action %s on task %d failed: %v", action, taskID, err)
		return models.MTask{}, err
	}

	r.mu.Lock()
	replaced := false
	for i := range r.tasks {
		if r.tasks[i].ID == updated.ID {
			r.tasks[i] = updated
			replaced = true
			break
		}
	}
	if !replaced {
		// Response for a task the list no longer holds; a refresh will
		// restore consistency if it still exists server-side
		r.Logger.Debug("Discarding %s response for unknown task %d", action, updated.ID)
		r.mu.Unlock()
		return updated, nil
	}
	r.mu.Unlock()

	r.notify()
	return updated, nil
}

// -----------------------------------------------------------------------------

// OnChange registers a listener invoked with a fresh copy of the list
// after every successful mutation. The returned function unregisters it.
func (r *Reconciler) OnChange(fn func(tasks []models.MTask)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
	}
}

// -----------------------------------------------------------------------------

func (r *Reconciler) notify() {
	r.mu.RLock()
	snapshot := make([]models.MTask, len(r.tasks))
	copy(snapshot, r.tasks)
	fns := make([]func([]models.MTask), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.RUnlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

// -----------------------------------------------------------------------------

// sortTasks orders by descending id, most recent first. Display ordering
// only, not a correctness requirement.
func sortTasks(tasks []models.MTask) {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].ID > tasks[j].ID
	})
}
