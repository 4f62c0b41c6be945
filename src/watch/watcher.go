package watch

import (
	"context"
	"sync"
	"time"

	"task-observer/src/buffers"
	"task-observer/src/channel"
	"task-observer/src/interfaces"
	"task-observer/src/logger"
	"task-observer/src/models"
	"task-observer/src/reconcile"
	"task-observer/src/rooms"
)

// -----------------------------------------------------------------------------
// Watcher wires the reconciler, the room manager and the renderer into
// one loop: REST refreshes drive the task list, list changes drive room
// membership, pushed quotes fill the buffers, and the renderer consumes
// snapshots. It owns connect/teardown of the shared channel; nothing else
// may call Connect or Disconnect.
// -----------------------------------------------------------------------------

type Watcher struct {
	cfg      models.MWatchConfig
	conn     *channel.Connection
	rec      *reconcile.Reconciler
	rooms    *rooms.Manager
	buffers  *buffers.SampleBuffers
	renderer interfaces.IRenderer
	Logger   *logger.Logger

	// Task ids currently handed to the room manager. Change notifications
	// fire on whichever goroutine mutated the reconciler, so access is
	// guarded.
	knownMu sync.Mutex
	known   map[int64]struct{}
}

// -----------------------------------------------------------------------------

func NewWatcher(
	cfg models.MWatchConfig,
	conn *channel.Connection,
	rec *reconcile.Reconciler,
	roomMgr *rooms.Manager,
	bufs *buffers.SampleBuffers,
	renderer interfaces.IRenderer,
	l *logger.Logger,
) *Watcher {
	return &Watcher{
		cfg:      cfg,
		conn:     conn,
		rec:      rec,
		rooms:    roomMgr,
		buffers:  bufs,
		renderer: renderer,
		Logger:   l,
		known:    make(map[int64]struct{}),
	}
}

// -----------------------------------------------------------------------------

// Run drives the watch loop until ctx is cancelled, then tears everything
// down: rooms left, listeners detached, channel closed.
func (w *Watcher) Run(ctx context.Context) error {
	offChange := w.rec.OnChange(w.syncRooms)
	defer offChange()

	w.conn.Connect()
	defer func() {
		w.rooms.Shutdown()
		w.conn.Shutdown()
		w.Logger.Info("Watcher stopped")
	}()

	if err := w.rec.Refresh(ctx); err != nil {
		// First load failed: nothing to show yet, keep going and let the
		// periodic refresh recover. With stale data present this would be
		// a banner, not a blank screen.
		w.Logger.Error("Initial task list load failed: %v", err)
	}

	refreshTicker := time.NewTicker(time.Duration(w.cfg.RefreshIntervalSec) * time.Second)
	defer refreshTicker.Stop()
	renderTicker := time.NewTicker(time.Duration(w.cfg.RenderIntervalSec) * time.Second)
	defer renderTicker.Stop()

	for {
		select {
		case <-refreshTicker.C:
			if err := w.rec.Refresh(ctx); err != nil {
				if w.rec.HasLoaded() {
					w.Logger.Warning("Task list refresh failed, keeping stale data: %v", err)
				} else {
					w.Logger.Error("Task list refresh failed: %v", err)
				}
			}

		case <-renderTicker.C:
			w.renderer.Render(w.rec.Tasks(), w.conn.State(), w.buffers.AllSeries())

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// -----------------------------------------------------------------------------

// syncRooms hands the reconciled list to the room manager: every listed
// task stays observed with its current status, vanished tasks are
// forgotten (which also resets their chart buffers).
func (w *Watcher) syncRooms(tasks []models.MTask) {
	seen := make(map[int64]struct{}, len(tasks))
	for _, task := range tasks {
		seen[task.ID] = struct{}{}
		w.rooms.Observe(task)
	}

	w.knownMu.Lock()
	var gone []int64
	for id := range w.known {
		if _, ok := seen[id]; !ok {
			gone = append(gone, id)
		}
	}
	w.known = seen
	w.knownMu.Unlock()

	for _, id := range gone {
		w.rooms.Forget(id)
	}
}
