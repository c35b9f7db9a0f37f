package cube

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RebuildStatus is the lifecycle state of a tracked cube rebuild.
type RebuildStatus string

const (
	RebuildRunning   RebuildStatus = "running"
	RebuildSucceeded RebuildStatus = "succeeded"
	RebuildFailed    RebuildStatus = "failed"
)

// RebuildHandle tracks one asynchronous cube rebuild. Callers can poll
// Status or block on Wait.
type RebuildHandle struct {
	DatasetID string
	StartedAt time.Time

	mu         sync.Mutex
	status     RebuildStatus
	err        error
	tables     *Tables
	finishedAt time.Time
	done       chan struct{}
}

// Status returns the rebuild's current state and, once finished, its error.
func (h *RebuildHandle) Status() (RebuildStatus, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status, h.err
}

// Tables returns the assembled table names once the rebuild succeeded.
func (h *RebuildHandle) Tables() *Tables {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tables
}

// FinishedAt returns when the rebuild completed, zero while running.
func (h *RebuildHandle) FinishedAt() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.finishedAt
}

// Wait blocks until the rebuild finishes or ctx is cancelled. The rebuild
// itself keeps running on cancellation; only the wait is abandoned.
func (h *RebuildHandle) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		_, err := h.Status()
		return err
	}
}

func (h *RebuildHandle) finish(tables *Tables, err error, now time.Time) {
	h.mu.Lock()
	if err != nil {
		h.status = RebuildFailed
		h.err = err
	} else {
		h.status = RebuildSucceeded
		h.tables = tables
	}
	h.finishedAt = now
	h.mu.Unlock()
	close(h.done)
}

// Tracker runs cube rebuilds in the background, one at a time per dataset.
// Requesting a rebuild while one is already running returns the running
// handle instead of starting a second.
type Tracker struct {
	assembler *Assembler
	clock     clockwork.Clock
	logger    *slog.Logger

	mu     sync.Mutex
	active map[string]*RebuildHandle
}

func NewTracker(assembler *Assembler, clock clockwork.Clock, logger *slog.Logger) *Tracker {
	return &Tracker{
		assembler: assembler,
		clock:     clock,
		logger:    logger.With("component", "cube_tracker"),
		active:    make(map[string]*RebuildHandle),
	}
}

// Rebuild starts an asynchronous cube rebuild for a dataset. The work
// outlives the caller's request context.
func (t *Tracker) Rebuild(ctx context.Context, datasetID string) *RebuildHandle {
	t.mu.Lock()
	if h, ok := t.active[datasetID]; ok {
		t.mu.Unlock()
		return h
	}
	h := &RebuildHandle{
		DatasetID: datasetID,
		StartedAt: t.clock.Now(),
		status:    RebuildRunning,
		done:      make(chan struct{}),
	}
	t.active[datasetID] = h
	t.mu.Unlock()

	go func() {
		tables, err := t.assembler.Assemble(context.WithoutCancel(ctx), datasetID)

		t.mu.Lock()
		delete(t.active, datasetID)
		t.mu.Unlock()

		h.finish(tables, err, t.clock.Now())
		if err != nil {
			t.logger.Error("cube rebuild failed", "dataset_id", datasetID, "error", err)
			return
		}
		t.logger.Info("cube rebuild finished",
			"dataset_id", datasetID, "took", t.clock.Since(h.StartedAt))
	}()
	return h
}

// Running reports whether a rebuild is in flight for the dataset.
func (t *Tracker) Running(datasetID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[datasetID]
	return ok
}
