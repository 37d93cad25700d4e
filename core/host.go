package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"ratemint/core/events"
	corestate "ratemint/core/state"
	"ratemint/core/types"
	"ratemint/observability/logging"
	"ratemint/storage"
)

// Frame is the scope of a single host call: a write overlay, the state
// manager reading through it and the recorder collecting its events.
type Frame struct {
	overlay  *corestate.Overlay
	manager  *corestate.Manager
	recorder *events.Recorder
}

func newFrame(overlay *corestate.Overlay) *Frame {
	return &Frame{
		overlay:  overlay,
		manager:  corestate.NewManager(overlay),
		recorder: &events.Recorder{},
	}
}

// State returns the manager bound to the frame's overlay.
func (f *Frame) State() *corestate.Manager { return f.manager }

// Emitter returns the frame's event recorder.
func (f *Frame) Emitter() events.Emitter { return f.recorder }

// Try runs fn in a nested frame. Writes and events are folded into f only when
// fn succeeds; on error they are dropped and f is left as it was.
func (f *Frame) Try(fn func(*Frame) error) error {
	child := newFrame(f.overlay.Child())
	if err := fn(child); err != nil {
		child.overlay.Discard()
		return err
	}
	child.overlay.MergeInto(f.overlay)
	f.recorder.Append(child.recorder.Events()...)
	return nil
}

// Host owns the storage handle and serializes every call against it.
type Host struct {
	mu     sync.Mutex
	db     storage.Database
	sink   events.Sink
	logger *slog.Logger
}

// NewHost wraps db. The events of each committed call are handed to sink as
// one batch; sink may be nil.
func NewHost(db storage.Database, sink events.Sink, logger *slog.Logger) (*Host, error) {
	if db == nil {
		return nil, errors.New("host: database must not be nil")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Host{db: db, sink: sink, logger: logger.With("component", "host")}, nil
}

// Execute runs fn against a fresh overlay. When fn returns nil the overlay is
// written as one batch and the recorded events are returned and handed to the
// sink. Any error discards both.
func (h *Host) Execute(ctx context.Context, fn func(*Frame) error) ([]*types.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	frame := newFrame(corestate.NewOverlay(corestate.NewDBReader(h.db)))
	if err := fn(frame); err != nil {
		frame.overlay.Discard()
		return nil, err
	}
	writes := frame.overlay.Len()
	if err := frame.overlay.Commit(h.db); err != nil {
		h.logger.Error("commit failed", "error", err)
		return nil, fmt.Errorf("host: commit: %w", err)
	}
	committed := frame.recorder.Events()
	if h.sink != nil && len(committed) > 0 {
		// State is already committed; a sink failure cannot undo the call.
		if err := h.sink.Record(context.WithoutCancel(ctx), committed); err != nil {
			h.logger.Error("sink rejected committed events", "events", len(committed), "error", err)
		}
	}
	h.logger.Debug("call committed", "writes", writes, "events", len(committed))
	return committed, nil
}

// View runs fn with read access to committed state. Writes made by fn are
// discarded.
func (h *Host) View(fn func(*corestate.Manager) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	overlay := corestate.NewOverlay(corestate.NewDBReader(h.db))
	defer overlay.Discard()
	return fn(corestate.NewManager(overlay))
}
