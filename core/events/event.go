package events

import (
	"context"
	"sync"

	"ratemint/core/types"
)

// Event represents a structured state change emitted by the node.
type Event interface {
	EventType() string
}

// Payload is implemented by events that can render themselves as a typed
// attribute map.
type Payload interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// Sink receives the events of one committed call as a single batch, so a
// durable sink can store them all or none.
type Sink interface {
	Record(ctx context.Context, evts []*types.Event) error
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Recorder buffers events in emission order. The host hands a recorder to each
// call and only forwards its contents once the call commits.
type Recorder struct {
	mu     sync.Mutex
	events []*types.Event
}

// Emit implements Emitter. Events that cannot render a payload are dropped.
func (r *Recorder) Emit(evt Event) {
	payload, ok := evt.(Payload)
	if !ok || payload.Event() == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, payload.Event().Clone())
	r.mu.Unlock()
}

// Events returns a copy of the buffered events.
func (r *Recorder) Events() []*types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*types.Event, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Clone())
	}
	return out
}

// Append adds already rendered events, used when a nested call commits into
// its parent.
func (r *Recorder) Append(evts ...*types.Event) {
	r.mu.Lock()
	r.events = append(r.events, evts...)
	r.mu.Unlock()
}

// Record implements Sink by appending copies of evts.
func (r *Recorder) Record(_ context.Context, evts []*types.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, evt := range evts {
		if evt != nil {
			r.events = append(r.events, evt.Clone())
		}
	}
	return nil
}

// Len returns the number of buffered events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
