package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"ratemint/core/types"
)

type bareEvent struct{}

func (bareEvent) EventType() string { return "bare" }

type rawEvent struct{ evt *types.Event }

func (r rawEvent) EventType() string   { return r.evt.Type }
func (r rawEvent) Event() *types.Event { return r.evt }

func TestRecorderKeepsOrderAndCopies(t *testing.T) {
	rec := &Recorder{}
	first := &types.Event{Type: "a", Attributes: map[string]string{"k": "1"}}
	rec.Emit(rawEvent{first})
	rec.Emit(rawEvent{&types.Event{Type: "b"}})
	rec.Emit(bareEvent{})

	first.Attributes["k"] = "mutated"

	got := rec.Events()
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].Type)
	require.Equal(t, "1", got[0].Attr("k"))
	require.Equal(t, "b", got[1].Type)
}

func TestRecorderRecordsBatches(t *testing.T) {
	rec := &Recorder{}
	batch := []*types.Event{{Type: "x"}, nil, {Type: "y"}}
	require.NoError(t, rec.Record(context.Background(), batch))
	batch[0].Type = "mutated"

	got := rec.Events()
	require.Len(t, got, 2)
	require.Equal(t, "x", got[0].Type)
	require.Equal(t, "y", got[1].Type)
}
