package notify

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"travelfolio/internal/types"
)

type recordingChannel struct {
	events []types.AlertEvent
	err    error
}

func (c *recordingChannel) Notify(ev types.AlertEvent) error {
	c.events = append(c.events, ev)
	return c.err
}

func TestFanoutRouting(t *testing.T) {
	f := NewFanout()

	var seen []types.AlertEvent
	f.AddSink(func(ev types.AlertEvent) { seen = append(seen, ev) })
	ch := &recordingChannel{}
	f.AddChannel(ch)

	f.AlertChecked(types.AlertEvent{ID: "a1", Dest: "VLC", CurrentPrice: 520, Triggered: false})
	f.AlertChecked(types.AlertEvent{ID: "a1", Dest: "VLC", CurrentPrice: 450, Triggered: true})

	// sinks hear everything, channels only triggers
	require.Len(t, seen, 2)
	require.Len(t, ch.events, 1)
	require.Equal(t, 450.0, ch.events[0].CurrentPrice)
}

func TestFanoutChannelErrorDoesNotPropagate(t *testing.T) {
	f := NewFanout()
	failing := &recordingChannel{err: errors.New("chat unreachable")}
	working := &recordingChannel{}
	f.AddChannel(failing)
	f.AddChannel(working)

	f.AlertChecked(types.AlertEvent{ID: "a1", Dest: "VLC", Triggered: true})

	require.Len(t, failing.events, 1)
	require.Len(t, working.events, 1)
}

func TestTriggerMessage(t *testing.T) {
	text := triggerMessage(types.AlertEvent{
		ID: "a1", Origin: "FRA", Dest: "VLC", Date: "2026-09-15",
		CurrentPrice: 450.5, TargetPrice: 500, Triggered: true,
	})

	require.Contains(t, text, "FRA → VLC")
	require.Contains(t, text, "€450\\.50")
	require.Contains(t, text, "€500\\.00")
	require.Contains(t, text, "2026\\-09\\-15")
}
