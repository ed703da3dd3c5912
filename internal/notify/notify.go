// Package notify fans alert events out to user-facing channels. The
// websocket hub gets every event; external channels like Telegram only
// hear about actual triggers.
package notify

import (
	log "github.com/sirupsen/logrus"

	"travelfolio/internal/types"
)

// Channel delivers a triggered alert to one destination.
type Channel interface {
	Notify(ev types.AlertEvent) error
}

// Fanout forwards every checked alert to all sinks and, when the alert
// triggered, to all channels. It satisfies the sweep loop's Sink interface.
type Fanout struct {
	sinks    []func(types.AlertEvent)
	channels []Channel
}

func NewFanout() *Fanout {
	return &Fanout{}
}

// AddSink registers a receiver for every event, triggered or not.
func (f *Fanout) AddSink(fn func(types.AlertEvent)) {
	f.sinks = append(f.sinks, fn)
}

// AddChannel registers a trigger-only notification channel.
func (f *Fanout) AddChannel(ch Channel) {
	f.channels = append(f.channels, ch)
}

func (f *Fanout) AlertChecked(ev types.AlertEvent) {
	for _, fn := range f.sinks {
		fn(ev)
	}
	if !ev.Triggered {
		return
	}
	for _, ch := range f.channels {
		if err := ch.Notify(ev); err != nil {
			log.Errorf("❌ Failed to deliver alert %s notification: %v", ev.ID, err)
		}
	}
}
