// Package status carries per-node remediation progress from the pipeline to
// its consumers. The pipeline publishes one started event when a node's
// work begins and exactly one succeeded or failed event when it resolves;
// sinks fan the stream out to logs, metrics and live subscribers.
package status

import (
	"time"
)

// EventType is the lifecycle stage an event reports.
type EventType string

// Event types.
const (
	EventStarted   EventType = "started"
	EventSucceeded EventType = "succeeded"
	EventFailed    EventType = "failed"
)

// Event is one remediation progress update.
type Event struct {
	Type     EventType `json:"type"`
	RunID    string    `json:"run_id"`
	Category string    `json:"category"`
	Phase    string    `json:"phase"`
	// Node is the position-derived handle of the element being worked on,
	// empty for run-level events.
	Node    string `json:"node,omitempty"`
	Message string `json:"message,omitempty"`
	// Fields lists what the applier authored, for succeeded apply events.
	Fields []string `json:"fields,omitempty"`
	// Stage names the node-pipeline step that failed, for failed events.
	Stage string `json:"stage,omitempty"`
	Error string `json:"error,omitempty"`
	// Elapsed is the node's processing time, set on terminal node events.
	Elapsed   time.Duration `json:"elapsed,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Sink consumes events. Publish must not block; slow consumers drop rather
// than stall the pipeline.
type Sink interface {
	Publish(Event)
}

// Fanout distributes each event to every sink.
type Fanout []Sink

func (f Fanout) Publish(e Event) {
	for _, s := range f {
		s.Publish(e)
	}
}

// Discard ignores all events.
type Discard struct{}

func (Discard) Publish(Event) {}

// Stamp fills the timestamp if the publisher left it zero.
func Stamp(e Event) Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return e
}
