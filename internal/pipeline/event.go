package pipeline

import (
	"time"
)

// EventType classifies pipeline lifecycle events.
type EventType string

const (
	EventStarted     EventType = "started"
	EventStepStarted EventType = "step_started"
	EventStepFailed  EventType = "step_failed"
	EventOutput      EventType = "output"
)

// Event is one lifecycle event of a pipeline run.
type Event struct {
	Type      EventType
	Pipeline  string
	StageID   string // StepStarted, StepFailed
	Message   string // StepFailed
	Value     any    // Output
	Timestamp time.Time
}

// Result aggregates a drained run.
type Result struct {
	Events []Event
	// Output is the value of the terminal Output event.
	Output any
	// Completed is false if the run was cancelled before Output.
	Completed bool
	// Failed lists the stages that reported StepFailed, in order.
	Failed []string
}

// Collect drains events until the channel closes.
func Collect(events <-chan Event) Result {
	var res Result
	for ev := range events {
		res.Events = append(res.Events, ev)
		switch ev.Type {
		case EventStepFailed:
			res.Failed = append(res.Failed, ev.StageID)
		case EventOutput:
			res.Output = ev.Value
			res.Completed = true
		}
	}
	return res
}
