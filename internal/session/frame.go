package session

import "time"

// FrameType is the type of a server-to-client message.
type FrameType string

const (
	FramePhaseStarted    FrameType = "phase_started"
	FrameWorkflowStarted FrameType = "workflow_started"
	FrameStepStarted     FrameType = "step_started"
	FrameStepFailed      FrameType = "step_failed"
	FramePhaseCompleted  FrameType = "phase_completed"
	FrameError           FrameType = "error"
)

// Frame is the common envelope of every server-to-client message. Phase is
// omitted on errors raised before a phase was resolved.
type Frame struct {
	Type      FrameType `json:"type"`
	Phase     int       `json:"phase,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	ID        string    `json:"id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Output    any       `json:"output,omitempty"`
}
