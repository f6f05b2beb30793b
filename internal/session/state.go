package session

// State is the lifecycle position of a session.
type State int

const (
	StateConnected State = iota
	StateAwaitingRequest
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAwaitingRequest:
		return "awaiting_request"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
