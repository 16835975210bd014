package domain

// SessionState is the lifecycle position of a client session.
type SessionState int

const (
	// AwaitingName is the initial state: the client has not joined yet.
	AwaitingName SessionState = iota
	// Active means a username is held and the session relays events.
	Active
	// Terminated is final. A session never leaves it.
	Terminated
)

func (s SessionState) String() string {
	switch s {
	case AwaitingName:
		return "awaiting_name"
	case Active:
		return "active"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}
