package errors

import "fmt"

var (
	ErrWorkerPanic    = fmt.Errorf("worker panic")
	ErrUsernameTaken  = fmt.Errorf("username already taken")
	ErrHubClosed      = fmt.Errorf("hub closed")
	ErrHubEmpty       = fmt.Errorf("no event available")
	ErrMalformedFrame = fmt.Errorf("malformed frame")
	ErrUnknownVariant = fmt.Errorf("unknown message variant")
	ErrFrameTooLarge  = fmt.Errorf("frame exceeds maximum size")
	ErrConnClosed     = fmt.Errorf("connection closed")
	ErrUnexpectedJoin = fmt.Errorf("join received on an active session")
	ErrNotJoined      = fmt.Errorf("say received before join")
	ErrRelayClosed    = fmt.Errorf("relay is shutting down")
)
