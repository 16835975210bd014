package event

import "fmt"

type ErrorCode uint8

const (
	_ ErrorCode = iota
	CodeUsernameTaken
	CodeInternal
	CodeLost
)

// ErrorKind is the payload of a Failure event.
// Count is only meaningful for CodeLost and holds the number of dropped events.
type ErrorKind struct {
	Code  ErrorCode
	Count uint64
}

var (
	UsernameTaken = ErrorKind{Code: CodeUsernameTaken}
	Internal      = ErrorKind{Code: CodeInternal}
)

// Lost reports that count events were dropped because the client fell behind.
func Lost(count uint64) ErrorKind {
	return ErrorKind{Code: CodeLost, Count: count}
}

func (k ErrorKind) String() string {
	switch k.Code {
	case CodeUsernameTaken:
		return "username already taken"
	case CodeInternal:
		return "internal error"
	case CodeLost:
		return fmt.Sprintf("%d message(s) lost", k.Count)
	default:
		return fmt.Sprintf("unknown error code %d", k.Code)
	}
}
