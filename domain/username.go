// Package domain contains core concepts of the chat relay.
// This file defines the Username value shared by the registry, the sessions
// and every event that names a participant.
package domain

// Username identifies a participant for the lifetime of its session.
// Strings are immutable in Go, so a Username can be shared by any number of
// events and goroutines without copying.
type Username string

func (u Username) String() string {
	return string(u)
}
