// Package event defines the server-to-client vocabulary broadcast through the hub.
package event

import (
	"chat-relay/domain"
	"fmt"
)

// Event is a server-to-client message.
// The set is closed: Joined, Said, Left and Failure are the only implementations,
// so a type switch over them is exhaustive.
type Event interface {
	isEvent()
}

// Joined announces that Name completed its handshake.
type Joined struct {
	Name domain.Username
}

// Said carries one chat line written by Name.
type Said struct {
	Name domain.Username
	Text string
}

// Left announces that Name's session terminated.
type Left struct {
	Name domain.Username
}

// Failure reports a recoverable problem to a single client.
// It is never published on the hub.
type Failure struct {
	Kind ErrorKind
}

func (Joined) isEvent()  {}
func (Said) isEvent()    {}
func (Left) isEvent()    {}
func (Failure) isEvent() {}

func (e Joined) String() string { return fmt.Sprintf("%s joined", e.Name) }
func (e Said) String() string   { return fmt.Sprintf("%s: %s", e.Name, e.Text) }
func (e Left) String() string   { return fmt.Sprintf("%s left", e.Name) }
func (e Failure) String() string {
	return fmt.Sprintf("error: %s", e.Kind)
}
