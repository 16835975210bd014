// Package domain contains core concepts of the chat relay.
// This file defines the intents a client sends to the server.
// No runtime, network, or UI logic should be added here.
package domain

// Intent is a client-to-server message.
// The set of intents is closed: Join, Say and Leave are the only implementations.
type Intent interface {
	isIntent()
}

// Join asks the server to register Name and start the chat.
type Join struct {
	Name string
}

// Say posts a chat line on behalf of the joined user.
type Say struct {
	Text string
}

// Leave ends the session.
type Leave struct{}

func (Join) isIntent()  {}
func (Say) isIntent()   {}
func (Leave) isIntent() {}
