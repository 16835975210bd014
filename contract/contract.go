//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// FrameConn is a message-boundary preserving duplex stream of opaque frames.
// ReadFrame returns io.EOF once the peer has finished sending.
type FrameConn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(frame []byte) error
	Close() error
}

// Conn is the server end of a wire channel: typed intents in, typed events out.
// Recv returns io.EOF at end of stream and a *wire.DecodeError for a frame that
// could not be decoded; any other error is a transport failure.
type Conn interface {
	Recv() (domain.Intent, error)
	Send(e event.Event) error
	Close() error
}

type IRegistry interface {
	TryRegister(name string) (domain.Username, error)
	Unregister(name domain.Username)
	Contains(name string) bool
	Len() int
}
