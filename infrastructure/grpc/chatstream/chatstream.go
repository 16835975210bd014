// Package chatstream carries relay frames over a bidirectional gRPC stream.
//
// The service is declared by hand: one streaming method whose messages are raw
// wire frames, moved untouched by Codec. Both peers must use Codec
// (grpc.ForceServerCodec on the server, grpc.ForceCodec on the client).
package chatstream

import (
	"chat-relay/contract"
	"chat-relay/errors"
	stderrors "errors"
	"fmt"
	"io"
	"sync"
	"time"

	"google.golang.org/grpc"
)

const (
	ServiceName    = "chatrelay.Relay"
	ChatMethod     = "Chat"
	ChatFullMethod = "/" + ServiceName + "/" + ChatMethod
	CodecName      = "chatrelay-frame"

	closeGracePeriod = time.Second
)

var ChatStreamDesc = grpc.StreamDesc{
	StreamName:    ChatMethod,
	ServerStreams: true,
	ClientStreams: true,
}

// Frame is one wire frame travelling as one gRPC message.
type Frame struct {
	Data []byte
}

type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	f, ok := v.(*Frame)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected message type %T", errors.ErrMalformedFrame, v)
	}
	return f.Data, nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	f, ok := v.(*Frame)
	if !ok {
		return fmt.Errorf("%w: unexpected message type %T", errors.ErrMalformedFrame, v)
	}
	f.Data = append([]byte(nil), data...)
	return nil
}

func (Codec) Name() string {
	return CodecName
}

// Stream is what grpc.ServerStream and grpc.ClientStream have in common.
type Stream interface {
	SendMsg(m any) error
	RecvMsg(m any) error
}

type received struct {
	data []byte
	err  error
}

var _ contract.FrameConn = (*Conn)(nil)

// Conn adapts a gRPC stream to contract.FrameConn.
//
// RecvMsg cannot be interrupted from the outside, so a pump goroutine reads
// the stream and Close releases a pending ReadFrame immediately. The pump
// itself ends with the stream.
type Conn struct {
	stream   Stream
	frames   chan received
	done     chan struct{}
	pumpDone chan struct{}
	release  func()
	once     sync.Once
	writeMu  sync.Mutex
}

func newConn(stream Stream, release func()) *Conn {
	c := &Conn{
		stream:   stream,
		frames:   make(chan received),
		done:     make(chan struct{}),
		pumpDone: make(chan struct{}),
		release:  release,
	}
	go c.pump()
	return c
}

// NewServerConn wraps the stream of a running handler. The handler must
// return once Close is called.
func NewServerConn(stream grpc.ServerStream) *Conn {
	return newConn(stream, nil)
}

// NewClientConn wraps a client stream. Close half-closes the stream, gives
// the server a moment to end the call, then tears it down with cancel.
func NewClientConn(stream grpc.ClientStream, cancel func()) *Conn {
	var c *Conn
	c = newConn(stream, func() {
		c.writeMu.Lock()
		_ = stream.CloseSend()
		c.writeMu.Unlock()
		select {
		case <-c.pumpDone:
		case <-time.After(closeGracePeriod):
		}
		cancel()
	})
	return c
}

func (c *Conn) pump() {
	defer close(c.pumpDone)
	defer close(c.frames)
	for {
		var f Frame
		err := c.stream.RecvMsg(&f)
		if err != nil && !stderrors.Is(err, io.EOF) {
			err = fmt.Errorf("grpc stream: %w", err)
		}
		select {
		case c.frames <- received{data: f.Data, err: err}:
		case <-c.done:
			// Nobody reads anymore, keep draining until the stream ends.
		}
		if err != nil {
			return
		}
	}
}

func (c *Conn) ReadFrame() ([]byte, error) {
	select {
	case r, ok := <-c.frames:
		if !ok {
			return nil, errors.ErrConnClosed
		}
		return r.data, r.err
	case <-c.done:
		return nil, errors.ErrConnClosed
	}
}

func (c *Conn) WriteFrame(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return errors.ErrConnClosed
	default:
	}
	return c.stream.SendMsg(&Frame{Data: frame})
}

func (c *Conn) Close() error {
	c.once.Do(func() {
		close(c.done)
		if c.release != nil {
			c.release()
		}
	})
	return nil
}
