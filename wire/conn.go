package wire

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"sync"
)

var _ contract.Conn = (*ServerConn)(nil)

// ServerConn is the server end of a wire channel over any FrameConn.
type ServerConn struct {
	frames contract.FrameConn
}

func NewServerConn(frames contract.FrameConn) *ServerConn {
	return &ServerConn{frames: frames}
}

// Recv returns the next intent. Transport errors, io.EOF included, are
// returned untouched; a frame that cannot be decoded yields a *DecodeError.
func (c *ServerConn) Recv() (domain.Intent, error) {
	frame, err := c.frames.ReadFrame()
	if err != nil {
		return nil, err
	}
	return UnmarshalIntent(frame)
}

func (c *ServerConn) Send(evt event.Event) error {
	frame, err := MarshalEvent(evt)
	if err != nil {
		return err
	}
	return c.frames.WriteFrame(frame)
}

func (c *ServerConn) Close() error {
	return c.frames.Close()
}

// ClientConn is the client end of a wire channel.
// Send may be called from several goroutines; Recv from one.
type ClientConn struct {
	frames contract.FrameConn
	sendMu sync.Mutex
}

func NewClientConn(frames contract.FrameConn) *ClientConn {
	return &ClientConn{frames: frames}
}

func (c *ClientConn) Send(intent domain.Intent) error {
	frame, err := MarshalIntent(intent)
	if err != nil {
		return err
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.frames.WriteFrame(frame)
}

func (c *ClientConn) Recv() (event.Event, error) {
	frame, err := c.frames.ReadFrame()
	if err != nil {
		return nil, err
	}
	return UnmarshalEvent(frame)
}

func (c *ClientConn) Close() error {
	return c.frames.Close()
}
