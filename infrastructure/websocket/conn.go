// Package websocket serves the relay over WebSocket, one binary message per frame.
package websocket

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"chat-relay/wire"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

var _ contract.FrameConn = (*Conn)(nil)

// Conn adapts a websocket connection to contract.FrameConn.
// A normal close from the peer reads as io.EOF.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func NewConn(ws *websocket.Conn, maxFrameSize int) *Conn {
	ws.SetReadLimit(int64(maxFrameSize))
	return &Conn{ws: ws}
}

func (c *Conn) ReadFrame() ([]byte, error) {
	messageType, data, err := c.ws.ReadMessage()
	switch {
	case err == nil:
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		return nil, io.EOF
	case stderrors.Is(err, websocket.ErrReadLimit):
		return nil, fmt.Errorf("%w: %w", errors.ErrFrameTooLarge, err)
	default:
		return nil, err
	}
	if messageType != websocket.BinaryMessage {
		return nil, &wire.DecodeError{Err: fmt.Errorf("%w: text message", errors.ErrMalformedFrame)}
	}
	return data, nil
}

func (c *Conn) WriteFrame(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

// Close says goodbye to the peer then drops the connection.
func (c *Conn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	return c.ws.Close()
}

// Dial opens a client connection to a relay websocket endpoint such as
// ws://localhost:8081/chat.
func Dial(ctx context.Context, url string, maxFrameSize int) (*Conn, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, http.Header{})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}
	return NewConn(ws, maxFrameSize), nil
}
