// Package client is the programmatic side of the relay: it dials one of the
// server transports, sends intents and yields events.
package client

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	grpcclient "chat-relay/infrastructure/grpc/client"
	"chat-relay/infrastructure/websocket"
	"chat-relay/wire"
	"context"
	"fmt"
	"net"
	"strings"
)

const (
	SchemeTCP       = "tcp://"
	SchemeWebSocket = "ws://"
	SchemeSecureWS  = "wss://"
	SchemeGRPC      = "grpc://"
)

type Client struct {
	conn *wire.ClientConn
}

func New(frames contract.FrameConn) *Client {
	return &Client{conn: wire.NewClientConn(frames)}
}

// Dial picks the transport from the address. ws:// and wss:// URLs go over
// websocket, grpc://host:port over gRPC and anything else is a TCP host:port.
func Dial(ctx context.Context, address string, maxFrameSize int) (*Client, error) {
	switch {
	case strings.HasPrefix(address, SchemeWebSocket), strings.HasPrefix(address, SchemeSecureWS):
		conn, err := websocket.Dial(ctx, address, maxFrameSize)
		if err != nil {
			return nil, err
		}
		return New(conn), nil
	case strings.HasPrefix(address, SchemeGRPC):
		conn, err := grpcclient.Dial(ctx, strings.TrimPrefix(address, SchemeGRPC), maxFrameSize)
		if err != nil {
			return nil, err
		}
		return New(conn), nil
	default:
		return DialTCP(ctx, strings.TrimPrefix(address, SchemeTCP), maxFrameSize)
	}
}

func DialTCP(ctx context.Context, address string, maxFrameSize int) (*Client, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("could not connect to server at %s: %w", address, err)
	}
	return New(wire.NewFramed(conn, maxFrameSize)), nil
}

func (c *Client) Join(name string) error {
	return c.conn.Send(domain.Join{Name: name})
}

func (c *Client) Say(text string) error {
	return c.conn.Send(domain.Say{Text: text})
}

func (c *Client) Leave() error {
	return c.conn.Send(domain.Leave{})
}

// Recv blocks for the next event. It returns io.EOF once the server ended the
// stream and a *wire.DecodeError for an event it could not understand.
func (c *Client) Recv() (event.Event, error) {
	return c.conn.Recv()
}

func (c *Client) Close() error {
	return c.conn.Close()
}
