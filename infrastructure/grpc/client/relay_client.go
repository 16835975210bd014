package client

import (
	"chat-relay/infrastructure/grpc/chatstream"
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Dial opens the chat stream on target. Extra options are applied after the
// default insecure transport credentials.
func Dial(ctx context.Context, target string, maxFrameSize int, opts ...grpc.DialOption) (*chatstream.Conn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	cc, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not connect to server at %s: %w", target, err)
	}

	// The stream outlives ctx, which only bounds its opening.
	streamCtx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)
	stream, err := cc.NewStream(streamCtx, &chatstream.ChatStreamDesc, chatstream.ChatFullMethod,
		grpc.ForceCodec(chatstream.Codec{}),
		grpc.MaxCallRecvMsgSize(maxFrameSize),
		grpc.MaxCallSendMsgSize(maxFrameSize),
	)
	stop()
	if err != nil {
		cancel()
		_ = cc.Close()
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}

	return chatstream.NewClientConn(stream, func() {
		cancel()
		_ = cc.Close()
	}), nil
}
