package main

import (
	"bufio"
	"chat-relay/client"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/wire"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const (
	quitCommand = "/quit"
	dialTimeout = 5 * time.Second
)

func main() {
	code, err := run(os.Args[1:], os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

type received struct {
	evt event.Event
	err error
}

// run joins the chat, sends every stdin line as a message and prints what the
// server broadcasts. /quit or end of input leaves the chat.
func run(args []string, in io.Reader, out io.Writer) (int, error) {
	// 1. Load configuration from environment variables and arguments.
	config, err := LoadConfig(args)
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	color.Enable = config.Colours
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lines := make(chan string)
	go readLines(in, lines)

	username := config.Username
	for username == "" {
		fmt.Fprint(out, "Username: ")
		select {
		case line, ok := <-lines:
			if !ok {
				return exitConfig, fmt.Errorf("no username given")
			}
			username = line
		case <-ctx.Done():
			return exitOK, nil
		}
	}

	// 3. Connect and ask for the name.
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	c, err := client.Dial(dialCtx, config.Address, config.MaxFrameSize)
	cancel()
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		log.Debug("Closing connection...")
		_ = c.Close()
	}()
	if err := c.Join(username); err != nil {
		return exitRuntime, fmt.Errorf("join failed: %w", err)
	}

	events := make(chan received)
	go func() {
		for {
			evt, err := c.Recv()
			select {
			case events <- received{evt: evt, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil && !isDecodeError(err) {
				return
			}
		}
	}()

	// 4. Relay loop.
	joined := false
	for {
		select {
		case <-ctx.Done():
			_ = c.Leave()
			return exitOK, nil

		case line, ok := <-lines:
			switch {
			case !ok || line == quitCommand:
				_ = c.Leave()
				return exitOK, nil
			case line == "" && !joined:
				fmt.Fprint(out, "Username: ")
				continue
			case line == "":
				continue
			case !joined:
				username = line
				err = c.Join(username)
			default:
				err = c.Say(line)
			}
			if err != nil {
				return exitRuntime, fmt.Errorf("send failed: %w", err)
			}

		case r := <-events:
			switch {
			case r.err == nil:
			case stderrors.Is(r.err, io.EOF):
				fmt.Fprintln(out, "Server closed the connection")
				return exitOK, nil
			case isDecodeError(r.err):
				log.Warn("Unreadable event from server", "error", r.err)
				continue
			default:
				return exitRuntime, fmt.Errorf("connection lost: %w", r.err)
			}

			fmt.Fprintln(out, render(r.evt))
			switch e := r.evt.(type) {
			case event.Joined:
				if !joined && e.Name == domain.Username(username) {
					joined = true
				}
			case event.Failure:
				if !joined && e.Kind == event.UsernameTaken {
					fmt.Fprint(out, "Username: ")
				}
			}
		}
	}
}

func readLines(in io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		lines <- strings.TrimSpace(scanner.Text())
	}
}

func isDecodeError(err error) bool {
	var decodeErr *wire.DecodeError
	return stderrors.As(err, &decodeErr)
}
