package main

import (
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/infrastructure/tcp"
	"chat-relay/infrastructure/websocket"
	"chat-relay/internal"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const usage = "usage: server [address]"

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires the relay and blocks until SIGINT or SIGTERM.
// The optional positional address overrides TCP_ADDR.
func run(args []string) (int, error) {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, err
	}
	switch len(args) {
	case 0:
	case 1:
		config.TCPAddr = args[0]
		if err := config.Validate(); err != nil {
			return exitConfig, err
		}
	default:
		return exitConfig, fmt.Errorf("too many arguments, %s", usage)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Shared state, built once and handed to every transport
	relay := runtime.NewRelay(log, runtime.NewRegistry(), runtime.NewHub(config.HubCapacity))

	// 4. Supervision
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		tcp.NewAcceptor(log, config.TCPAddr, relay, config.MaxFrameSize),
		workers.NewStatsWorker(log, relay, config.MetricInterval),
	)
	if config.WebSocketAddr != "" {
		sup.Add(websocket.NewServer(log, config.WebSocketAddr, relay, config.MaxFrameSize))
	}
	if config.GRPCAddr != "" {
		sup.Add(server.NewRelayServer(log, config.GRPCAddr, relay, config.MaxFrameSize))
	}

	log.Info("Starting chat relay",
		"tcp", config.TCPAddr,
		"websocket", config.WebSocketAddr,
		"grpc", config.GRPCAddr,
		"hub_capacity", config.HubCapacity)

	// 5. Blocks until the signal context is cancelled
	sup.Run(ctx)

	// 6. Final Cleanup: live connections were closed with ctx, wait for their sessions to unwind
	log.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := relay.Wait(shutdownCtx); err != nil {
		relay.Close()
		return exitRuntime, fmt.Errorf("sessions still running after %s: %w", config.ShutdownTimeout, err)
	}
	relay.Close()
	log.Info("Program stopped cleanly")

	return exitOK, nil
}
