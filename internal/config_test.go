package internal

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	req := require.New(t)
	for _, key := range []string{"LOG_LEVEL", "TCP_ADDR", "WEBSOCKET_ADDR", "GRPC_ADDR", "HUB_CAPACITY",
		"MAX_FRAME_SIZE", "RESTART_INTERVAL", "METRIC_INTERVAL", "SHUTDOWN_TIMEOUT"} {
		// Setenv restores the variable after the test, Unsetenv lets the default apply.
		t.Setenv(key, "")
		req.NoError(os.Unsetenv(key))
	}

	config, err := LoadConfig()

	req.NoError(err)
	req.Equal(Config{
		LogLevel:        "INFO",
		TCPAddr:         "127.0.0.1:8080",
		HubCapacity:     64,
		MaxFrameSize:    8 << 20,
		RestartInterval: 200 * time.Millisecond,
		MetricInterval:  30 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}, config)
}

func TestLoadConfig_Overrides(t *testing.T) {
	req := require.New(t)
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("TCP_ADDR", "0.0.0.0:9000")
	t.Setenv("WEBSOCKET_ADDR", "localhost:9001")
	t.Setenv("GRPC_ADDR", "localhost:9002")
	t.Setenv("HUB_CAPACITY", "128")
	t.Setenv("SHUTDOWN_TIMEOUT", "1s")

	config, err := LoadConfig()

	req.NoError(err)
	req.Equal("DEBUG", config.LogLevel)
	req.Equal("0.0.0.0:9000", config.TCPAddr)
	req.Equal("localhost:9001", config.WebSocketAddr)
	req.Equal("localhost:9002", config.GRPCAddr)
	req.Equal(128, config.HubCapacity)
	req.Equal(time.Second, config.ShutdownTimeout)
}

func TestConfig_Validate_Rejects_Bad_Values(t *testing.T) {
	valid := Config{
		LogLevel:        "INFO",
		TCPAddr:         "127.0.0.1:8080",
		HubCapacity:     64,
		MaxFrameSize:    8 << 20,
		RestartInterval: time.Second,
		MetricInterval:  time.Second,
		ShutdownTimeout: time.Second,
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(c *Config){
		"empty capacity":    func(c *Config) { c.HubCapacity = 0 },
		"negative frame":    func(c *Config) { c.MaxFrameSize = -1 },
		"unknown log level": func(c *Config) { c.LogLevel = "VERBOSE" },
		"missing port":      func(c *Config) { c.TCPAddr = "localhost" },
		"bad websocket":     func(c *Config) { c.WebSocketAddr = "not an address" },
		"zero restart":      func(c *Config) { c.RestartInterval = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			config := valid
			mutate(&config)
			require.Error(t, config.Validate())
		})
	}
}
