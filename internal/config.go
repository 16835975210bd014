package internal

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

// Config is the relay server configuration, read from the environment.
// Only the TCP transport is mandatory; an empty WEBSOCKET_ADDR or GRPC_ADDR
// leaves that transport off.
type Config struct {
	LogLevel        string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	TCPAddr         string        `env:"TCP_ADDR,default=127.0.0.1:8080" validate:"required,hostname_port"`
	WebSocketAddr   string        `env:"WEBSOCKET_ADDR" validate:"omitempty,hostname_port"`
	GRPCAddr        string        `env:"GRPC_ADDR" validate:"omitempty,hostname_port"`
	HubCapacity     int           `env:"HUB_CAPACITY,default=64" validate:"gt=0"`
	MaxFrameSize    int           `env:"MAX_FRAME_SIZE,default=8388608" validate:"gt=0"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=30s" validate:"gt=0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s" validate:"gt=0"`
}

// LoadConfig reads an optional .env file then the process environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
