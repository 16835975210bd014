package main

import "github.com/kelseyhightower/envconfig"

// Config is the client configuration. Positional arguments take precedence
// over CHAT_SERVER_ADDR and CHAT_USERNAME.
type Config struct {
	Address      string `envconfig:"CHAT_SERVER_ADDR" default:"127.0.0.1:8080"`
	Username     string `envconfig:"CHAT_USERNAME"`
	MaxFrameSize int    `envconfig:"MAX_FRAME_SIZE" default:"8388608"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"WARN"`
	// CHAT_COLOURS disables colorized output when false
	Colours bool `envconfig:"CHAT_COLOURS" default:"true"`
}

func LoadConfig(args []string) (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if len(args) > 0 {
		cfg.Address = args[0]
	}
	if len(args) > 1 {
		cfg.Username = args[1]
	}
	return cfg, nil
}
