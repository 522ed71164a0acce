package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// DIRECTORY_ADDR targets a running directory; empty starts one in-process
	DirectoryAddr string        `envconfig:"DIRECTORY_ADDR"`
	Timeout       time.Duration `envconfig:"E2E_TIMEOUT" default:"1s"`
	// E2E_BASE_PORT is the first relay port of the in-process directory, kept below the ephemeral range
	BasePort int `envconfig:"E2E_BASE_PORT" default:"23100"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours  bool   `envconfig:"E2E_COLOURS" default:"true"`
	LogLevel string `envconfig:"E2E_LOG_LEVEL" default:"WARN"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
