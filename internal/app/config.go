package app

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// ProgramPath points at a single .fable.hcl file or a directory of them.
	ProgramPath string

	// ContractPath optionally names a JSON contract document bound as the
	// `contract` variable in the root context.
	ContractPath string

	LogFormat string
	LogLevel  string

	// Workers bounds parallel loops that declare no bound of their own.
	Workers int

	// DrainTimeout bounds the shutdown wait for in-flight event handlers.
	DrainTimeout time.Duration

	// ListenAddr is the bind address offered to the listen action. Empty
	// leaves the HTTP listener unconfigured.
	ListenAddr string
}

// DefaultDrainTimeout is applied when no drain timeout is configured.
const DefaultDrainTimeout = 5 * time.Second

// NewConfig validates a Config and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProgramPath == "" {
		return nil, errors.New("ProgramPath is a required configuration field and cannot be empty")
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("Workers cannot be negative, got %d", cfg.Workers)
	}
	if cfg.DrainTimeout < 0 {
		return nil, fmt.Errorf("DrainTimeout cannot be negative, got %s", cfg.DrainTimeout)
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	return &cfg, nil
}
