package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// parseEnv overrides fields whose environment variable is set; unset
// variables leave the current value alone.
func parseEnv(config *Config) {
	if err := env.Parse(config); err != nil {
		panic(fmt.Errorf("parse env: %w", err))
	}
}
