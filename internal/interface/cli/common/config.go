package common

import (
	"github.com/YoshitsuguKoike/procrunner/internal/app/config"
)

// globalConfig is set by the root command before any subcommand runs
var globalConfig config.Config

// SetGlobalConfig stores the configuration resolved from --config, env and defaults
func SetGlobalConfig(cfg config.Config) {
	globalConfig = cfg
}

// GetGlobalConfig returns the stored configuration, nil before the root command ran
func GetGlobalConfig() config.Config {
	return globalConfig
}
