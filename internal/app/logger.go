package app

import (
	"strings"

	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/logger"
)

// ConfigureLogging initialises the global logger with the provided level, defaulting to info.
func ConfigureLogging(level, format string) error {
	level = strings.TrimSpace(level)
	if level == "" {
		level = "info"
	}
	return logger.Init(level, strings.TrimSpace(format))
}
