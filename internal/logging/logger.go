package logging

import (
	"strings"

	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/gologger/levels"
)

var levelMap = map[string]levels.Level{
	"silent":  levels.LevelSilent,
	"debug":   levels.LevelDebug,
	"info":    levels.LevelInfo,
	"warning": levels.LevelWarning,
	"warn":    levels.LevelWarning,
	"error":   levels.LevelError,
	"fatal":   levels.LevelFatal,
}

// Setup configures gologger based on the log level
func Setup(logLevel string) {
	if level, exists := levelMap[strings.ToLower(logLevel)]; exists {
		gologger.DefaultLogger.SetMaxLevel(level)
		gologger.Debug().Msgf("Log level configured to: %s", logLevel)
		return
	}

	gologger.DefaultLogger.SetMaxLevel(levels.LevelInfo)
	gologger.Warning().Msgf("Unknown log level '%s', defaulting to 'info'", logLevel)
}

// Redact replaces a secret for display. Secrets are never printed, even partially.
func Redact(secret string) string {
	if secret == "" {
		return "<unset>"
	}
	return "[REDACTED]"
}
