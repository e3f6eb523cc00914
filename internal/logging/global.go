package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// Global logger instance
var globalLogger *Logger

// InitGlobalLogger initializes the global logger instance
func InitGlobalLogger(level LogLevel, format string) *Logger {
	var output = zerolog.ConsoleWriter{Out: os.Stdout}

	if format == "json" {
		globalLogger = NewLogger(level, os.Stdout)
	} else {
		globalLogger = NewLogger(level, &output)
	}

	return globalLogger
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		// Initialize with default settings if not already initialized
		globalLogger = NewLogger(InfoLevel, os.Stdout)
	}
	return globalLogger
}
