package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// LogLevel represents the logging level
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
	FatalLevel LogLevel = "fatal"
)

// Logger holds the zerolog logger instance
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new logger instance with the specified log level
func NewLogger(logLevel LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	level, err := zerolog.ParseLevel(string(logLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &Logger{
		logger: logger,
	}
}

// Zerolog exposes the underlying zerolog logger for callers that keep their
// own contextual copy.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.logger
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.logger.Error().Msg(msg)
}

// WithField adds a single field to the logger
func (l *Logger) WithField(key string, value interface{}) *zerolog.Logger {
	logger := l.logger.With().Interface(key, value).Logger()
	return &logger
}

// WithFields adds multiple fields to the logger
func (l *Logger) WithFields(fields map[string]interface{}) *zerolog.Logger {
	logCtx := l.logger.With()

	for key, value := range fields {
		logCtx = logCtx.Interface(key, value)
	}

	logger := logCtx.Logger()
	return &logger
}

// LogScanResult logs the outcome of a folder sync pass
func (l *Logger) LogScanResult(scanID string, folderID int64, added, modified, removed int, success bool, errorMsg string) {
	event := l.logger.With().
		Str("scan_id", scanID).
		Int64("folder_id", folderID).
		Int("added", added).
		Int("modified", modified).
		Int("removed", removed).
		Bool("success", success).
		Logger()

	if success {
		event.Info().Msg("Folder sync completed")
	} else {
		event.Error().Str("error", errorMsg).Msg("Folder sync failed")
	}
}

// LogExtractionFailure logs a per-file metadata extraction failure
func (l *Logger) LogExtractionFailure(filePath, reason string, err error) {
	l.logger.Warn().
		Str("file_path", filePath).
		Str("reason", reason).
		Err(err).
		Msg("Metadata extraction failed")
}
