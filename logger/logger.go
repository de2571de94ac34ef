package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger represents a structured logger
type Logger struct {
	logger zerolog.Logger
}

// Fields represents log fields
type Fields map[string]interface{}

var (
	// Default is the default logger instance
	Default *Logger
)

// Init initializes the logger with the given configuration
func Init() {
	level := getLogLevel()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	// Console output is easier to read next to the debug/ artifacts
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	Default = New(output)

	Default.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// New creates a logger writing to w
func New(w io.Writer) *Logger {
	return &Logger{logger: zerolog.New(w).With().Timestamp().Logger()}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// getLogLevel returns the log level from environment variable
func getLogLevel() zerolog.Level {
	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		levelStr = os.Getenv("SCRAPER_ENVIRONMENT")
		if levelStr == "production" {
			return zerolog.InfoLevel
		}
		return zerolog.DebugLevel
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// WithFields creates a new logger with fields
func (l *Logger) WithFields(fields Fields) *Logger {
	newLogger := l.logger.With()
	for k, v := range fields {
		newLogger = newLogger.Interface(k, v)
	}
	return &Logger{logger: newLogger.Logger()}
}

// WithField creates a new logger with a single field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// Debug returns a debug event
func (l *Logger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

// Info returns an info event
func (l *Logger) Info() *zerolog.Event {
	return l.logger.Info()
}

// Warn returns a warn event
func (l *Logger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

// Error returns an error event
func (l *Logger) Error() *zerolog.Event {
	return l.logger.Error()
}

// ForComponent creates a logger tagged with a component name
func ForComponent(component string) *Logger {
	if Default == nil {
		Init()
	}
	return Default.WithField("component", component)
}

// ForScraper creates a logger for one scrape target
func ForScraper(target string) *Logger {
	if Default == nil {
		Init()
	}
	return Default.WithFields(Fields{"component": "scraper", "target": target})
}

// ForWorker creates a logger for the worker
func ForWorker() *Logger {
	return ForComponent("worker")
}

// ForPublisher creates a logger for the publisher
func ForPublisher() *Logger {
	return ForComponent("publisher")
}

// ForStore creates a logger for the outlet store
func ForStore() *Logger {
	return ForComponent("store")
}
