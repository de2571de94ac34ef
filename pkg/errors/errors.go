package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeStrategyMiss represents a locate attempt that found nothing
	ErrorTypeStrategyMiss ErrorType = "strategy_miss"
	// ErrorTypeAutomation represents a failure of a single browser interaction
	ErrorTypeAutomation ErrorType = "automation"
	// ErrorTypeRunFailure represents an unexpected failure of a whole scrape run
	ErrorTypeRunFailure ErrorType = "run_failure"
	// ErrorTypeNetwork represents network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeStorage represents outlet store errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// ScrapeError represents an error raised somewhere in a scrape run
type ScrapeError struct {
	Type    ErrorType
	Stage   string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Stage, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *ScrapeError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeAutomation:
		return true
	default:
		return false
	}
}

// New creates a new ScrapeError
func New(errType ErrorType, stage, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:    errType,
		Stage:   stage,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewAutomation creates a new automation error
func NewAutomation(stage, message string, err error) *ScrapeError {
	return New(ErrorTypeAutomation, stage, message, err)
}

// NewRunFailure creates a new run failure error
func NewRunFailure(stage string, err error) *ScrapeError {
	return New(ErrorTypeRunFailure, stage, "scrape run aborted", err)
}

// NewNetwork creates a new network error
func NewNetwork(stage, message string, err error) *ScrapeError {
	return New(ErrorTypeNetwork, stage, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(stage, message string, err error) *ScrapeError {
	return New(ErrorTypeParsing, stage, message, err)
}

// NewStorage creates a new storage error
func NewStorage(stage, message string, err error) *ScrapeError {
	return New(ErrorTypeStorage, stage, message, err)
}

// NewCache creates a new cache error
func NewCache(stage, message string, err error) *ScrapeError {
	return New(ErrorTypeCache, stage, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(stage, message string, err error) *ScrapeError {
	return New(ErrorTypePublisher, stage, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScrapeError {
	return New(ErrorTypeConfiguration, "config", message, err)
}
