package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents network-related errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeStorage represents persistence errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeSummary represents summarizer backend errors
	ErrorTypeSummary ErrorType = "summary"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// ScrapeError represents a pipeline error with enough context to diagnose
// which URL and phase it came from.
type ScrapeError struct {
	Type    ErrorType
	Phase   string
	URL     string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s %s: %s - %v", e.Type, e.Phase, e.URL, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s %s: %s", e.Type, e.Phase, e.URL, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if a later cycle may succeed without intervention
func (e *ScrapeError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork:
		return true
	case ErrorTypeRateLimit:
		return false
	case ErrorTypeParsing:
		return false
	default:
		return false
	}
}

// New creates a new ScrapeError
func New(errType ErrorType, phase, url, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:    errType,
		Phase:   phase,
		URL:     url,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(phase, url, message string, err error) *ScrapeError {
	return New(ErrorTypeNetwork, phase, url, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(phase, url, message string, err error) *ScrapeError {
	return New(ErrorTypeParsing, phase, url, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(phase, url string, duration time.Duration) *ScrapeError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, phase, url, message, nil)
}

// NewStorage creates a new storage error
func NewStorage(phase, message string, err error) *ScrapeError {
	return New(ErrorTypeStorage, phase, "", message, err)
}

// NewSummary creates a new summarizer error
func NewSummary(url, message string, err error) *ScrapeError {
	return New(ErrorTypeSummary, "summarize", url, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScrapeError {
	return New(ErrorTypeConfiguration, "config", "", message, err)
}
