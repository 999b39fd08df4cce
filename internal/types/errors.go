package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrInvalidURL          = errors.New("invalid URL")
	ErrNotConfigured       = errors.New("strategy not configured")
	ErrBlocked             = errors.New("blocked by origin")
	ErrEmptyResponse       = errors.New("empty response body")
	ErrContentTooShort     = errors.New("content below minimum viable length")
	ErrAllStrategiesFailed = errors.New("all strategies failed")
	ErrBrowserUnavailable  = errors.New("browser not available")
)

// ConfigError means a strategy is missing credentials or failed its
// health probe. The engine skips the strategy; it is never counted as
// a cascade failure.
type ConfigError struct {
	Strategy string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("strategy %s not configured: %s", e.Strategy, e.Reason)
	}
	return fmt.Sprintf("strategy %s not configured", e.Strategy)
}

func (e *ConfigError) Unwrap() error { return ErrNotConfigured }

// TransportError wraps a network failure or timeout during one
// strategy attempt. It fails that strategy only.
type TransportError struct {
	Strategy string
	URL      string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("strategy %s transport error for %s: %v", e.Strategy, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BlockedError means the block detector classified a strategy's result
// as denied or challenged content.
type BlockedError struct {
	Strategy   string
	URL        string
	Verdict    string
	StatusCode int
}

func (e *BlockedError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("strategy %s %s for %s (status %d)", e.Strategy, e.Verdict, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("strategy %s %s for %s", e.Strategy, e.Verdict, e.URL)
}

func (e *BlockedError) Unwrap() error { return ErrBlocked }

// ExhaustError is the terminal cascade failure: every configured
// strategy failed or was unavailable. LastErr is the last underlying
// strategy error, ErrAllStrategiesFailed if none ran.
type ExhaustError struct {
	URL      string
	Attempts int
	LastErr  error
}

func (e *ExhaustError) Error() string {
	return fmt.Sprintf("acquisition exhausted for %s after %d attempts: %v", e.URL, e.Attempts, e.LastErr)
}

func (e *ExhaustError) Unwrap() error { return e.LastErr }
