package model

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigurationError is a precondition failure detected before any network call.
type ConfigurationError struct {
	Modality Modality
	Missing  []string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error: " + e.Reason
	if e.Modality != "" {
		msg = fmt.Sprintf("configuration error (%s): %s", e.Modality, e.Reason)
	}
	if len(e.Missing) > 0 {
		msg += " (missing: " + strings.Join(e.Missing, ", ") + ")"
	}
	return msg
}

// RemoteError is a failed call to either backend: non-2xx status, SDK error, transport failure or timeout.
type RemoteError struct {
	Modality   Modality
	Provider   Provider
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s API error: %d - %s", e.Provider, e.Modality, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s %s call failed: %v", e.Provider, e.Modality, e.Err)
	default:
		return fmt.Sprintf("%s %s call failed: %s", e.Provider, e.Modality, e.Body)
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Transient reports whether a retry could plausibly succeed.
func (e *RemoteError) Transient() bool {
	switch {
	case e.StatusCode == 0:
		return e.Err != nil
	case e.StatusCode == 408 || e.StatusCode == 429:
		return true
	default:
		return e.StatusCode >= 500
	}
}

// ParseError means a text response could not be turned into the expected structure.
type ParseError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "parse error: " + e.Reason + ": " + e.Err.Error()
	}
	return "parse error: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

func IsRemoteError(err error) bool {
	var target *RemoteError
	return errors.As(err, &target)
}

func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}
