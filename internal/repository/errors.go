package repository

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks malformed input. Never retried.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrProvider marks a search provider that rejected the request or could not be reached.
	ErrProvider = errors.New("search provider error")
	// ErrInfrastructure marks an unreachable cache, quota or queue store.
	ErrInfrastructure = errors.New("infrastructure error")

	// ErrProviderNotConfigured is returned when credentials are missing.
	ErrProviderNotConfigured = fmt.Errorf("%w: provider not configured", ErrProvider)
	// ErrQuotaExhausted is returned when the daily quota has no room for another page.
	ErrQuotaExhausted = fmt.Errorf("%w: daily quota exhausted", ErrProvider)
	// ErrEndOfResults is returned by fetchers for pages past the provider's result window.
	// No request was made.
	ErrEndOfResults = errors.New("end of results")
	// ErrNoResults is returned by scrapers that could not extract a single hit.
	ErrNoResults = fmt.Errorf("%w: no results extracted", ErrProvider)
)

// ProviderError carries the upstream message of a failed provider call.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is makes every ProviderError match ErrProvider.
func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// InfrastructureError wraps a store failure.
type InfrastructureError struct {
	Store string
	Op    string
	Err   error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Store, e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

func (e *InfrastructureError) Is(target error) bool { return target == ErrInfrastructure }

// Infrastructure wraps err as an InfrastructureError, keeping nil as nil.
func Infrastructure(store, op string, err error) error {
	if err == nil {
		return nil
	}
	return &InfrastructureError{Store: store, Op: op, Err: err}
}

// InvalidArgument formats an ErrInvalidArgument.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// ErrorKind classifies err into a short label for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrQuotaExhausted):
		return "quota_exhausted"
	case errors.Is(err, ErrProvider):
		return "provider"
	case errors.Is(err, ErrInfrastructure):
		return "infrastructure"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "unknown"
	}
}
