package model

import "fmt"

// ErrorKind classifies provider failures at the client boundary.
type ErrorKind string

const (
	ErrKindAuth      ErrorKind = "auth"
	ErrKindRateLimit ErrorKind = "rateLimit"
	ErrKindNotFound  ErrorKind = "notFound"
	ErrKindNetwork   ErrorKind = "network"
	ErrKindMalformed ErrorKind = "malformed"
)

// ProviderError is the normalized error shape every provider client
// returns. Clients never retry or swallow; they normalize and rethrow.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError builds a normalized provider error.
func NewProviderError(provider string, kind ErrorKind, message string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Message: message, Err: err}
}

// QuoteUnavailable reports that every quote path for a symbol was
// exhausted. Callers get the symbol and cause so they can decide whether a
// retry is worthwhile.
type QuoteUnavailable struct {
	Symbol string
	Cause  error
}

func (e *QuoteUnavailable) Error() string {
	return fmt.Sprintf("quote unavailable for %s: %v", e.Symbol, e.Cause)
}

func (e *QuoteUnavailable) Unwrap() error { return e.Cause }

// CandleFetchFailed reports that no candle tier, including the synthetic
// fallback, could produce data. With the synthetic tier in place this is
// effectively unreachable.
type CandleFetchFailed struct {
	Symbol string
	Cause  error
}

func (e *CandleFetchFailed) Error() string {
	return fmt.Sprintf("candle fetch failed for %s: %v", e.Symbol, e.Cause)
}

func (e *CandleFetchFailed) Unwrap() error { return e.Cause }
