package domain

import "errors"

var (
	// ErrInsufficientHistory means the series is shorter than the forecasting window.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrUnevaluable means a backtest had no origin with a full horizon of actuals.
	ErrUnevaluable = errors.New("unevaluable")
	// ErrUndefinedUncertainty means σ could not be estimated for the forecast.
	ErrUndefinedUncertainty = errors.New("undefined uncertainty")
	// ErrInvalidParameter covers out-of-range caller inputs.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrSKUNotFound is returned by lookups for an unknown SKU.
	ErrSKUNotFound = errors.New("sku not found")
	// ErrNotConfigured means the server lacks a backing store the call needs.
	// It classifies as internal.
	ErrNotConfigured = errors.New("not configured")
)

// ErrorKind is the stable, serialisable name of a failure class.
type ErrorKind string

const (
	KindNone                 ErrorKind = ""
	KindInsufficientHistory  ErrorKind = "insufficient_history"
	KindUnevaluable          ErrorKind = "unevaluable"
	KindUndefinedUncertainty ErrorKind = "undefined_uncertainty"
	KindInvalidParameter     ErrorKind = "invalid_parameter"
	KindNotFound             ErrorKind = "not_found"
	KindInternal             ErrorKind = "internal"
)

// KindOf classifies err by the sentinel it wraps.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInsufficientHistory):
		return KindInsufficientHistory
	case errors.Is(err, ErrUnevaluable):
		return KindUnevaluable
	case errors.Is(err, ErrUndefinedUncertainty):
		return KindUndefinedUncertainty
	case errors.Is(err, ErrInvalidParameter):
		return KindInvalidParameter
	case errors.Is(err, ErrSKUNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
