package collector

import (
	"errors"
	"fmt"
)

// ErrorKind classifies upstream failures by how the provider reacts to them.
type ErrorKind string

const (
	// KindTransport is a network failure or timeout; retried with backoff.
	KindTransport ErrorKind = "transport"
	// KindRateLimit is an explicit throttle or a local cooldown; never retried.
	KindRateLimit ErrorKind = "rate_limit"
	// KindParse is a malformed or rejected payload; never retried.
	KindParse ErrorKind = "parse"
	// KindValidation means no usable bar survived normalization.
	KindValidation ErrorKind = "validation"
)

// FetchError is returned by sources.
type FetchError struct {
	Kind   ErrorKind
	Source string
	Status int // HTTP status when there was one
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s error (status %d): %v", e.Source, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s error: %v", e.Source, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could succeed.
func (e *FetchError) Retryable() bool { return e.Kind == KindTransport }

func transportErr(source string, status int, err error) error {
	return &FetchError{Kind: KindTransport, Source: source, Status: status, Err: err}
}

func rateLimitErr(source string, status int, err error) error {
	return &FetchError{Kind: KindRateLimit, Source: source, Status: status, Err: err}
}

func parseErr(source string, status int, err error) error {
	return &FetchError{Kind: KindParse, Source: source, Status: status, Err: err}
}

func validationErr(source string, err error) error {
	return &FetchError{Kind: KindValidation, Source: source, Err: err}
}

// KindOf returns the kind of a source error. Unclassified errors count as
// transport failures.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransport
}

var errCooldown = errors.New("minimum interval since last successful fetch has not elapsed")
