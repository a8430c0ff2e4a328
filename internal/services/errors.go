package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// Kind classifies a collaborator failure.
type Kind int

const (
	// KindUnavailable covers connection and authentication failures: the
	// collaborator should be treated as absent for the rest of the pass.
	KindUnavailable Kind = iota + 1
	// KindTransient covers failures that might succeed on a later pass
	// (server errors, timeouts, rate limiting).
	KindTransient
	// KindFatal covers everything else (bad requests, unexpected payloads).
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a classified failure from a collaborator call.
type Error struct {
	Service string
	Op      string
	Kind    Kind
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: %s (status %d)", e.Service, e.Op, e.Kind, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Service, e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusError builds an Error from an unexpected HTTP status code.
func StatusError(service, op string, status int) *Error {
	return &Error{Service: service, Op: op, Kind: classifyStatus(status), Status: status}
}

// WrapTransport builds an Error from a transport-level failure.
func WrapTransport(service, op string, err error) *Error {
	return &Error{Service: service, Op: op, Kind: classifyTransport(err), Err: err}
}

func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnavailable
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return KindTransient
	case status >= 500:
		return KindTransient
	default:
		return KindFatal
	}
}

func classifyTransport(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTransient
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindUnavailable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindUnavailable
	}
	return KindFatal
}

// KindOf reports the classification of err, or KindFatal for plain errors.
func KindOf(err error) Kind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindFatal
}

// IsUnavailable reports whether err means the collaborator cannot be
// reached or refuses credentials.
func IsUnavailable(err error) bool {
	return KindOf(err) == KindUnavailable
}

// IsTransient reports whether err is likely to clear on a later pass.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}
