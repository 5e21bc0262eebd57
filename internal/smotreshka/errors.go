package smotreshka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// AuthError means the provider rejected the login.
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("cannot authenticate: HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// NetworkKind separates connection failures from timeouts.
type NetworkKind string

const (
	NetworkConnection NetworkKind = "connection"
	NetworkTimeout    NetworkKind = "timeout"
)

// NetworkError wraps a transport failure: the request never produced a usable
// response.
type NetworkError struct {
	Kind   NetworkKind
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %s error: %v", e.Method, e.URL, e.Kind, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StatusError is a non-200 response from a data endpoint.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// DecodeError is a 200 response whose body is not the expected JSON.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// classify turns an http.Client error into a NetworkError. Cancellation by the
// caller is returned as-is so it is never mistaken for a provider outage.
func classify(method, rawURL string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	kind := NetworkConnection
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		kind = NetworkTimeout
	}
	return &NetworkError{Kind: kind, Method: method, URL: rawURL, Err: err}
}

// classifyWait maps a pacing failure. rate.Limiter rejects a wait that would
// pass the deadline without wrapping context.DeadlineExceeded.
func classifyWait(ctx context.Context, method, rawURL string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return context.Canceled
	}
	return &NetworkError{Kind: NetworkTimeout, Method: method, URL: rawURL, Err: err}
}
