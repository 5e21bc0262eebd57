package httpclient

import (
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds every provider call, including reading the body.
	DefaultTimeout         = 60 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 4
)

var defaultTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        16,
	MaxIdleConnsPerHost: MaxIdleConnsPerHost,
	IdleConnTimeout:     DefaultIdleConnTimeout,
}

// Default returns a client with DefaultTimeout and a decompressing transport.
func Default() *http.Client {
	return WithTimeout(DefaultTimeout)
}

// WithTimeout returns a client with the given timeout on a clone of the shared
// transport, wrapped in DecodingTransport so brotli and gzip bodies arrive decoded.
func WithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &DecodingTransport{Base: defaultTransport.Clone()},
	}
}
