// Package safeurl validates user-supplied endpoint URLs before any request is
// made against them.
package safeurl

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	ErrScheme = errors.New("scheme must be http or https")
	ErrHost   = errors.New("host must be set")
)

// Check returns nil if raw is an absolute http(s) URL with a host. file://,
// ftp:// and scheme-less values are rejected so a misconfigured base URL can
// never reach local files.
func Check(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("url %q: %w", raw, err)
	}
	if s := parsed.Scheme; s != "http" && s != "https" {
		return fmt.Errorf("url %q: %w", raw, ErrScheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("url %q: %w", raw, ErrHost)
	}
	return nil
}

// Redacted returns u with any userinfo password masked, for logging.
func Redacted(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	return parsed.Redacted()
}
