// Package health reports whether the served playlist and listing are present
// and recent enough to be worth serving.
package health

import (
	"errors"
	"fmt"
	"os"
	"time"
)

var (
	ErrMissing = errors.New("artifact missing")
	ErrStale   = errors.New("artifact stale")
)

// Artifact is one generated file watched by the health check.
type Artifact struct {
	Name string
	Path string
}

// Status is the result of inspecting one artifact.
type Status struct {
	Artifact
	ModTime time.Time
	Err     error
}

// Check stats every artifact. maxAge <= 0 disables the staleness check.
// The returned error joins every failing artifact and is nil when all are fine.
func Check(artifacts []Artifact, maxAge time.Duration, now time.Time) ([]Status, error) {
	statuses := make([]Status, 0, len(artifacts))
	var errs []error
	for _, a := range artifacts {
		if a.Path == "" {
			continue
		}
		st := Status{Artifact: a}
		fi, err := os.Stat(a.Path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			st.Err = fmt.Errorf("%s %s: %w", a.Name, a.Path, ErrMissing)
		case err != nil:
			st.Err = fmt.Errorf("%s: %w", a.Name, err)
		default:
			st.ModTime = fi.ModTime()
			if maxAge > 0 && now.Sub(st.ModTime) > maxAge {
				st.Err = fmt.Errorf("%s %s: %w: last written %s ago", a.Name, a.Path, ErrStale, now.Sub(st.ModTime).Round(time.Second))
			}
		}
		if st.Err != nil {
			errs = append(errs, st.Err)
		}
		statuses = append(statuses, st)
	}
	return statuses, errors.Join(errs...)
}
