// Package output writes generated artifacts. Each write holds an advisory
// lock next to the target and replaces the file atomically, so a concurrent
// run or a reader never sees a partial playlist or listing.
package output

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

var (
	ErrExists = errors.New("output file already exists")
	ErrLocked = errors.New("output file is locked by another process")
)

// Precheck fails with ErrExists for the first path that already exists unless
// overwrite is set. It runs before any network traffic.
func Precheck(overwrite bool, paths ...string) error {
	if overwrite {
		return nil
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return fmt.Errorf("%s: %w (use --overwrite)", p, ErrExists)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// WriteFile renders into a temp file beside path and renames it into place
// while holding path+".lock".
func WriteFile(path string, overwrite bool, render func(io.Writer) error) error {
	path = filepath.Clean(path)
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("%s: acquire lock: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", path, ErrLocked)
	}
	// The lock file is never removed so every writer locks the same inode.
	defer lock.Unlock()

	if err := Precheck(overwrite, path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%s: create temp: %w", path, err)
	}
	tmpName := tmp.Name()
	bw := bufio.NewWriter(tmp)
	writeErr := render(bw)
	if writeErr == nil {
		writeErr = bw.Flush()
	}
	if writeErr == nil {
		writeErr = tmp.Sync()
	}
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("%s: write: %w", path, writeErr)
		}
		return fmt.Errorf("%s: close: %w", path, closeErr)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%s: chmod: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%s: rename: %w", path, err)
	}
	return nil
}
