// Command smotreshka-ripper logs in to Smotreshka and writes the purchased
// live channels as an M3U-Plus playlist and an XMLTV listing.
//
//	smotreshka-ripper  -u USER -p PASS [-m all|epg|m3u] [-l N] [-o]   rip playlist and listing
//	channels           print purchased channels as a table or JSON
//	history            list runs archived with --snapshot
//	serve              serve the generated files and /metrics over HTTP
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/snapetech/smotreshka-ripper/internal/catalog"
	"github.com/snapetech/smotreshka-ripper/internal/config"
	"github.com/snapetech/smotreshka-ripper/internal/logging"
	"github.com/snapetech/smotreshka-ripper/internal/output"
	"github.com/snapetech/smotreshka-ripper/internal/smotreshka"
)

var version = "0.1.0"

const (
	generatorURL = "https://github.com/freefd/smotreshka-livetv-ripper"
)

func generatorName() string {
	return "Smotreshka-Live-TV-Ripper-v" + version
}

// sysexits.h
const (
	exitOK          = 0
	exitUsage       = 64
	exitDataErr     = 65
	exitUnavailable = 69
	exitOSErr       = 71
	exitCantCreat   = 73
	exitInterrupted = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, "smotreshka-ripper:", logging.RedactText(err.Error()))
	}
	return exitCode(err)
}

// usageError marks bad flags or arguments.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var (
		usage   *usageError
		auth    *smotreshka.AuthError
		data    *catalog.DataError
		network *smotreshka.NetworkError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.As(err, &usage):
		return exitUsage
	case errors.Is(err, output.ErrExists), errors.Is(err, output.ErrLocked):
		return exitCantCreat
	case errors.As(err, &auth), errors.As(err, &data), errors.Is(err, config.ErrInvalid):
		return exitDataErr
	case errors.As(err, &network):
		return exitUnavailable
	default:
		return exitOSErr
	}
}
