package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snapetech/smotreshka-ripper/internal/health"
	"github.com/snapetech/smotreshka-ripper/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the generated playlist, listing and metrics over HTTP",
		Long: "Serve /playlist.m3u and /epg.xml from the output paths plus /metrics and /healthz. " +
			"Files are read on every request, so a scheduled rip can replace them while serving. " +
			"/healthz fails when a file is missing or older than --max-age.",
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			defer a.close()
			a.metrics.WithProcessCollectors()
			return a.serve(cmd.Context(), maxAge)
		},
	}
	addOutputFlags(cmd, &a.opts)
	cmd.Flags().StringVar(&a.opts.addr, "addr", "", "listen address (default :8080)")
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "report unhealthy when a file is older than this (0 = never)")
	return cmd
}

func (a *app) serve(ctx context.Context, maxAge time.Duration) error {
	srv := &http.Server{
		Addr:              a.cfg.ServeAddr,
		Handler:           newServeHandler(a.cfg.PlaylistOutput, a.cfg.XMLTVOutput, maxAge, a.metrics, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serving", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	a.logger.Info("server stopped")
	return nil
}

func newServeHandler(playlistPath, xmltvPath string, maxAge time.Duration, m *metrics.Metrics, logger *zap.Logger) http.Handler {
	artifacts := []health.Artifact{
		{Name: "playlist", Path: playlistPath},
		{Name: "listing", Path: xmltvPath},
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(accessLog(m, logger))
	r.Get("/playlist.m3u", serveFile(playlistPath, "audio/x-mpegurl"))
	r.Get("/epg.xml", serveFile(xmltvPath, "application/xml"))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, err := health.Check(artifacts, maxAge, time.Now()); err != nil {
			logger.Warn("unhealthy", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(err.Error() + "\n"))
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})
	return r
}

// serveFile serves the artifact at path. A missing file is 404 so clients can
// tell "not ripped yet" from a server fault.
func serveFile(path, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "cannot open file", http.StatusInternalServerError)
			return
		}
		defer f.Close()
		st, err := f.Stat()
		if err != nil {
			http.Error(w, "cannot stat file", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType+"; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		http.ServeContent(w, r, filepath.Base(path), st.ModTime(), f)
	}
}

// accessLog counts responses by route pattern and logs each request at debug.
func accessLog(m *metrics.Metrics, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			m.Served(route, ww.Status())
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
