package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/snapetech/smotreshka-ripper/internal/config"
	"github.com/snapetech/smotreshka-ripper/internal/logging"
	"github.com/snapetech/smotreshka-ripper/internal/metrics"
	"github.com/snapetech/smotreshka-ripper/internal/safeurl"
	"github.com/snapetech/smotreshka-ripper/internal/smotreshka"
)

// options are the raw flag values; only flags the user set override config.
type options struct {
	configPath      string
	username        string
	password        string
	credentialsFile string
	baseURL         string
	rate            float64
	verbosity       int
	logFormat       string

	playlistOutput string
	xmltvOutput    string
	limit          int
	mode           string
	overwrite      bool
	snapshot       string
	metricsFile    string
	addr           string
}

// app carries what every command shares once setup has run.
type app struct {
	opts   options
	stdout io.Writer
	stderr io.Writer

	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	runID   string
}

// setup layers configuration (.env, TOML, environment, flags) and builds the
// logger and metrics registry.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadEnvFile(".env"); err != nil {
		return err
	}
	cfg, err := config.Load(a.opts.configPath)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	if err := a.applyFlags(cmd.Flags(), cfg); err != nil {
		return err
	}
	if err := cfg.FillCredentials(); err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	logger, err := logging.New(logging.Options{Verbosity: cfg.Verbosity, Format: cfg.LogFormat, Output: a.stderr})
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	a.cfg = cfg
	a.runID = uuid.NewString()
	a.logger = logger.With(zap.String(logging.FieldRunID, a.runID))
	a.metrics = metrics.New()
	a.logger.Debug("configuration loaded",
		zap.String("base_url", safeurl.Redacted(cfg.BaseURL)),
		zap.String("username", cfg.Username),
		zap.String("mode", string(cfg.Mode)),
		zap.Int("limit", cfg.Limit))
	return nil
}

func (a *app) applyFlags(fs *pflag.FlagSet, cfg *config.Config) error {
	if fs.Changed("username") {
		cfg.Username = a.opts.username
	}
	if fs.Changed("password") {
		cfg.Password = a.opts.password
	}
	if fs.Changed("credentials-file") {
		cfg.CredentialsFile = a.opts.credentialsFile
	}
	if fs.Changed("base-url") {
		cfg.BaseURL = a.opts.baseURL
	}
	if fs.Changed("rate") {
		cfg.RequestRate = a.opts.rate
	}
	if fs.Changed("verbose") {
		cfg.Verbosity = a.opts.verbosity
	}
	if fs.Changed("log-format") {
		cfg.LogFormat = a.opts.logFormat
	}
	if fs.Changed("m3u-output") {
		cfg.PlaylistOutput = a.opts.playlistOutput
	}
	if fs.Changed("xmltv-output") {
		cfg.XMLTVOutput = a.opts.xmltvOutput
	}
	if fs.Changed("limit") {
		cfg.Limit = a.opts.limit
	}
	if fs.Changed("mode") {
		m, err := config.ParseMode(a.opts.mode)
		if err != nil {
			return &usageError{err: err}
		}
		cfg.Mode = m
	}
	if fs.Changed("overwrite") {
		cfg.Overwrite = a.opts.overwrite
	}
	if fs.Changed("snapshot") {
		cfg.SnapshotPath = a.opts.snapshot
	}
	if fs.Changed("metrics-file") {
		cfg.MetricsFile = a.opts.metricsFile
	}
	if fs.Changed("addr") {
		cfg.ServeAddr = a.opts.addr
	}
	return nil
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// login returns a client holding an authenticated session.
func (a *app) login(ctx context.Context) (*smotreshka.Client, error) {
	client, err := smotreshka.New(a.cfg.BaseURL,
		smotreshka.WithUserAgent(a.cfg.UserAgent),
		smotreshka.WithRequestRate(a.cfg.RequestRate),
		smotreshka.WithLogger(a.logger),
		smotreshka.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, err
	}
	if err := client.Login(ctx, a.cfg.Username, a.cfg.Password); err != nil {
		return nil, err
	}
	return client, nil
}
