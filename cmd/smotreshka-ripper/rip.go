package main

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/snapetech/smotreshka-ripper/internal/catalog"
	"github.com/snapetech/smotreshka-ripper/internal/collector"
	"github.com/snapetech/smotreshka-ripper/internal/m3u"
	"github.com/snapetech/smotreshka-ripper/internal/output"
	"github.com/snapetech/smotreshka-ripper/internal/store"
	"github.com/snapetech/smotreshka-ripper/internal/xmltv"
)

// rip is the default command: collect, then write the listing and playlist
// the mode asks for.
func (a *app) rip(ctx context.Context) (err error) {
	cfg := a.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}
	// Refuse before any network traffic.
	if err := output.Precheck(cfg.Overwrite, cfg.Outputs()...); err != nil {
		a.logger.Error("target file already exists", zap.Error(err))
		return err
	}

	started := time.Now()
	defer func() {
		a.metrics.RunFinished(started, err == nil)
		if cfg.MetricsFile != "" {
			if werr := a.metrics.WriteTextfile(cfg.MetricsFile); werr != nil {
				a.logger.Warn("could not write metrics textfile", zap.String("path", cfg.MetricsFile), zap.Error(werr))
			}
		}
	}()

	client, err := a.login(ctx)
	if err != nil {
		return err
	}
	reg, err := collector.New(client, a.logger, a.metrics, collector.Options{
		Limit:   cfg.Limit,
		EPG:     cfg.Mode.WantEPG(),
		Streams: cfg.Mode.WantPlaylist(),
	}).Collect(ctx)
	if err != nil {
		return err
	}

	if cfg.Mode.WantEPG() {
		enc := xmltv.Encoder{Generator: xmltv.Generator{Name: generatorName(), URL: generatorURL}}
		if err := output.WriteFile(cfg.XMLTVOutput, cfg.Overwrite, func(w io.Writer) error {
			return enc.Encode(w, reg)
		}); err != nil {
			return err
		}
		a.logger.Info("XMLTV listing written", zap.String("path", cfg.XMLTVOutput))
	}
	if cfg.Mode.WantPlaylist() {
		if err := output.WriteFile(cfg.PlaylistOutput, cfg.Overwrite, func(w io.Writer) error {
			return m3u.Encode(w, reg)
		}); err != nil {
			return err
		}
		a.logger.Info("M3U playlist written", zap.String("path", cfg.PlaylistOutput))
	}

	if cfg.SnapshotPath != "" {
		if err := a.archive(ctx, started, reg); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) archive(ctx context.Context, started time.Time, reg *catalog.Registry) error {
	s, err := store.Open(ctx, a.cfg.SnapshotPath, a.logger)
	if err != nil {
		return err
	}
	defer s.Close()
	run := store.Run{
		ID:         a.runID,
		StartedAt:  started.Unix(),
		FinishedAt: time.Now().Unix(),
		Mode:       string(a.cfg.Mode),
	}
	if err := s.SaveRun(ctx, run, reg); err != nil {
		return err
	}
	a.logger.Info("run archived", zap.String("path", a.cfg.SnapshotPath))
	return nil
}
