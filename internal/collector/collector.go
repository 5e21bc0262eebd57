// Package collector builds the channel registry from the provider API in three
// sequential phases: catalog listing, EPG enrichment and stream enrichment.
package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/snapetech/smotreshka-ripper/internal/catalog"
	"github.com/snapetech/smotreshka-ripper/internal/logging"
	"github.com/snapetech/smotreshka-ripper/internal/metrics"
	"github.com/snapetech/smotreshka-ripper/internal/smotreshka"
)

// AutoRendition is the rendition id of the adaptive stream.
const AutoRendition = "Auto"

// API is the subset of the session client the collector drives.
type API interface {
	Channels(ctx context.Context) (*smotreshka.ChannelsResponse, error)
	Programs(ctx context.Context, channelID string) (*smotreshka.ProgramsResponse, error)
	PlaybackInfo(ctx context.Context, channelID string) (*smotreshka.PlaybackInfoResponse, error)
}

// Options selects the optional phases.
type Options struct {
	Limit   int  // keep at most Limit purchased channels; 0 keeps all
	EPG     bool // phase 2
	Streams bool // phase 3
}

type Collector struct {
	api     API
	logger  *zap.Logger
	metrics *metrics.Metrics
	opts    Options
}

// New returns a collector. logger may be nil.
func New(api API, logger *zap.Logger, m *metrics.Metrics, opts Options) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{api: api, logger: logger.Named("collector"), metrics: m, opts: opts}
}

// Collect runs the enabled phases and returns the registry. Phase 1 failures
// and invalid records are returned as errors; per-channel phase 2 and 3
// failures are logged and leave the channel partially populated.
func (c *Collector) Collect(ctx context.Context) (*catalog.Registry, error) {
	reg, err := c.listChannels(ctx)
	if err != nil {
		return nil, err
	}
	if c.opts.EPG {
		if err := c.enrichPrograms(ctx, reg); err != nil {
			return nil, err
		}
	}
	if c.opts.Streams {
		if err := c.enrichStreams(ctx, reg); err != nil {
			return nil, err
		}
	}
	programs, withStream := reg.Stats()
	c.metrics.SetCollected(reg.Len(), programs, withStream)
	c.logger.Info("collected channels",
		zap.Int("channels", reg.Len()),
		zap.Int("programs", programs),
		zap.Int("with_stream", withStream))
	return reg, nil
}

func (c *Collector) listChannels(ctx context.Context) (*catalog.Registry, error) {
	resp, err := c.api.Channels(ctx)
	if err != nil {
		var de *smotreshka.DecodeError
		if errors.As(err, &de) {
			return nil, &catalog.DataError{Record: "catalog", Field: "channels", Err: err}
		}
		return nil, fmt.Errorf("list channels: %w", err)
	}
	if resp == nil || len(resp.Channels) == 0 {
		return nil, &catalog.DataError{Record: "catalog", Field: "channels", Err: catalog.ErrEmptyCatalog}
	}

	reg := catalog.NewRegistry()
	for _, entry := range resp.Channels {
		if !entry.Info.PurchaseInfo.Bought {
			continue
		}
		ch, err := channelFromEntry(entry)
		if err != nil {
			return nil, err
		}
		if !reg.Put(ch) {
			c.logger.Warn("duplicate channel id in catalog, keeping the later entry",
				zap.String(logging.FieldChannel, ch.ID))
		}
		c.logger.Debug("channel added",
			zap.String(logging.FieldChannel, ch.ID),
			zap.Int("number", ch.Number),
			zap.String(logging.FieldTitle, ch.Title))
		if c.opts.Limit > 0 && reg.Len() >= c.opts.Limit {
			c.logger.Debug("channel limit reached", zap.Int("limit", c.opts.Limit))
			break
		}
	}
	if reg.Len() == 0 {
		return nil, &catalog.DataError{Record: "catalog", Field: "purchaseInfo.bought", Err: catalog.ErrNoPurchasedChannels}
	}
	c.logger.Info("purchased channels listed",
		zap.Int("catalog", len(resp.Channels)),
		zap.Int("purchased", reg.Len()))
	return reg, nil
}

func channelFromEntry(entry smotreshka.ChannelEntry) (*catalog.Channel, error) {
	var id string
	if entry.ID != nil {
		id = *entry.ID
	}
	if entry.Info.MetaInfo.Title == nil {
		return nil, &catalog.DataError{Record: "channel", ID: id, Field: "title", Err: catalog.ErrMissingField}
	}
	number, title, err := catalog.SplitTitle(*entry.Info.MetaInfo.Title)
	if err != nil {
		var de *catalog.DataError
		if errors.As(err, &de) {
			de.ID = id
		}
		return nil, err
	}
	return catalog.NewChannel(id, number, title, entry.Info.MetaInfo.Genres, entry.Info.MediaInfo.FirstThumbnail())
}

func (c *Collector) enrichPrograms(ctx context.Context, reg *catalog.Registry) error {
	for _, ch := range reg.Channels() {
		if err := ctx.Err(); err != nil {
			return err
		}
		log := c.logger.With(zap.String(logging.FieldPhase, "epg"), zap.String(logging.FieldChannel, ch.ID))
		resp, err := c.api.Programs(ctx, ch.ID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			log.Warn("could not fetch programs", zap.String(logging.FieldTitle, ch.Title), zap.Error(err))
			c.metrics.EnrichmentFailed("epg")
			continue
		}
		if resp == nil || len(resp.Programs) == 0 {
			log.Warn("no programs returned", zap.String(logging.FieldTitle, ch.Title))
			continue
		}
		programs := make([]catalog.Program, 0, len(resp.Programs))
		for _, p := range resp.Programs {
			prog, err := catalog.NewProgram(catalog.ProgramFields{
				ChannelID: ch.ID,
				Start:     p.ScheduleInfo.Start,
				Stop:      p.ScheduleInfo.End,
				Title:     p.MetaInfo.Title,
				Desc:      p.MetaInfo.Description,
				Category:  ch.Groups,
				Icon:      p.MediaInfo.FirstThumbnail(),
			})
			if err != nil {
				return err
			}
			if ce := log.Check(zap.DebugLevel, "program"); ce != nil {
				ce.Write(
					zap.String(logging.FieldTitle, prog.Title),
					zap.String("start", time.Unix(prog.Start, 0).Format(time.DateTime)),
					zap.String("stop", time.Unix(prog.Stop, 0).Format(time.DateTime)))
			}
			programs = append(programs, prog)
		}
		ch.AddPrograms(programs...)
		log.Debug("programs added", zap.Int("count", len(programs)))
	}
	return nil
}

func (c *Collector) enrichStreams(ctx context.Context, reg *catalog.Registry) error {
	for _, ch := range reg.Channels() {
		if err := ctx.Err(); err != nil {
			return err
		}
		log := c.logger.With(zap.String(logging.FieldPhase, "stream"), zap.String(logging.FieldChannel, ch.ID))
		resp, err := c.api.PlaybackInfo(ctx, ch.ID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			log.Warn("could not fetch playback info", zap.String(logging.FieldTitle, ch.Title), zap.Error(err))
			c.metrics.EnrichmentFailed("stream")
			continue
		}
		c.applyPlayback(log, ch, resp)
	}
	return nil
}

// applyPlayback commits exactly one language and rendition to ch.
func (c *Collector) applyPlayback(log *zap.Logger, ch *catalog.Channel, resp *smotreshka.PlaybackInfoResponse) {
	if resp == nil || len(resp.Languages) == 0 {
		log.Warn("no languages in playback info", zap.String(logging.FieldTitle, ch.Title))
		c.metrics.EnrichmentFailed("stream")
		return
	}
	lang := selectLanguage(resp.Languages)
	if lang.ID != "" {
		if _, err := language.Parse(lang.ID); err != nil {
			log.Debug("language is not a valid BCP 47 tag", zap.String("language", lang.ID), zap.Error(err))
		}
		ch.Language = strings.ReplaceAll(lang.ID, "-", "_")
	}
	if len(lang.Renditions) == 0 {
		log.Warn("no renditions for language", zap.String("language", lang.ID))
		c.metrics.EnrichmentFailed("stream")
		return
	}
	r, ok := selectRendition(lang.Renditions)
	if !ok {
		log.Warn("no default Auto rendition, using the first one",
			zap.String(logging.FieldTitle, ch.Title),
			zap.String("rendition", r.ID))
		c.metrics.RenditionFallback()
	}
	ch.URL = r.URL
	log.Debug("stream selected", zap.String("language", ch.Language), zap.String("rendition", r.ID))
}

// selectLanguage returns the first language flagged default, else the first.
func selectLanguage(langs []smotreshka.Language) smotreshka.Language {
	for _, l := range langs {
		if l.Default {
			return l
		}
	}
	return langs[0]
}

// selectRendition returns the default Auto rendition and true, or the first
// rendition and false. renditions must not be empty.
func selectRendition(renditions []smotreshka.Rendition) (smotreshka.Rendition, bool) {
	for _, r := range renditions {
		if r.ID == AutoRendition && r.Default {
			return r, true
		}
	}
	return renditions[0], false
}
