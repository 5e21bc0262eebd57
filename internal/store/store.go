// Package store archives each run's registry in a SQLite database so earlier
// catalogs can be listed and compared. It is an output artifact only; runs
// never read it back to skip API calls.
package store

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/snapetech/smotreshka-ripper/internal/catalog"
)

//go:embed migrations/*.sql
var migrations embed.FS

const driverName = "sqlite"

func init() {
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

// Run is one row of the runs table.
type Run struct {
	ID         string `db:"run_id"`
	StartedAt  int64  `db:"started_at"`
	FinishedAt int64  `db:"finished_at"`
	Mode       string `db:"mode"`
	Channels   int    `db:"channels"`
	Programmes int    `db:"programmes"`
	WithStream int    `db:"with_stream"`
}

// Started returns StartedAt as a time.
func (r Run) Started() time.Time { return time.Unix(r.StartedAt, 0) }

// Duration returns the wall time of the run.
func (r Run) Duration() time.Duration {
	return time.Duration(r.FinishedAt-r.StartedAt) * time.Second
}

type channelRow struct {
	RunID       string `db:"run_id"`
	Position    int    `db:"position"`
	ChannelID   string `db:"channel_id"`
	Number      int    `db:"number"`
	Title       string `db:"title"`
	GroupTitles string `db:"group_titles"` // JSON array
	Logo        string `db:"logo"`
	Language    string `db:"language"`
	URL         string `db:"url"`
}

type programmeRow struct {
	RunID       string `db:"run_id"`
	ChannelID   string `db:"channel_id"`
	Position    int    `db:"position"`
	StartsAt    int64  `db:"starts_at"`
	StopsAt     int64  `db:"stops_at"`
	Title       string `db:"title"`
	Description string `db:"description"`
	Icon        string `db:"icon"`
}

type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: logger.Named("store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{s.logger.Sugar()})
	if err := goose.SetDialect(driverName); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	if err := goose.Up(s.db.DB, "migrations"); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores run and a copy of every channel and programme in reg in one
// transaction. run.Channels, Programmes and WithStream are filled from reg.
func (s *Store) SaveRun(ctx context.Context, run Run, reg *catalog.Registry) (err error) {
	run.Channels = reg.Len()
	run.Programmes, run.WithStream = reg.Stats()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.NamedExecContext(ctx, `INSERT INTO runs
		(run_id, started_at, finished_at, mode, channels, programmes, with_stream)
		VALUES (:run_id, :started_at, :finished_at, :mode, :channels, :programmes, :with_stream)`, run); err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}
	for i, ch := range reg.Channels() {
		groups, mErr := json.Marshal(ch.Groups)
		if mErr != nil {
			return fmt.Errorf("store: channel %s groups: %w", ch.ID, mErr)
		}
		row := channelRow{
			RunID: run.ID, Position: i, ChannelID: ch.ID, Number: ch.Number, Title: ch.Title,
			GroupTitles: string(groups), Logo: ch.Logo, Language: ch.Language, URL: ch.URL,
		}
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO channels
			(run_id, position, channel_id, number, title, group_titles, logo, language, url)
			VALUES (:run_id, :position, :channel_id, :number, :title, :group_titles, :logo, :language, :url)`, row); err != nil {
			return fmt.Errorf("store: insert channel %s: %w", ch.ID, err)
		}
		for j, p := range ch.Programs {
			prow := programmeRow{
				RunID: run.ID, ChannelID: ch.ID, Position: j, StartsAt: p.Start, StopsAt: p.Stop,
				Title: p.Title, Description: p.Desc, Icon: p.Icon,
			}
			if _, err = tx.NamedExecContext(ctx, `INSERT INTO programmes
				(run_id, channel_id, position, starts_at, stops_at, title, description, icon)
				VALUES (:run_id, :channel_id, :position, :starts_at, :stops_at, :title, :description, :icon)`, prow); err != nil {
				return fmt.Errorf("store: insert programme for %s: %w", ch.ID, err)
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	s.logger.Debug("run archived", zap.String("run_id", run.ID), zap.Int("channels", run.Channels))
	return nil
}

// Runs returns up to limit runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	var runs []Run
	err := s.db.SelectContext(ctx, &runs, `SELECT run_id, started_at, finished_at, mode, channels, programmes, with_stream
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	return runs, nil
}

// LoadRegistry rebuilds the registry archived for runID. Programme categories
// are restored from the owning channel's groups.
func (s *Store) LoadRegistry(ctx context.Context, runID string) (*catalog.Registry, error) {
	var rows []channelRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM channels WHERE run_id = ? ORDER BY position`, runID); err != nil {
		return nil, fmt.Errorf("store: load channels: %w", err)
	}
	reg := catalog.NewRegistry()
	for _, r := range rows {
		var groups []string
		if err := json.Unmarshal([]byte(r.GroupTitles), &groups); err != nil {
			return nil, fmt.Errorf("store: channel %s groups: %w", r.ChannelID, err)
		}
		reg.Put(&catalog.Channel{
			ID: r.ChannelID, Number: r.Number, Title: r.Title, Groups: groups,
			Logo: r.Logo, Language: r.Language, URL: r.URL,
		})
	}
	var progs []programmeRow
	if err := s.db.SelectContext(ctx, &progs, `SELECT * FROM programmes WHERE run_id = ? ORDER BY channel_id, position`, runID); err != nil {
		return nil, fmt.Errorf("store: load programmes: %w", err)
	}
	for _, p := range progs {
		ch := reg.Get(p.ChannelID)
		if ch == nil {
			continue
		}
		ch.AddPrograms(catalog.Program{
			ChannelID: p.ChannelID, Start: p.StartsAt, Stop: p.StopsAt, Title: p.Title,
			Desc: p.Description, Category: append([]string(nil), ch.Groups...), Icon: p.Icon,
		})
	}
	return reg, nil
}

// gooseLogger routes migration output through zap.
type gooseLogger struct {
	s *zap.SugaredLogger
}

func (l gooseLogger) Fatal(v ...interface{})                 { l.s.Fatal(v...) }
func (l gooseLogger) Fatalf(format string, v ...interface{}) { l.s.Fatalf(format, v...) }
func (l gooseLogger) Print(v ...interface{})                 { l.s.Debug(v...) }
func (l gooseLogger) Println(v ...interface{})               { l.s.Debug(v...) }
func (l gooseLogger) Printf(format string, v ...interface{}) { l.s.Debugf(format, v...) }
