package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/snapetech/smotreshka-ripper/internal/config"
	"github.com/snapetech/smotreshka-ripper/internal/store"
)

func newHistoryCommand(a *app) *cobra.Command {
	var (
		limit int
		runID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List runs archived in the snapshot database",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			defer a.close()
			if a.cfg.SnapshotPath == "" {
				return fmt.Errorf("%w: --snapshot (or SMOTRESHKA_SNAPSHOT_PATH) is required", config.ErrInvalid)
			}
			ctx := cmd.Context()
			s, err := store.Open(ctx, a.cfg.SnapshotPath, a.logger)
			if err != nil {
				return err
			}
			defer s.Close()

			if runID != "" {
				reg, err := s.LoadRegistry(ctx, runID)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(a.stdout, channelTable(reg))
				return err
			}
			runs, err := s.Runs(ctx, limit)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, runTable(runs))
			return err
		},
	}
	cmd.Flags().StringVar(&a.opts.snapshot, "snapshot", "", "SQLite snapshot database")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show (0 = all)")
	cmd.Flags().StringVar(&runID, "run", "", "show the channels archived by this run")
	return cmd
}

func runTable(runs []store.Run) string {
	headers := []string{"Run", "Started", "Duration", "Mode", "Channels", "Programmes", "Streams"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignRight}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.Started().Format(time.DateTime),
			r.Duration().String(),
			r.Mode,
			strconv.Itoa(r.Channels),
			strconv.Itoa(r.Programmes),
			strconv.Itoa(r.WithStream),
		})
	}
	return renderTable(headers, rows, aligns)
}
