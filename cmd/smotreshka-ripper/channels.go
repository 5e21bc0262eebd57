package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/snapetech/smotreshka-ripper/internal/collector"
)

func newChannelsCommand(a *app) *cobra.Command {
	var (
		streams, asJSON bool
		savePath        string
	)
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List purchased channels",
		Long:  "Log in, list purchased channels and print them. --streams also resolves each stream URL and language.",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			defer a.close()
			if err := a.cfg.ValidateLogin(); err != nil {
				return err
			}
			ctx := cmd.Context()
			client, err := a.login(ctx)
			if err != nil {
				return err
			}
			reg, err := collector.New(client, a.logger, a.metrics, collector.Options{
				Limit:   a.cfg.Limit,
				Streams: streams,
			}).Collect(ctx)
			if err != nil {
				return err
			}
			if savePath != "" {
				if err := reg.Save(savePath); err != nil {
					return err
				}
				a.logger.Info("channel dump written", zap.String("path", savePath))
			}
			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(reg)
			}
			_, err = fmt.Fprintln(a.stdout, channelTable(reg))
			return err
		},
	}
	cmd.Flags().BoolVar(&streams, "streams", false, "resolve stream URL and language per channel")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().StringVar(&savePath, "save", "", "also write the JSON dump to this file")
	cmd.Flags().IntVarP(&a.opts.limit, "limit", "l", 0, "limit the number of channels (0 = all)")
	return cmd
}
