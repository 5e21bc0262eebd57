package main

import (
	"io"

	"github.com/spf13/cobra"
)

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:           "smotreshka-ripper",
		Short:         "Rip Smotreshka live TV into an M3U playlist and an XMLTV listing",
		Version:       version,
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			defer a.close()
			return a.rip(cmd.Context())
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.opts.configPath, "config", "c", "", "TOML configuration file")
	pf.StringVarP(&a.opts.username, "username", "u", "", "user name to login")
	pf.StringVarP(&a.opts.password, "password", "p", "", "password to login")
	pf.StringVar(&a.opts.credentialsFile, "credentials-file", "", `file with "Username:" and "Password:" lines`)
	pf.StringVar(&a.opts.baseURL, "base-url", "", "provider API base URL")
	pf.Float64Var(&a.opts.rate, "rate", 0, "maximum API requests per second (0 = unpaced)")
	pf.CountVarP(&a.opts.verbosity, "verbose", "v", "verbose output; -vv for debug")
	pf.StringVar(&a.opts.logFormat, "log-format", "", "log format: console or json")

	f := rootCmd.Flags()
	addOutputFlags(rootCmd, &a.opts)
	f.IntVarP(&a.opts.limit, "limit", "l", 0, "limit the number of channels for processing (0 = all)")
	f.StringVarP(&a.opts.mode, "mode", "m", "", "generator mode: all, epg or m3u (default all)")
	f.BoolVarP(&a.opts.overwrite, "overwrite", "o", false, "allow overwriting existing output files")
	f.StringVar(&a.opts.snapshot, "snapshot", "", "archive the run in this SQLite database")
	f.StringVar(&a.opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")

	rootCmd.AddCommand(newChannelsCommand(a))
	rootCmd.AddCommand(newHistoryCommand(a))
	rootCmd.AddCommand(newServeCommand(a))
	return rootCmd
}

func addOutputFlags(cmd *cobra.Command, o *options) {
	cmd.Flags().StringVar(&o.playlistOutput, "m3u-output", "", "generated M3U file path (default smotreshka.m3u)")
	cmd.Flags().StringVar(&o.xmltvOutput, "xmltv-output", "", "generated XMLTV file path (default smotreshka.xmltv.xml)")
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return &usageError{err: err}
	}
	return nil
}
