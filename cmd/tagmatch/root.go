package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:   "tagmatch",
		Short: "Find and apply metadata for audio files from online catalogs",
		Long: `tagmatch searches MusicBrainz, YouTube Music, Spotify, iTunes and Deezer
for the tracks in a directory, lets you pick the right release and writes
its tags back to the files.

Config file locations (checked in order):
  ./tagmatch.yaml
  ~/.config/tagmatch/config.yaml
  ~/.tagmatch.yaml

Logging:
  Normal mode: progress bar shown, detailed logs saved to ~/.local/share/tagmatch/logs/
  Verbose mode: all output to stdout, no progress bar, no file logging`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig(cmd)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "Configuration file path")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Show detailed output")
	pf.StringSliceVarP(&flags.providers, "providers", "p", nil, "Providers to enable; queried in registration order (default from config, empty means all)")
	pf.StringVarP(&flags.mode, "mode", "m", "", "Search mode: album or track")

	rootCmd.AddCommand(newMatchCommand(ctx))
	rootCmd.AddCommand(newSearchCommand(ctx))
	rootCmd.AddCommand(newProvidersCommand(ctx))
	rootCmd.AddCommand(newInitConfigCommand())

	return rootCmd
}
