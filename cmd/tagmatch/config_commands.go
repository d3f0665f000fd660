package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tagmatch/internal/config"
)

func newInitConfigCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init-config",
		Short:       "Create a config file with default values",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				target = config.GetDefaultConfigPath()
			} else {
				target = config.ExpandHome(target)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.SaveConfigFile(config.DefaultConfig(), target); err != nil {
				return fmt.Errorf("failed to create config file: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created default config file at: %s\n", target)
			fmt.Fprintln(out, "\nYou can now edit this file to customize your settings.")
			fmt.Fprintln(out, "Available options:")
			fmt.Fprintln(out, "  providers: musicbrainz, youtube, spotify, itunes, deezer (queried in this order)")
			fmt.Fprintln(out, "  mode: album or track")
			fmt.Fprintln(out, "  user_agent: contact string sent to MusicBrainz (required when it is enabled)")
			fmt.Fprintln(out, "  request_timeout / provider_timeout: e.g. 5s, 30s (0 disables the provider bound)")
			return nil
		},
	}

	cmd.Flags().StringVar(&targetPath, "path", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}
