package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"tagmatch/internal/config"
	"tagmatch/internal/provider"
)

var providerNotes = map[string]string{
	"musicbrainz": "rate limited, retries transient failures",
	"youtube":     "YouTube Music search",
	"spotify":     "anonymous web player token",
	"itunes":      "iTunes Search API",
	"deezer":      "public Deezer API",
}

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the metadata providers and whether they are enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderProviders(cfg))
			return nil
		},
	}
}

func renderProviders(cfg config.Config) string {
	enabled := cfg.EnabledProviders()
	order := make(map[string]int, len(enabled))
	for i, name := range enabled {
		order[name] = i + 1
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Provider", "Enabled", "Order", "Notes"})
	for _, name := range provider.Names() {
		on, pos := "no", ""
		if n, ok := order[name]; ok {
			on, pos = "yes", fmt.Sprint(n)
		}
		tw.AppendRow(table.Row{name, on, pos, providerNotes[name]})
	}
	return tw.Render()
}
