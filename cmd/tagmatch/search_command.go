package main

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"tagmatch/internal/console"
	"tagmatch/internal/metadata"
	"tagmatch/internal/pipeline"
	"tagmatch/internal/shutdown"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Run a free-text search across all providers",
		Example: `  tagmatch search queen innuendo
  tagmatch search --json "bohemian rhapsody"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			log := ctx.logger()

			sh := shutdown.New(cmd.Context())
			sh.Listen()
			defer sh.Shutdown()

			query := strings.Join(args, " ")
			prompter := console.New(cmd.InOrStdin(), cmd.OutOrStdout())
			hooks := pipeline.Hooks{Choose: prompter.Choose}

			m, ok, err := pipeline.Search(sh.Context(), cfg, log, query, hooks)
			if err != nil {
				return err
			}
			if !ok {
				log.Info("No match selected")
				return nil
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(m, "", "  ")
				if err != nil {
					return fmt.Errorf("encode match: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			fmt.Fprintf(out, "Selected: %s [%s]\n", console.FormatCandidate(metadata.Candidate{MatchResult: m}), m.Provider)
			if len(m.Tracks) > 0 {
				fmt.Fprintln(out, console.RenderTracks(m.Tracks))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the selected match as JSON")
	return cmd
}
