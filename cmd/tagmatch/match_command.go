package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tagmatch/internal/config"
	"tagmatch/internal/console"
	"tagmatch/internal/logger"
	"tagmatch/internal/metadata"
	"tagmatch/internal/pipeline"
	"tagmatch/internal/progress"
	"tagmatch/internal/shutdown"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var recursive, apply, dryRun bool

	cmd := &cobra.Command{
		Use:   "match <dir>",
		Short: "Search metadata for every directory of audio files under dir",
		Example: `  # Preview matches for an album folder
  tagmatch match ~/Music/Queen/Innuendo

  # Walk a whole library, track by track, and write the chosen tags
  tagmatch match -r --mode track --apply ~/Music`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("recursive") {
				cfg.Recursive = recursive
			}
			if apply {
				cfg.Apply = true
			}
			if dryRun {
				cfg.Apply = false
			}

			log := ctx.logger()

			sh := shutdown.New(cmd.Context())
			sh.Listen()
			defer sh.Shutdown()

			return runMatch(cmd, sh, cfg, log, config.ExpandHome(args[0]))
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Descend into subdirectories")
	cmd.Flags().BoolVarP(&apply, "apply", "a", false, "Write the chosen metadata to the files")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Never write tags, even if apply is set in the config")
	cmd.MarkFlagsMutuallyExclusive("apply", "dry-run")
	return cmd
}

func runMatch(cmd *cobra.Command, sh *shutdown.Handler, cfg config.Config, log *logger.Logger, dir string) error {
	prompter := console.New(cmd.InOrStdin(), cmd.OutOrStdout())

	var bar *progress.Bar
	var total int
	finishBar := func() {
		if bar != nil {
			bar.Finish()
			log.SetProgressBar(false)
			bar = nil
		}
	}
	sh.AddCleanup(finishBar)

	var label string
	hooks := pipeline.Hooks{
		OnUnits: func(n int) { total = n },
		OnUnitStart: func(i int, u pipeline.Unit, providers int) {
			if cfg.Verbose {
				return
			}
			label = fmt.Sprintf("[%d/%d] %s", i, total, u.Title)
			bar = progress.New(providers, label, cmd.ErrOrStderr())
			log.SetProgressBar(true)
		},
		OnProviderDone: func(name string, matches int) {
			log.Debug("%s returned %d matches", name, matches)
			if bar != nil {
				bar.Describe(fmt.Sprintf("%s (%s: %d)", label, name, matches))
				bar.Increment()
			}
		},
		OnUnitDone: finishBar,
		Choose:     prompter.Choose,
	}

	stats, err := pipeline.Run(sh.Context(), cfg, log, dir, hooks)
	finishBar()
	if err != nil {
		return err
	}

	unit := "directories"
	if cfg.SearchMode() == metadata.ModeTrack {
		unit = "tracks"
	}
	summary := fmt.Sprintf("Resolved %d of %d %s (%d skipped)", stats.Resolved, stats.Units, unit, stats.Skipped)
	if cfg.Apply {
		summary += fmt.Sprintf(", tagged %d files", stats.Applied)
	}
	fmt.Fprintln(cmd.OutOrStdout(), color.New(color.Bold).Sprint(summary))

	if stats.Failed > 0 {
		return fmt.Errorf("%d files could not be tagged, see the log for details", stats.Failed)
	}
	log.Info("=== Process completed successfully ===")
	return nil
}
