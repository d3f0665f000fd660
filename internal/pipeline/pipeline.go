package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"tagmatch/internal/config"
	"tagmatch/internal/library"
	"tagmatch/internal/logger"
	"tagmatch/internal/metadata"
	"tagmatch/internal/provider"
	"tagmatch/internal/provider/apiclient"
)

// ChooseFunc lets the operator settle a Selection. ok is false when the
// selection was abandoned.
type ChooseFunc func(ctx context.Context, title string, sel *metadata.Selection) (m metadata.MatchResult, ok bool, err error)

// Unit is what one Selection settles: a whole directory in album mode, a
// single file in track mode.
type Unit struct {
	Dir    string
	Title  string
	Tracks []metadata.LocalTrack
}

// Hooks observe a run. OnUnitStart receives the number of active providers;
// each of them reports once through OnProviderDone while the unit is searched.
type Hooks struct {
	OnUnits        func(total int)
	OnUnitStart    func(index int, u Unit, providers int)
	OnProviderDone func(provider string, matches int)
	OnUnitDone     func()
	OnWarning      func(msg string)
	Choose         ChooseFunc
}

// Stats summarizes a run.
type Stats struct {
	Groups   int
	Units    int
	Resolved int
	Skipped  int
	Applied  int
	Failed   int
}

// buildProviders is swapped out in tests.
var buildProviders = provider.Build

// applyMatch is swapped out in tests.
var applyMatch = library.Apply

// NewOrchestrator builds the active providers for cfg and wraps them in an
// orchestrator. It fails only when no provider could be initialized.
func NewOrchestrator(cfg config.Config, log *logger.Logger, hooks Hooks) (*metadata.Orchestrator, error) {
	providers, unavailable := buildProviders(cfg, log)
	for _, u := range unavailable {
		warn(log, hooks, u.Error())
	}
	if len(providers) == 0 {
		return nil, errors.New("no metadata provider could be initialized")
	}

	opts := []metadata.Option{
		metadata.WithConcurrency(cfg.Concurrent),
		metadata.WithProviderTimeout(cfg.ProviderTimeout),
	}
	if hooks.OnProviderDone != nil {
		opts = append(opts, metadata.WithProgress(hooks.OnProviderDone))
	}
	return metadata.NewOrchestrator(providers, log, opts...), nil
}

// Run scans dir, lets the operator choose a match for every unit and writes
// it back when cfg.Apply is set.
func Run(ctx context.Context, cfg config.Config, log *logger.Logger, dir string, hooks Hooks) (Stats, error) {
	var stats Stats

	orch, err := NewOrchestrator(cfg, log, hooks)
	if err != nil {
		return stats, err
	}

	log.Info("=== Scanning %s ===", dir)
	tracks, err := library.Scan(dir, cfg.Recursive, log)
	if err != nil {
		return stats, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	if len(tracks) == 0 {
		return stats, fmt.Errorf("no audio files found in %s", dir)
	}

	mode := cfg.SearchMode()
	groups := library.GroupByDir(tracks)
	units := Units(groups, mode)
	stats.Groups = len(groups)
	stats.Units = len(units)
	log.Info("Found %d tracks in %d directories", len(tracks), len(groups))
	if hooks.OnUnits != nil {
		hooks.OnUnits(len(units))
	}

	artwork := apiclient.New(apiclient.Options{Timeout: cfg.RequestTimeout, UserAgent: cfg.UserAgent})
	active := len(orch.Providers())

	for i, u := range units {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if hooks.OnUnitStart != nil {
			hooks.OnUnitStart(i+1, u, active)
		}

		set := orch.SearchAll(ctx, u.Tracks, mode)
		log.Debug("%s: %d matches from %d providers", u.Title, set.Total(), set.Len())
		if hooks.OnUnitDone != nil {
			hooks.OnUnitDone()
		}

		m, ok, err := choose(ctx, hooks, u.Title, metadata.NewSelection(set, u.Tracks, orch))
		if err != nil {
			return stats, err
		}
		if !ok {
			log.Debug("%s: skipped", u.Title)
			stats.Skipped++
			continue
		}
		stats.Resolved++
		log.Info("%s: %s - %s [%s]", u.Title, m.Artist, m.Title, m.Provider)

		if !cfg.Apply {
			log.Debug("%s: apply disabled, leaving files untouched", u.Title)
			continue
		}
		if m.Kind == metadata.KindTrack && len(u.Tracks) > 1 {
			warn(log, hooks, fmt.Sprintf("%s: a track match cannot tag %d files, nothing written", u.Title, len(u.Tracks)))
			continue
		}
		applyUnit(ctx, cfg, log, hooks, artwork, u, m, &stats)
	}

	return stats, nil
}

// applyUnit writes m to every track of u, fetching the cover once.
func applyUnit(ctx context.Context, cfg config.Config, log *logger.Logger, hooks Hooks, artwork *apiclient.Client, u Unit, m metadata.MatchResult, stats *Stats) {
	var cover []byte
	if cfg.Artwork && m.ArtworkURL != "" {
		var err error
		if cover, err = library.FetchArtwork(ctx, artwork, m.ArtworkURL); err != nil {
			warn(log, hooks, fmt.Sprintf("%s: %v", u.Title, err))
		}
	}
	for _, t := range u.Tracks {
		if err := applyMatch(t, m); err != nil {
			warn(log, hooks, fmt.Sprintf("failed to tag %s: %v", t.Filename, err))
			stats.Failed++
			continue
		}
		if err := library.EmbedArtwork(t.Path, cover); err != nil {
			warn(log, hooks, err.Error())
		}
		stats.Applied++
	}
}

// Units splits groups into the selections a run makes. Album mode keeps each
// directory whole; track mode gives every file its own selection.
func Units(groups []library.Group, mode metadata.Mode) []Unit {
	var units []Unit
	for _, g := range groups {
		if mode != metadata.ModeTrack {
			units = append(units, Unit{Dir: g.Dir, Title: groupTitle(g), Tracks: g.Tracks})
			continue
		}
		for _, t := range g.Tracks {
			units = append(units, Unit{Dir: g.Dir, Title: trackTitle(g.Dir, t), Tracks: []metadata.LocalTrack{t}})
		}
	}
	return units
}

// Search runs a free-text manual search outside any directory scan.
func Search(ctx context.Context, cfg config.Config, log *logger.Logger, query string, hooks Hooks) (metadata.MatchResult, bool, error) {
	orch, err := NewOrchestrator(cfg, log, hooks)
	if err != nil {
		return metadata.MatchResult{}, false, err
	}

	set := orch.ManualSearch(ctx, query, nil)
	return choose(ctx, hooks, query, metadata.NewSelection(set, nil, orch))
}

func choose(ctx context.Context, hooks Hooks, title string, sel *metadata.Selection) (metadata.MatchResult, bool, error) {
	if hooks.Choose == nil {
		return metadata.MatchResult{}, false, nil
	}
	return hooks.Choose(ctx, title, sel)
}

func groupTitle(g library.Group) string {
	first := g.Tracks[0].Tags
	count := fmt.Sprintf("%d tracks", len(g.Tracks))
	if len(g.Tracks) == 1 {
		count = "1 track"
	}
	switch {
	case first.Album != "" && first.Artist != "":
		return fmt.Sprintf("%s (%s - %s, %s)", filepath.Base(g.Dir), first.Artist, first.Album, count)
	default:
		return fmt.Sprintf("%s (%s)", filepath.Base(g.Dir), count)
	}
}

func trackTitle(dir string, t metadata.LocalTrack) string {
	name := filepath.Join(filepath.Base(dir), t.Filename)
	if t.Tags.Title != "" && t.Tags.Artist != "" {
		return fmt.Sprintf("%s (%s - %s)", name, t.Tags.Artist, t.Tags.Title)
	}
	return name
}

func warn(log *logger.Logger, hooks Hooks, msg string) {
	log.Warn("%s", msg)
	if hooks.OnWarning != nil {
		hooks.OnWarning(msg)
	}
}
