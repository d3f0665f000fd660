package metadata

import (
	"context"
	"strings"
	"time"

	"tagmatch/internal/logger"

	"github.com/arunsworld/nursery"
)

// Orchestrator drives the active providers for a batch of local tracks or a
// manual query. A failing provider never stops the others.
type Orchestrator struct {
	providers       []Provider
	logger          *logger.Logger
	concurrent      bool
	providerTimeout time.Duration
	onProviderDone  func(provider string, matches int)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency runs provider calls in parallel when enabled.
// Results are still reported in registration order.
func WithConcurrency(enabled bool) Option {
	return func(o *Orchestrator) { o.concurrent = enabled }
}

// WithProviderTimeout bounds every single search call made to a provider.
// A track-mode batch makes one call per track, each with its own deadline.
func WithProviderTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.providerTimeout = d }
}

// WithProgress registers a hook called once per provider as it finishes.
// It may be called from several goroutines at once.
func WithProgress(fn func(provider string, matches int)) Option {
	return func(o *Orchestrator) { o.onProviderDone = fn }
}

// NewOrchestrator creates an Orchestrator over providers, in registration order.
func NewOrchestrator(providers []Provider, log *logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		providers: providers,
		logger:    log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Providers returns the active providers in registration order.
func (o *Orchestrator) Providers() []Provider {
	return o.providers
}

// SearchAll searches every provider for tracks. In album mode with more than one
// track a single album search is made per provider using the first track's tags;
// otherwise each track is searched on its own and a provider's results are
// concatenated. Only providers with at least one match appear in the result.
func (o *Orchestrator) SearchAll(ctx context.Context, tracks []LocalTrack, mode Mode) ProviderResultSet {
	if len(tracks) == 0 {
		return ProviderResultSet{}
	}

	if mode == ModeAlbum && len(tracks) > 1 {
		first := tracks[0].Tags
		if strings.TrimSpace(first.Album) == "" {
			o.logger.Debug("No album tag on %s, skipping album search", tracks[0].Filename)
			return ProviderResultSet{}
		}
		return o.fanOut(ctx, func(ctx context.Context, p Provider) []MatchResult {
			return o.call(ctx, p, "album search", func(ctx context.Context) ([]MatchResult, error) {
				return p.SearchAlbum(ctx, first.Album, first.Artist)
			})
		})
	}

	return o.fanOut(ctx, func(ctx context.Context, p Provider) []MatchResult {
		var all []MatchResult
		for _, t := range tracks {
			if strings.TrimSpace(t.Tags.Title) == "" {
				o.logger.Debug("No title tag on %s, skipping track search", t.Filename)
				continue
			}
			all = append(all, o.call(ctx, p, "track search", func(ctx context.Context) ([]MatchResult, error) {
				return p.SearchTrack(ctx, t.Tags.Title, t.Tags.Artist)
			})...)
		}
		return all
	})
}

// ManualSearch tries each interpretation of query against every provider and
// keeps, per provider, the results of the first interpretation that matches.
// With more than one track only album searches are made.
func (o *Orchestrator) ManualSearch(ctx context.Context, query string, tracks []LocalTrack) ProviderResultSet {
	variations := Normalize(query)
	albumOriented := len(tracks) > 1

	return o.fanOut(ctx, func(ctx context.Context, p Provider) []MatchResult {
		for _, v := range variations {
			if ctx.Err() != nil {
				return nil
			}
			if matches := o.tryVariation(ctx, p, v, albumOriented); len(matches) > 0 {
				o.logger.Debug("%s: found %d matches using title=%q artist=%q", p.Name(), len(matches), v.Title, v.Artist)
				return matches
			}
		}
		return nil
	})
}

type searchStep struct {
	op     string
	search func(ctx context.Context) ([]MatchResult, error)
}

// tryVariation walks the fixed fallback ladder for one interpretation.
func (o *Orchestrator) tryVariation(ctx context.Context, p Provider, v SearchQuery, albumOriented bool) []MatchResult {
	album := func(artist string) searchStep {
		return searchStep{"album search", func(ctx context.Context) ([]MatchResult, error) {
			return p.SearchAlbum(ctx, v.Title, artist)
		}}
	}
	track := func(artist string) searchStep {
		return searchStep{"track search", func(ctx context.Context) ([]MatchResult, error) {
			return p.SearchTrack(ctx, v.Title, artist)
		}}
	}

	var steps []searchStep
	if albumOriented {
		if v.Artist != "" {
			steps = append(steps, album(v.Artist))
		}
		steps = append(steps, album(""))
	} else {
		if v.Artist != "" {
			steps = append(steps, track(v.Artist), album(v.Artist))
		}
		steps = append(steps, track(""), album(""))
	}

	for _, s := range steps {
		if matches := o.call(ctx, p, s.op, s.search); len(matches) > 0 {
			return matches
		}
	}
	return nil
}

// call runs one provider operation under the per-call timeout, converting
// errors and panics into an empty result.
func (o *Orchestrator) call(ctx context.Context, p Provider, op string, fn func(context.Context) ([]MatchResult, error)) (matches []MatchResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("%s: %s panicked: %v", p.Name(), op, r)
			matches = nil
		}
	}()

	if o.providerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.providerTimeout)
		defer cancel()
	}

	results, err := fn(ctx)
	if err != nil {
		o.logger.Warn("%s: %s failed: %v", p.Name(), op, err)
		return nil
	}
	return results
}

// fanOut runs search once per provider and joins the results in registration order.
func (o *Orchestrator) fanOut(ctx context.Context, search func(context.Context, Provider) []MatchResult) ProviderResultSet {
	results := make([][]MatchResult, len(o.providers))

	run := func(ctx context.Context, i int) {
		p := o.providers[i]
		results[i] = search(ctx, p)
		if o.onProviderDone != nil {
			o.onProviderDone(p.Name(), len(results[i]))
		}
	}

	if o.concurrent && len(o.providers) > 1 {
		jobs := make([]nursery.ConcurrentJob, len(o.providers))
		for i := range o.providers {
			jobs[i] = func(context.Context, chan error) { run(ctx, i) }
		}
		if err := nursery.RunConcurrentlyWithContext(ctx, jobs...); err != nil {
			o.logger.Debug("provider fan-out: %v", err)
		}
	} else {
		for i := range o.providers {
			run(ctx, i)
		}
	}

	var set ProviderResultSet
	for i, p := range o.providers {
		set.Add(p.Name(), results[i])
	}
	return set
}
