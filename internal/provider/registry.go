// Package provider wires the catalog clients in its sub-packages into the
// active provider set.
//
// The Provider interface is defined in internal/metadata (metadata.Provider),
// following the Go convention of defining interfaces where they are consumed.
// Each sub-package here implements that interface for a specific service.
package provider

import (
	"fmt"

	"tagmatch/internal/config"
	"tagmatch/internal/logger"
	"tagmatch/internal/metadata"
	"tagmatch/internal/provider/apiclient"
	"tagmatch/internal/provider/deezer"
	"tagmatch/internal/provider/itunes"
	"tagmatch/internal/provider/musicbrainz"
	"tagmatch/internal/provider/spotify"
	"tagmatch/internal/provider/youtube"
)

// Factory constructs one provider from the configuration.
type Factory func(cfg config.Config, log *logger.Logger) (metadata.Provider, error)

type registration struct {
	name    string
	factory Factory
}

// registry is kept in registration order; that order is the display order of results.
var registry = []registration{
	{"musicbrainz", newMusicBrainz},
	{"youtube", newYouTube},
	{"spotify", newSpotify},
	{"itunes", newITunes},
	{"deezer", newDeezer},
}

// Names lists the known provider identifiers in registration order.
func Names() []string {
	names := make([]string, len(registry))
	for i, r := range registry {
		names[i] = r.name
	}
	return names
}

// Build constructs the providers enabled in cfg, or all of them when cfg lists
// none. Providers are always queried in registration order. A provider whose constructor
// fails is logged once and reported in the second return value; the others
// still make up the active set.
func Build(cfg config.Config, log *logger.Logger) ([]metadata.Provider, []*metadata.UnavailableError) {
	return build(registry, cfg, log)
}

func build(regs []registration, cfg config.Config, log *logger.Logger) ([]metadata.Provider, []*metadata.UnavailableError) {
	enabled := make(map[string]bool, len(cfg.Providers))
	for _, name := range cfg.Providers {
		enabled[name] = true
	}

	var (
		active      []metadata.Provider
		unavailable []*metadata.UnavailableError
	)
	for _, r := range regs {
		if len(enabled) > 0 && !enabled[r.name] {
			continue
		}
		p, err := safeConstruct(r, cfg, log)
		if err != nil {
			uerr := &metadata.UnavailableError{Provider: r.name, Cause: err}
			log.Warn("%v", uerr)
			unavailable = append(unavailable, uerr)
			continue
		}
		log.Debug("Provider %s initialized", r.name)
		active = append(active, p)
	}
	return active, unavailable
}

func safeConstruct(r registration, cfg config.Config, log *logger.Logger) (p metadata.Provider, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			p, err = nil, fmt.Errorf("panic during initialization: %v", rec)
		}
	}()
	return r.factory(cfg, log)
}

func httpOptions(cfg config.Config) apiclient.Options {
	return apiclient.Options{
		Timeout:   cfg.RequestTimeout,
		UserAgent: cfg.UserAgent,
		Retry:     metadata.NoRetry,
	}
}

func newMusicBrainz(cfg config.Config, log *logger.Logger) (metadata.Provider, error) {
	return musicbrainz.New(musicbrainz.Options{
		UserAgent:         cfg.UserAgent,
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.MusicBrainz.RateLimit,
		Retry: metadata.RetryPolicy{
			MaxAttempts: cfg.MusicBrainz.MaxAttempts,
			Backoff:     cfg.MusicBrainz.Backoff,
			Retryable:   metadata.IsTransient,
		},
	}, log)
}

func newYouTube(cfg config.Config, log *logger.Logger) (metadata.Provider, error) {
	return youtube.New(youtube.Options{
		Language:  cfg.YouTube.Language,
		Timeout:   cfg.RequestTimeout,
		UserAgent: cfg.UserAgent,
	}, log), nil
}

func newSpotify(cfg config.Config, log *logger.Logger) (metadata.Provider, error) {
	return spotify.New(spotify.Options{
		Market:  cfg.Spotify.Market,
		Timeout: cfg.RequestTimeout,
	}, log), nil
}

func newITunes(cfg config.Config, log *logger.Logger) (metadata.Provider, error) {
	return itunes.New(httpOptions(cfg), log), nil
}

func newDeezer(cfg config.Config, log *logger.Logger) (metadata.Provider, error) {
	return deezer.New(httpOptions(cfg), log), nil
}
