package metadata

import (
	"context"
	"strings"
	"time"
	"unicode"
)

// Tags is the tag mapping read from an audio file. Absent fields are empty strings.
type Tags struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	Date        string `json:"date"`
	TrackNumber string `json:"track_number"`
}

// Year returns the leading four-digit year of Date, or "" if there is none.
func (t Tags) Year() string {
	d := strings.TrimSpace(t.Date)
	if len(d) < 4 {
		return ""
	}
	for _, r := range d[:4] {
		if !unicode.IsDigit(r) {
			return ""
		}
	}
	return d[:4]
}

// LocalTrack is one audio file on disk together with its current tags.
type LocalTrack struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Tags     Tags   `json:"tags"`
}

// SearchQuery is one (title, artist) interpretation to send to providers.
// An empty Artist means the artist is unknown.
type SearchQuery struct {
	Title  string `json:"title"`
	Artist string `json:"artist,omitempty"`
}

// Kind tells whether a MatchResult describes a single track or a whole album.
type Kind string

const (
	KindTrack Kind = "track"
	KindAlbum Kind = "album"
)

// TrackEntry is one row of a release's track listing.
type TrackEntry struct {
	Position string        `json:"position"`
	Title    string        `json:"title"`
	Duration time.Duration `json:"duration,omitempty"` // zero when unknown
}

// MatchResult is one candidate metadata record returned by a provider.
// For album results Title holds the album title.
type MatchResult struct {
	Kind       Kind         `json:"kind"`
	Title      string       `json:"title"`
	Artist     string       `json:"artist"`
	Album      string       `json:"album,omitempty"`
	Year       string       `json:"year,omitempty"`
	Tracks     []TrackEntry `json:"tracks,omitempty"`
	Score      float64      `json:"score"`
	Provider   string       `json:"provider"`
	ID         string       `json:"id,omitempty"`
	ArtworkURL string       `json:"artwork_url,omitempty"`
	Raw        any          `json:"-"`
}

// AlbumTitle returns the album name this result belongs to.
func (m MatchResult) AlbumTitle() string {
	if m.Kind == KindAlbum {
		return m.Title
	}
	return m.Album
}

// Mode selects how SearchAll queries providers for a batch of tracks.
type Mode string

const (
	ModeAlbum Mode = "album"
	ModeTrack Mode = "track"
)

// ParseMode converts a user supplied mode name.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAlbum:
		return ModeAlbum, true
	case ModeTrack:
		return ModeTrack, true
	}
	return "", false
}

// Provider is the interface that metadata catalogs must implement.
// A returned error means the provider contributed nothing for that call.
type Provider interface {
	Name() string
	SearchTrack(ctx context.Context, title, artist string) ([]MatchResult, error)
	SearchAlbum(ctx context.Context, album, artist string) ([]MatchResult, error)
}

// ProviderMatches is the ranked output of one provider.
type ProviderMatches struct {
	Provider string        `json:"provider"`
	Matches  []MatchResult `json:"matches"`
}

// ProviderResultSet maps provider names to their ranked matches, keeping
// the order in which providers were added.
type ProviderResultSet struct {
	entries []ProviderMatches
}

// Add appends matches to the provider's entry, creating it on first use.
// Empty match lists are ignored so the set only holds contributing providers.
func (s *ProviderResultSet) Add(provider string, matches []MatchResult) {
	if len(matches) == 0 {
		return
	}
	for i := range s.entries {
		if s.entries[i].Provider == provider {
			s.entries[i].Matches = append(s.entries[i].Matches, matches...)
			return
		}
	}
	s.entries = append(s.entries, ProviderMatches{
		Provider: provider,
		Matches:  append([]MatchResult(nil), matches...),
	})
}

// Get returns the matches recorded for provider.
func (s ProviderResultSet) Get(provider string) ([]MatchResult, bool) {
	for _, e := range s.entries {
		if e.Provider == provider {
			return e.Matches, true
		}
	}
	return nil, false
}

// Providers lists the contributing providers in insertion order.
func (s ProviderResultSet) Providers() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.Provider
	}
	return names
}

// Entries returns the per-provider match lists in insertion order.
func (s ProviderResultSet) Entries() []ProviderMatches {
	return s.entries
}

// Len is the number of contributing providers.
func (s ProviderResultSet) Len() int { return len(s.entries) }

// Total is the number of matches across all providers.
func (s ProviderResultSet) Total() int {
	n := 0
	for _, e := range s.entries {
		n += len(e.Matches)
	}
	return n
}
