package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tagmatch/internal/logger"
	"tagmatch/internal/metadata"
	"tagmatch/internal/provider/apiclient"
)

const (
	defaultAPIURL = "https://musicbrainz.org/ws/2"
	searchLimit   = 5
)

// Options configures the MusicBrainz client.
type Options struct {
	// UserAgent must identify the application and a contact, as MusicBrainz requires.
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Retry             metadata.RetryPolicy
	HTTPClient        *http.Client
}

// Client is a MusicBrainz Web API client that implements metadata.Provider.
type Client struct {
	api    *apiclient.Client
	apiURL string
	logger *logger.Logger
}

// New creates a new MusicBrainz client. Every call, including track listing
// lookups, goes through the rate limiter and the retry policy.
func New(opts Options, log *logger.Logger) (*Client, error) {
	if strings.TrimSpace(opts.UserAgent) == "" {
		return nil, errors.New("musicbrainz requires a user agent")
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = metadata.DefaultRetryPolicy()
	}

	return &Client{
		api: apiclient.New(apiclient.Options{
			HTTPClient:        opts.HTTPClient,
			Timeout:           opts.Timeout,
			UserAgent:         opts.UserAgent,
			Retry:             opts.Retry,
			RequestsPerSecond: opts.RequestsPerSecond,
		}),
		apiURL: defaultAPIURL,
		logger: log,
	}, nil
}

func (c *Client) Name() string { return "musicbrainz" }

// SearchTrack queries the recording search API.
func (c *Client) SearchTrack(ctx context.Context, title, artist string) ([]metadata.MatchResult, error) {
	q := buildQuery("recording", title, artist)
	if q == "" {
		return nil, nil
	}

	var resp recordingSearch
	if err := c.api.GetJSON(ctx, c.searchURL("recording", q), &resp); err != nil {
		return c.searchFailed("recording", err)
	}

	var results []metadata.MatchResult
	for _, rec := range metadata.DecodeHits[recording](resp.Recordings, c.skipHit("recording")) {
		m, err := c.parseRecording(ctx, rec, title, artist)
		if err != nil {
			c.logger.Debug("musicbrainz: skipping recording %q: %v", rec.ID, err)
			continue
		}
		if m != nil {
			results = append(results, *m)
		}
	}
	metadata.RankMatches(results)
	return results, nil
}

// SearchAlbum queries the release search API and looks up each accepted
// release's track listing.
func (c *Client) SearchAlbum(ctx context.Context, album, artist string) ([]metadata.MatchResult, error) {
	q := buildQuery("release", album, artist)
	if q == "" {
		return nil, nil
	}

	var resp releaseSearch
	if err := c.api.GetJSON(ctx, c.searchURL("release", q), &resp); err != nil {
		return c.searchFailed("release", err)
	}

	var results []metadata.MatchResult
	for _, rel := range metadata.DecodeHits[release](resp.Releases, c.skipHit("release")) {
		if rel.ID == "" || rel.Title == "" {
			c.logger.Debug("musicbrainz: skipping release without id or title")
			continue
		}
		relArtist := joinArtistCredits(rel.ArtistCredit)
		score, ok := metadata.ScoreHit(album, artist, rel.Title, relArtist)
		if !ok {
			continue
		}

		results = append(results, metadata.MatchResult{
			Kind:       metadata.KindAlbum,
			Title:      rel.Title,
			Artist:     relArtist,
			Year:       parseYear(rel.Date),
			Tracks:     c.releaseTracks(ctx, rel.ID),
			Score:      score,
			Provider:   c.Name(),
			ID:         rel.ID,
			ArtworkURL: artworkURL(rel.ID),
			Raw:        rel,
		})
	}
	metadata.RankMatches(results)
	return results, nil
}

// searchFailed swallows network failures that survived every retry so the
// provider contributes an empty result. Other errors are returned.
func (c *Client) searchFailed(entity string, err error) ([]metadata.MatchResult, error) {
	if metadata.IsTransient(err) {
		c.logger.Warn("musicbrainz: %s search gave up after retries: %v", entity, err)
		return nil, nil
	}
	return nil, fmt.Errorf("musicbrainz %s search failed: %w", entity, err)
}

func (c *Client) skipHit(entity string) func(int, error) {
	return func(i int, err error) {
		c.logger.Debug("musicbrainz: skipping %s %d: %v", entity, i, err)
	}
}

func (c *Client) parseRecording(ctx context.Context, rec recording, title, artist string) (*metadata.MatchResult, error) {
	if rec.ID == "" || rec.Title == "" {
		return nil, metadata.ErrMalformedHit
	}
	recArtist := joinArtistCredits(rec.ArtistCredit)
	score, ok := metadata.ScoreHit(title, artist, rec.Title, recArtist)
	if !ok {
		return nil, nil
	}

	m := &metadata.MatchResult{
		Kind:     metadata.KindTrack,
		Title:    rec.Title,
		Artist:   recArtist,
		Score:    score,
		Provider: c.Name(),
		ID:       rec.ID,
		Raw:      rec,
	}

	if len(rec.Releases) > 0 {
		rel := pickBestRelease(rec.Releases)
		m.Album = rel.Title
		m.ArtworkURL = artworkURL(rel.ID)
		m.Year = earliestYear(rec.Releases)
		m.Tracks = c.releaseTracks(ctx, rel.ID)
	}
	return m, nil
}

// releaseTracks fetches a release's track listing. A failed lookup leaves the
// listing empty rather than dropping the candidate.
func (c *Client) releaseTracks(ctx context.Context, releaseID string) []metadata.TrackEntry {
	if releaseID == "" {
		return nil
	}

	reqURL := fmt.Sprintf("%s/release/%s?inc=recordings&fmt=json", c.apiURL, url.PathEscape(releaseID))
	var rel releaseLookup
	if err := c.api.GetJSON(ctx, reqURL, &rel); err != nil {
		c.logger.Debug("musicbrainz: track listing for %s failed: %v", releaseID, err)
		return nil
	}

	var tracks []metadata.TrackEntry
	for _, med := range rel.Media {
		for _, t := range med.Tracks {
			title := t.Title
			if title == "" {
				title = t.Recording.Title
			}
			if title == "" {
				continue
			}
			pos := t.Number
			if pos == "" {
				pos = strconv.Itoa(t.Position)
			}
			length := t.Length
			if length == 0 {
				length = t.Recording.Length
			}
			tracks = append(tracks, metadata.TrackEntry{
				Position: pos,
				Title:    title,
				Duration: time.Duration(length) * time.Millisecond,
			})
		}
	}
	return tracks
}

func (c *Client) searchURL(entity, query string) string {
	return fmt.Sprintf("%s/%s?query=%s&fmt=json&limit=%d", c.apiURL, entity, url.QueryEscape(query), searchLimit)
}

// buildQuery builds a Lucene expression such as recording:"t" AND artist:"a".
func buildQuery(field, value, artist string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	q := field + ":" + quote(value)
	if artist = strings.TrimSpace(artist); artist != "" {
		q += " AND artist:" + quote(artist)
	}
	return q
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func artworkURL(releaseID string) string {
	return fmt.Sprintf("https://coverartarchive.org/release/%s/front-500", releaseID)
}

// joinArtistCredits renders a credit list the way MusicBrainz displays it,
// falling back to comma separation when no join phrases are given.
func joinArtistCredits(credits []artistCredit) string {
	var b strings.Builder
	for i, ac := range credits {
		name := ac.Name
		if name == "" {
			name = ac.Artist.Name
		}
		b.WriteString(name)
		if i < len(credits)-1 {
			if ac.JoinPhrase != "" {
				b.WriteString(ac.JoinPhrase)
			} else {
				b.WriteString(", ")
			}
		}
	}
	return b.String()
}

// pickBestRelease selects the most appropriate release for a recording.
// Prefers: Official status, Album type, no secondary types (not Compilation), earliest date.
func pickBestRelease(releases []release) release {
	best := releases[0]
	bestScore := releaseScore(best)

	for _, rel := range releases[1:] {
		s := releaseScore(rel)
		if s > bestScore || (s == bestScore && rel.Date != "" && (best.Date == "" || rel.Date < best.Date)) {
			best = rel
			bestScore = s
		}
	}
	return best
}

func releaseScore(rel release) int {
	score := 0

	if rel.Status == "Official" {
		score += 4
	}

	if rel.ReleaseGroup.PrimaryType == "Album" {
		score += 2
	}

	if len(rel.ReleaseGroup.SecondaryTypes) == 0 {
		score += 1
	}

	return score
}

func earliestYear(releases []release) string {
	year := ""
	for _, rel := range releases {
		if y := parseYear(rel.Date); y != "" && (year == "" || y < year) {
			year = y
		}
	}
	return year
}

func parseYear(date string) string {
	return metadata.Tags{Date: date}.Year()
}

// MusicBrainz API response types

type recordingSearch struct {
	Recordings []json.RawMessage `json:"recordings"`
}

type releaseSearch struct {
	Releases []json.RawMessage `json:"releases"`
}

type recording struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Length       int            `json:"length"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	Releases     []release      `json:"releases"`
}

type artistCredit struct {
	Name       string     `json:"name"`
	JoinPhrase string     `json:"joinphrase"`
	Artist     artistInfo `json:"artist"`
}

type artistInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type release struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Status       string         `json:"status"`
	Date         string         `json:"date"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	ReleaseGroup releaseGroup   `json:"release-group"`
}

type releaseGroup struct {
	PrimaryType    string   `json:"primary-type"`
	SecondaryTypes []string `json:"secondary-types"`
}

type releaseLookup struct {
	ID    string   `json:"id"`
	Media []medium `json:"media"`
}

type medium struct {
	Position int          `json:"position"`
	Tracks   []mediaTrack `json:"tracks"`
}

type mediaTrack struct {
	Position  int    `json:"position"`
	Number    string `json:"number"`
	Title     string `json:"title"`
	Length    int    `json:"length"`
	Recording struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Length int    `json:"length"`
	} `json:"recording"`
}
