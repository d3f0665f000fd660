package spotify

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
	defaultAPIURL = "https://api.spotify.com/v1"
	searchLimit   = 5
	albumTrackMax = 50
)

// Options configures the Spotify client.
type Options struct {
	Market     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is a Spotify Web API client that implements metadata.Provider.
// It authenticates with the anonymous web player token, so no credentials are needed.
type Client struct {
	api    *apiclient.Client
	tokens *tokenCache
	market string
	logger *logger.Logger

	// Overridable for testing
	apiURL string
}

// New creates a new Spotify client.
func New(opts Options, log *logger.Logger) *Client {
	page := apiclient.New(apiclient.Options{
		HTTPClient: opts.HTTPClient,
		Timeout:    opts.Timeout,
		UserAgent:  browserAgent,
	})
	tokens := newTokenCache(&webTokenSource{page: page, tokenURL: defaultTokenURL})

	return &Client{
		api: apiclient.New(apiclient.Options{
			HTTPClient: opts.HTTPClient,
			Timeout:    opts.Timeout,
			UserAgent:  browserAgent,
			Authorize:  tokens.authorize,
		}),
		tokens: tokens,
		market: opts.Market,
		logger: log,
		apiURL: defaultAPIURL,
	}
}

func (c *Client) Name() string { return "spotify" }

// SearchTrack searches tracks with a track:/artist: field query.
func (c *Client) SearchTrack(ctx context.Context, title, artist string) ([]metadata.MatchResult, error) {
	q := buildSearchQuery("track", title, artist)
	if q == "" {
		return nil, nil
	}

	var resp searchResponse
	if err := c.getJSON(ctx, c.searchURL("track", q), &resp); err != nil {
		return nil, fmt.Errorf("spotify track search failed: %w", err)
	}

	var results []metadata.MatchResult
	for _, item := range metadata.DecodeHits[trackItem](resp.Tracks.Items, c.skipHit("track")) {
		if item.ID == "" || item.Name == "" {
			c.logger.Debug("spotify: skipping track without id or name")
			continue
		}
		itemArtist := joinArtists(item.Artists)
		score, ok := metadata.ScoreHit(title, artist, item.Name, itemArtist)
		if !ok {
			continue
		}

		m := metadata.MatchResult{
			Kind:       metadata.KindTrack,
			Title:      item.Name,
			Artist:     itemArtist,
			Album:      item.Album.Name,
			Year:       parseYear(item.Album.ReleaseDate),
			Score:      score,
			Provider:   c.Name(),
			ID:         item.ID,
			ArtworkURL: item.Album.artwork(),
			Raw:        item,
		}
		if item.Album.ID != "" {
			m.Tracks = c.albumTracks(ctx, item.Album.ID)
		}
		results = append(results, m)
	}
	metadata.RankMatches(results)
	return results, nil
}

// SearchAlbum searches albums and fetches the track listing of each accepted album.
func (c *Client) SearchAlbum(ctx context.Context, album, artist string) ([]metadata.MatchResult, error) {
	q := buildSearchQuery("album", album, artist)
	if q == "" {
		return nil, nil
	}

	var resp searchResponse
	if err := c.getJSON(ctx, c.searchURL("album", q), &resp); err != nil {
		return nil, fmt.Errorf("spotify album search failed: %w", err)
	}

	var results []metadata.MatchResult
	for _, item := range metadata.DecodeHits[albumItem](resp.Albums.Items, c.skipHit("album")) {
		if item.ID == "" || item.Name == "" {
			c.logger.Debug("spotify: skipping album without id or name")
			continue
		}
		itemArtist := joinArtists(item.Artists)
		score, ok := metadata.ScoreHit(album, artist, item.Name, itemArtist)
		if !ok {
			continue
		}

		results = append(results, metadata.MatchResult{
			Kind:       metadata.KindAlbum,
			Title:      item.Name,
			Artist:     itemArtist,
			Year:       parseYear(item.ReleaseDate),
			Tracks:     c.albumTracks(ctx, item.ID),
			Score:      score,
			Provider:   c.Name(),
			ID:         item.ID,
			ArtworkURL: item.artwork(),
			Raw:        item,
		})
	}
	metadata.RankMatches(results)
	return results, nil
}

func (c *Client) albumTracks(ctx context.Context, albumID string) []metadata.TrackEntry {
	reqURL := fmt.Sprintf("%s/albums/%s/tracks?limit=%d", c.apiURL, url.PathEscape(albumID), albumTrackMax)
	var page albumTracksPage
	if err := c.getJSON(ctx, reqURL, &page); err != nil {
		c.logger.Debug("spotify: tracks of album %s failed: %v", albumID, err)
		return nil
	}

	tracks := make([]metadata.TrackEntry, 0, len(page.Items))
	for _, t := range page.Items {
		if t.Name == "" {
			continue
		}
		tracks = append(tracks, metadata.TrackEntry{
			Position: strconv.Itoa(t.TrackNumber),
			Title:    t.Name,
			Duration: time.Duration(t.DurationMs) * time.Millisecond,
		})
	}
	return tracks
}

func (c *Client) skipHit(kind string) func(int, error) {
	return func(i int, err error) {
		c.logger.Debug("spotify: skipping %s item %d: %v", kind, i, err)
	}
}

// getJSON issues an authorized GET. A 401 means the cached token went stale:
// it is dropped and the request is sent once more with a fresh one.
func (c *Client) getJSON(ctx context.Context, reqURL string, v any) error {
	body, err := c.api.Get(ctx, reqURL)
	var statusErr *apiclient.StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusUnauthorized {
		c.logger.Debug("spotify: token rejected, refreshing")
		c.tokens.invalidate()
		body, err = c.api.Get(ctx, reqURL)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode spotify response: %w", err)
	}
	return nil
}

func (c *Client) searchURL(kind, q string) string {
	params := url.Values{}
	params.Set("q", q)
	params.Set("type", kind)
	params.Set("limit", strconv.Itoa(searchLimit))
	if c.market != "" {
		params.Set("market", c.market)
	}
	return c.apiURL + "/search?" + params.Encode()
}

// buildSearchQuery renders Spotify's field filter syntax, e.g. track:t artist:a.
func buildSearchQuery(field, value, artist string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	q := field + ":" + value
	if artist = strings.TrimSpace(artist); artist != "" {
		q += " artist:" + artist
	}
	return q
}

func joinArtists(artists []artistRef) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}

func parseYear(releaseDate string) string {
	return metadata.Tags{Date: releaseDate}.Year()
}

// Spotify API response types

type searchResponse struct {
	Tracks struct {
		Items []json.RawMessage `json:"items"`
	} `json:"tracks"`
	Albums struct {
		Items []json.RawMessage `json:"items"`
	} `json:"albums"`
}

type trackItem struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Artists     []artistRef `json:"artists"`
	Album       albumItem   `json:"album"`
	TrackNumber int         `json:"track_number"`
	DiscNumber  int         `json:"disc_number"`
	DurationMs  int         `json:"duration_ms"`
}

type artistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type albumItem struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Artists     []artistRef `json:"artists"`
	ReleaseDate string      `json:"release_date"`
	TotalTracks int         `json:"total_tracks"`
	Images      []image     `json:"images"`
}

// artwork returns the largest image; Spotify lists them widest first.
func (a albumItem) artwork() string {
	if len(a.Images) > 0 {
		return a.Images[0].URL
	}
	return ""
}

type image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type albumTracksPage struct {
	Items []trackItem `json:"items"`
	Total int         `json:"total"`
}
