package deezer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tagmatch/internal/logger"
	"tagmatch/internal/metadata"
	"tagmatch/internal/provider/apiclient"
)

const (
	defaultAPIURL = "https://api.deezer.com"
	searchLimit   = 5
)

// Client is a Deezer API client that implements metadata.Provider.
type Client struct {
	api    *apiclient.Client
	apiURL string
	logger *logger.Logger
}

// New creates a new Deezer client.
func New(opts apiclient.Options, log *logger.Logger) *Client {
	return &Client{
		api:    apiclient.New(opts),
		apiURL: defaultAPIURL,
		logger: log,
	}
}

func (c *Client) Name() string { return "deezer" }

// SearchTrack queries /search/track. Each accepted track carries the listing of
// the album it appears on.
func (c *Client) SearchTrack(ctx context.Context, title, artist string) ([]metadata.MatchResult, error) {
	if strings.TrimSpace(title) == "" {
		return nil, nil
	}

	var resp trackSearch
	if err := c.get(ctx, c.searchURL("track", buildQuery(title, artist)), &resp); err != nil {
		return nil, fmt.Errorf("deezer track search failed: %w", err)
	}

	var results []metadata.MatchResult
	for _, item := range metadata.DecodeHits[trackItem](resp.Data, c.skipHit("track")) {
		name := item.displayTitle()
		if item.ID == 0 || name == "" {
			c.logger.Debug("deezer: skipping track without id or title")
			continue
		}
		score, ok := metadata.ScoreHit(title, artist, name, item.Artist.Name)
		if !ok {
			continue
		}

		m := metadata.MatchResult{
			Kind:       metadata.KindTrack,
			Title:      name,
			Artist:     item.Artist.Name,
			Album:      item.Album.Title,
			Score:      score,
			Provider:   c.Name(),
			ID:         strconv.FormatInt(item.ID, 10),
			ArtworkURL: item.Album.cover(),
			Raw:        item,
		}
		if item.Album.ID != 0 {
			if a, err := c.album(ctx, item.Album.ID); err == nil {
				m.Year = parseYear(a.ReleaseDate)
				m.Tracks = a.entries()
			}
		}
		results = append(results, m)
	}
	metadata.RankMatches(results)
	return results, nil
}

// SearchAlbum queries /search/album and fetches /album/{id} for the release
// date and track listing of every accepted album.
func (c *Client) SearchAlbum(ctx context.Context, album, artist string) ([]metadata.MatchResult, error) {
	if strings.TrimSpace(album) == "" {
		return nil, nil
	}

	var resp albumSearch
	if err := c.get(ctx, c.searchURL("album", buildQuery(album, artist)), &resp); err != nil {
		return nil, fmt.Errorf("deezer album search failed: %w", err)
	}

	var results []metadata.MatchResult
	for _, item := range metadata.DecodeHits[albumItem](resp.Data, c.skipHit("album")) {
		if item.ID == 0 || item.Title == "" {
			c.logger.Debug("deezer: skipping album without id or title")
			continue
		}
		score, ok := metadata.ScoreHit(album, artist, item.Title, item.Artist.Name)
		if !ok {
			continue
		}

		m := metadata.MatchResult{
			Kind:       metadata.KindAlbum,
			Title:      item.Title,
			Artist:     item.Artist.Name,
			Score:      score,
			Provider:   c.Name(),
			ID:         strconv.FormatInt(item.ID, 10),
			ArtworkURL: item.cover(),
			Raw:        item,
		}
		if a, err := c.album(ctx, item.ID); err == nil {
			m.Year = parseYear(a.ReleaseDate)
			m.Tracks = a.entries()
		}
		results = append(results, m)
	}
	metadata.RankMatches(results)
	return results, nil
}

func (c *Client) album(ctx context.Context, id int64) (*albumDetail, error) {
	var a albumDetail
	if err := c.get(ctx, fmt.Sprintf("%s/album/%d", c.apiURL, id), &a); err != nil {
		c.logger.Debug("deezer: album %d lookup failed: %v", id, err)
		return nil, err
	}
	return &a, nil
}

// get decodes a Deezer response, which reports failures as an error object
// inside a 200 body.
func (c *Client) get(ctx context.Context, reqURL string, v any) error {
	body, err := c.api.Get(ctx, reqURL)
	if err != nil {
		return err
	}

	var envelope struct {
		Error *apiError `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to decode deezer response: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode deezer response: %w", err)
	}
	return nil
}

func (c *Client) skipHit(entity string) func(int, error) {
	return func(i int, err error) {
		c.logger.Debug("deezer: skipping %s hit %d: %v", entity, i, err)
	}
}

func (c *Client) searchURL(entity, q string) string {
	return fmt.Sprintf("%s/search/%s?q=%s&limit=%d", c.apiURL, entity, url.QueryEscape(q), searchLimit)
}

func buildQuery(title, artist string) string {
	var parts []string
	if a := strings.TrimSpace(artist); a != "" {
		parts = append(parts, a)
	}
	if t := strings.TrimSpace(title); t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, " ")
}

func parseYear(date string) string {
	return metadata.Tags{Date: date}.Year()
}

// Deezer API response types

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("deezer API error %d (%s): %s", e.Code, e.Type, e.Message)
}

// Search hits are decoded one by one so a single bad entry does not fail the page.
type trackSearch struct {
	Data []json.RawMessage `json:"data"`
}

type albumSearch struct {
	Data []json.RawMessage `json:"data"`
}

type trackItem struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	TitleShort string    `json:"title_short"`
	Duration   int       `json:"duration"`
	Artist     artist    `json:"artist"`
	Album      albumItem `json:"album"`
}

// displayTitle drops Deezer's version suffix such as "(Live)" when a short title exists.
func (t trackItem) displayTitle() string {
	if t.TitleShort != "" {
		return t.TitleShort
	}
	return t.Title
}

type artist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type albumItem struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	CoverBig string `json:"cover_big"`
	CoverXL  string `json:"cover_xl"`
	Artist   artist `json:"artist"`
}

func (a albumItem) cover() string {
	if a.CoverXL != "" {
		return a.CoverXL
	}
	return a.CoverBig
}

type albumDetail struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
	Tracks      struct {
		Data []trackItem `json:"data"`
	} `json:"tracks"`
}

func (a *albumDetail) entries() []metadata.TrackEntry {
	var tracks []metadata.TrackEntry
	for i, t := range a.Tracks.Data {
		name := t.displayTitle()
		if name == "" {
			continue
		}
		tracks = append(tracks, metadata.TrackEntry{
			Position: strconv.Itoa(i + 1),
			Title:    name,
			Duration: time.Duration(t.Duration) * time.Second,
		})
	}
	return tracks
}
