package itunes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"tagmatch/internal/logger"
	"tagmatch/internal/metadata"
	"tagmatch/internal/provider/apiclient"
)

const (
	defaultAPIURL = "https://itunes.apple.com"
	searchLimit   = 5
	lookupLimit   = 200
)

// Client is an iTunes Search API client that implements metadata.Provider.
type Client struct {
	api    *apiclient.Client
	apiURL string
	logger *logger.Logger
}

// New creates a new iTunes client.
func New(opts apiclient.Options, log *logger.Logger) *Client {
	return &Client{
		api:    apiclient.New(opts),
		apiURL: defaultAPIURL,
		logger: log,
	}
}

func (c *Client) Name() string { return "itunes" }

// SearchTrack searches songs. The album's track listing is looked up for each accepted song.
func (c *Client) SearchTrack(ctx context.Context, title, artist string) ([]metadata.MatchResult, error) {
	if strings.TrimSpace(title) == "" {
		return nil, nil
	}

	items, err := c.search(ctx, buildTerm(title, artist), "song")
	if err != nil {
		return nil, err
	}

	var results []metadata.MatchResult
	for _, item := range items {
		if item.TrackName == "" {
			c.logger.Debug("itunes: skipping song without a name")
			continue
		}
		score, ok := metadata.ScoreHit(title, artist, item.TrackName, item.ArtistName)
		if !ok {
			continue
		}

		m := metadata.MatchResult{
			Kind:       metadata.KindTrack,
			Title:      item.TrackName,
			Artist:     item.ArtistName,
			Album:      item.CollectionName,
			Year:       parseYear(item.ReleaseDate),
			Score:      score,
			Provider:   c.Name(),
			ID:         strconv.FormatInt(item.TrackID, 10),
			ArtworkURL: upgradeArtwork(item.ArtworkURL100),
			Raw:        item,
		}
		if item.CollectionID != 0 {
			m.Tracks, _ = c.albumTracks(ctx, item.CollectionID)
		}
		results = append(results, m)
	}
	metadata.RankMatches(results)
	return results, nil
}

// SearchAlbum searches collections. Albums whose track listing comes back
// empty are dropped.
func (c *Client) SearchAlbum(ctx context.Context, album, artist string) ([]metadata.MatchResult, error) {
	if strings.TrimSpace(album) == "" {
		return nil, nil
	}

	items, err := c.search(ctx, buildTerm(album, artist), "album")
	if err != nil {
		return nil, err
	}

	var results []metadata.MatchResult
	for _, item := range items {
		if item.CollectionID == 0 || item.CollectionName == "" {
			c.logger.Debug("itunes: skipping album without id or name")
			continue
		}
		score, ok := metadata.ScoreHit(album, artist, item.CollectionName, item.ArtistName)
		if !ok {
			continue
		}

		tracks, err := c.albumTracks(ctx, item.CollectionID)
		if err != nil || len(tracks) == 0 {
			c.logger.Debug("itunes: dropping album %d without tracks", item.CollectionID)
			continue
		}

		results = append(results, metadata.MatchResult{
			Kind:       metadata.KindAlbum,
			Title:      item.CollectionName,
			Artist:     item.ArtistName,
			Year:       parseYear(item.ReleaseDate),
			Tracks:     tracks,
			Score:      score,
			Provider:   c.Name(),
			ID:         strconv.FormatInt(item.CollectionID, 10),
			ArtworkURL: upgradeArtwork(item.ArtworkURL100),
			Raw:        item,
		})
	}
	metadata.RankMatches(results)
	return results, nil
}

func (c *Client) search(ctx context.Context, term, entity string) ([]resultItem, error) {
	params := url.Values{}
	params.Set("term", term)
	params.Set("media", "music")
	params.Set("entity", entity)
	params.Set("limit", strconv.Itoa(searchLimit))

	var resp searchResponse
	if err := c.api.GetJSON(ctx, c.apiURL+"/search?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("itunes %s search failed: %w", entity, err)
	}
	return metadata.DecodeHits[resultItem](resp.Results, c.skipHit(entity)), nil
}

func (c *Client) skipHit(entity string) func(int, error) {
	return func(i int, err error) {
		c.logger.Debug("itunes: skipping %s result %d: %v", entity, i, err)
	}
}

// albumTracks looks up a collection's songs ordered by disc and track number.
func (c *Client) albumTracks(ctx context.Context, collectionID int64) ([]metadata.TrackEntry, error) {
	params := url.Values{}
	params.Set("id", strconv.FormatInt(collectionID, 10))
	params.Set("entity", "song")
	params.Set("limit", strconv.Itoa(lookupLimit))

	var resp searchResponse
	if err := c.api.GetJSON(ctx, c.apiURL+"/lookup?"+params.Encode(), &resp); err != nil {
		c.logger.Debug("itunes: lookup of %d failed: %v", collectionID, err)
		return nil, err
	}

	var songs []resultItem
	for _, item := range metadata.DecodeHits[resultItem](resp.Results, c.skipHit("lookup")) {
		// The first row describes the collection itself.
		if item.WrapperType == "track" && item.Kind == "song" && item.TrackName != "" {
			songs = append(songs, item)
		}
	}
	sort.SliceStable(songs, func(i, j int) bool {
		if songs[i].DiscNumber != songs[j].DiscNumber {
			return songs[i].DiscNumber < songs[j].DiscNumber
		}
		return songs[i].TrackNumber < songs[j].TrackNumber
	})

	tracks := make([]metadata.TrackEntry, 0, len(songs))
	for _, s := range songs {
		tracks = append(tracks, metadata.TrackEntry{
			Position: strconv.Itoa(s.TrackNumber),
			Title:    s.TrackName,
			Duration: time.Duration(s.TrackTimeMillis) * time.Millisecond,
		})
	}
	return tracks, nil
}

func buildTerm(title, artist string) string {
	var parts []string
	if t := strings.TrimSpace(artist); t != "" {
		parts = append(parts, t)
	}
	if t := strings.TrimSpace(title); t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, " ")
}

// upgradeArtwork asks for 600x600 artwork instead of the 100x100 thumbnail.
func upgradeArtwork(u string) string {
	return strings.Replace(u, "100x100", "600x600", 1)
}

func parseYear(date string) string {
	return metadata.Tags{Date: date}.Year()
}

// iTunes Search API response types

type searchResponse struct {
	ResultCount int               `json:"resultCount"`
	Results     []json.RawMessage `json:"results"`
}

type resultItem struct {
	WrapperType     string `json:"wrapperType"`
	Kind            string `json:"kind"`
	TrackID         int64  `json:"trackId"`
	CollectionID    int64  `json:"collectionId"`
	TrackName       string `json:"trackName"`
	ArtistName      string `json:"artistName"`
	CollectionName  string `json:"collectionName"`
	TrackNumber     int    `json:"trackNumber"`
	DiscNumber      int    `json:"discNumber"`
	TrackTimeMillis int    `json:"trackTimeMillis"`
	ArtworkURL100   string `json:"artworkUrl100"`
	ReleaseDate     string `json:"releaseDate"`
}
