// Package youtube searches YouTube Music through the innertube API the web
// client uses. No account is needed.
package youtube

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tagmatch/internal/logger"
	"tagmatch/internal/metadata"
	"tagmatch/internal/provider/apiclient"

	jsoniter "github.com/json-iterator/go"
)

const (
	defaultAPIURL = "https://music.youtube.com/youtubei/v1"
	origin        = "https://music.youtube.com"
	clientName    = "WEB_REMIX"
	clientVersion = "1.20240918.01.00"
	searchLimit   = 5

	songsFilter  = "EgWKAQIIAWoMEA4QChADEAQQCRAF"
	albumsFilter = "EgWKAQIYAWoMEA4QChADEAQQCRAF"

	pageTypeArtist = "MUSIC_PAGE_TYPE_ARTIST"
	pageTypeAlbum  = "MUSIC_PAGE_TYPE_ALBUM"
)

var (
	json        = jsoniter.ConfigCompatibleWithStandardLibrary
	yearPattern = regexp.MustCompile(`^\d{4}$`)
)

// Options configures the YouTube Music client.
type Options struct {
	Language   string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
}

// Client implements metadata.Provider on top of YouTube Music.
type Client struct {
	api      *apiclient.Client
	apiURL   string
	language string
	logger   *logger.Logger
}

// New creates a new YouTube Music client.
func New(opts Options, log *logger.Logger) *Client {
	lang := opts.Language
	if lang == "" {
		lang = "en"
	}
	return &Client{
		api: apiclient.New(apiclient.Options{
			HTTPClient: opts.HTTPClient,
			Timeout:    opts.Timeout,
			UserAgent:  opts.UserAgent,
		}),
		apiURL:   defaultAPIURL,
		language: lang,
		logger:   log,
	}
}

func (c *Client) Name() string { return "youtube" }

// SearchTrack searches the songs shelf. Song rows carry no track listing.
func (c *Client) SearchTrack(ctx context.Context, title, artist string) ([]metadata.MatchResult, error) {
	if strings.TrimSpace(title) == "" {
		return nil, nil
	}

	rows, err := c.search(ctx, buildQuery(title, artist), songsFilter)
	if err != nil {
		return nil, fmt.Errorf("youtube song search failed: %w", err)
	}

	var results []metadata.MatchResult
	for _, row := range rows {
		if row.title == "" || row.artist == "" {
			c.logger.Debug("youtube: skipping song row without title or artist")
			continue
		}
		score, ok := metadata.ScoreHit(title, artist, row.title, row.artist)
		if !ok {
			continue
		}
		results = append(results, metadata.MatchResult{
			Kind:       metadata.KindTrack,
			Title:      row.title,
			Artist:     row.artist,
			Album:      row.album,
			Year:       row.year,
			Score:      score,
			Provider:   c.Name(),
			ID:         row.videoID,
			ArtworkURL: row.thumbnail,
		})
	}
	metadata.RankMatches(results)
	return results, nil
}

// SearchAlbum searches the albums shelf and browses every accepted album for
// its track listing and release year.
func (c *Client) SearchAlbum(ctx context.Context, album, artist string) ([]metadata.MatchResult, error) {
	if strings.TrimSpace(album) == "" {
		return nil, nil
	}

	rows, err := c.search(ctx, buildQuery(album, artist), albumsFilter)
	if err != nil {
		return nil, fmt.Errorf("youtube album search failed: %w", err)
	}

	var results []metadata.MatchResult
	for _, row := range rows {
		if row.title == "" || row.browseID == "" {
			c.logger.Debug("youtube: skipping album row without title or browse id")
			continue
		}
		score, ok := metadata.ScoreHit(album, artist, row.title, row.artist)
		if !ok {
			continue
		}

		m := metadata.MatchResult{
			Kind:       metadata.KindAlbum,
			Title:      row.title,
			Artist:     row.artist,
			Year:       row.year,
			Score:      score,
			Provider:   c.Name(),
			ID:         row.browseID,
			ArtworkURL: row.thumbnail,
		}
		if page, err := c.browseAlbum(ctx, row.browseID); err != nil {
			c.logger.Debug("youtube: browsing album %s failed: %v", row.browseID, err)
		} else {
			m.Tracks = page.tracks
			if m.Year == "" {
				m.Year = page.year
			}
		}
		results = append(results, m)
	}
	metadata.RankMatches(results)
	return results, nil
}

// row is one musicResponsiveListItemRenderer flattened.
type row struct {
	title     string
	artist    string
	album     string
	year      string
	duration  time.Duration
	videoID   string
	browseID  string
	thumbnail string
}

func (c *Client) search(ctx context.Context, query, filter string) ([]row, error) {
	body, err := c.post(ctx, "search", map[string]any{"query": query, "params": filter})
	if err != nil {
		return nil, err
	}

	sections := jsoniter.Get(body, "contents", "tabbedSearchResultsRenderer", "tabs", 0,
		"tabRenderer", "content", "sectionListRenderer", "contents")

	var rows []row
	for i := 0; i < sections.Size(); i++ {
		items := sections.Get(i, "musicShelfRenderer", "contents")
		for j := 0; j < items.Size() && len(rows) < searchLimit; j++ {
			r := items.Get(j, "musicResponsiveListItemRenderer")
			if r.ValueType() != jsoniter.ObjectValue {
				continue
			}
			rows = append(rows, parseRow(r))
		}
	}
	return rows, nil
}

type albumPage struct {
	year   string
	tracks []metadata.TrackEntry
}

func (c *Client) browseAlbum(ctx context.Context, browseID string) (*albumPage, error) {
	body, err := c.post(ctx, "browse", map[string]any{"browseId": browseID})
	if err != nil {
		return nil, err
	}
	root := jsoniter.Get(body)

	page := &albumPage{}
	for _, subtitle := range []jsoniter.Any{
		root.Get("header", "musicDetailHeaderRenderer", "subtitle", "runs"),
		root.Get("contents", "twoColumnBrowseResultsRenderer", "tabs", 0, "tabRenderer", "content",
			"sectionListRenderer", "contents", 0, "musicResponsiveHeaderRenderer", "subtitle", "runs"),
	} {
		if y := findYear(subtitle); y != "" {
			page.year = y
			break
		}
	}

	var shelf jsoniter.Any
	for _, candidate := range []jsoniter.Any{
		root.Get("contents", "twoColumnBrowseResultsRenderer", "secondaryContents", "sectionListRenderer",
			"contents", 0, "musicShelfRenderer", "contents"),
		root.Get("contents", "singleColumnBrowseResultsRenderer", "tabs", 0, "tabRenderer", "content",
			"sectionListRenderer", "contents", 0, "musicShelfRenderer", "contents"),
	} {
		if candidate.Size() > 0 {
			shelf = candidate
			break
		}
	}
	if shelf == nil {
		return page, nil
	}

	for i := 0; i < shelf.Size(); i++ {
		r := shelf.Get(i, "musicResponsiveListItemRenderer")
		title := flexRuns(r, 0).Get(0, "text").ToString()
		if title == "" {
			continue
		}
		pos := r.Get("index", "runs", 0, "text").ToString()
		if pos == "" {
			pos = strconv.Itoa(len(page.tracks) + 1)
		}
		page.tracks = append(page.tracks, metadata.TrackEntry{
			Position: pos,
			Title:    title,
			Duration: parseDuration(r.Get("fixedColumns", 0, "musicResponsiveListItemFixedColumnRenderer",
				"text", "runs", 0, "text").ToString()),
		})
	}
	return page, nil
}

func (c *Client) post(ctx context.Context, endpoint string, fields map[string]any) ([]byte, error) {
	payload := map[string]any{
		"context": map[string]any{
			"client": map[string]any{
				"clientName":    clientName,
				"clientVersion": clientVersion,
				"hl":            c.language,
			},
		},
	}
	for k, v := range fields {
		payload[k] = v
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	header := http.Header{
		"Content-Type": {"application/json"},
		"Origin":       {origin},
		"Referer":      {origin + "/"},
	}
	return c.api.Do(ctx, http.MethodPost, c.apiURL+"/"+endpoint+"?prettyPrint=false", data, header)
}

// parseRow reads the title column and classifies the subtitle runs by the
// page they link to, falling back to their shape for unlinked runs.
func parseRow(r jsoniter.Any) row {
	out := row{
		title:    flexRuns(r, 0).Get(0, "text").ToString(),
		videoID:  r.Get("playlistItemData", "videoId").ToString(),
		browseID: r.Get("navigationEndpoint", "browseEndpoint", "browseId").ToString(),
	}

	thumbs := r.Get("thumbnail", "musicThumbnailRenderer", "thumbnail", "thumbnails")
	if n := thumbs.Size(); n > 0 {
		out.thumbnail = thumbs.Get(n-1, "url").ToString()
	}

	var artists []string
	runs := flexRuns(r, 1)
	for i := 0; i < runs.Size(); i++ {
		run := runs.Get(i)
		text := strings.TrimSpace(run.Get("text").ToString())
		if text == "" || text == "•" || text == "&" || text == "," {
			continue
		}
		switch run.Get("navigationEndpoint", "browseEndpoint", "browseEndpointContextSupportedConfigs",
			"browseEndpointContextMusicConfig", "pageType").ToString() {
		case pageTypeArtist:
			artists = append(artists, text)
		case pageTypeAlbum:
			out.album = text
		default:
			switch {
			case yearPattern.MatchString(text):
				out.year = text
			case parseDuration(text) > 0:
				out.duration = parseDuration(text)
			case i > 0 && len(artists) == 0 && out.album == "":
				// Unlinked artist credit following the "Album"/"Song" type label.
				artists = append(artists, text)
			}
		}
	}
	out.artist = strings.Join(artists, ", ")
	return out
}

func flexRuns(r jsoniter.Any, column int) jsoniter.Any {
	return r.Get("flexColumns", column, "musicResponsiveListItemFlexColumnRenderer", "text", "runs")
}

func findYear(runs jsoniter.Any) string {
	for i := runs.Size() - 1; i >= 0; i-- {
		if text := strings.TrimSpace(runs.Get(i, "text").ToString()); yearPattern.MatchString(text) {
			return text
		}
	}
	return ""
}

// parseDuration parses "m:ss" or "h:mm:ss". Anything else is zero.
func parseDuration(s string) time.Duration {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}
	var total int
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second
}

func buildQuery(title, artist string) string {
	title = strings.TrimSpace(title)
	if artist = strings.TrimSpace(artist); artist != "" {
		return artist + " " + title
	}
	return title
}
