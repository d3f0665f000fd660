package musicbrainz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tagmatch/internal/logger"
	"tagmatch/internal/metadata"
)

func newTestClient(url string, httpClient *http.Client) *Client {
	c, err := New(Options{
		UserAgent:         "tagmatch-test/1.0 (test@example.com)",
		RequestsPerSecond: 1000,
		Retry:             metadata.RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond, Retryable: metadata.IsTransient},
		HTTPClient:        httpClient,
	}, logger.Discard())
	if err != nil {
		panic(err)
	}
	c.apiURL = url
	return c
}

const releaseBody = `{
	"id": "rel-1",
	"media": [{
		"position": 1,
		"tracks": [
			{"position": 1, "number": "1", "title": "Death on Two Legs", "length": 223000},
			{"position": 2, "number": "2", "title": "", "recording": {"title": "Lazing on a Sunday Afternoon", "length": 67000}}
		]
	}]
}`

func TestSearchTrack_ParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "tagmatch-test") {
			t.Errorf("User-Agent = %q", ua)
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/recording":
			if q := r.URL.Query().Get("query"); q != `recording:"Bohemian Rhapsody" AND artist:"Queen"` {
				t.Errorf("query = %q", q)
			}
			if r.URL.Query().Get("limit") != "5" {
				t.Errorf("limit = %q", r.URL.Query().Get("limit"))
			}
			w.Write([]byte(`{
				"recordings": [
					{
						"id": "rec-1",
						"title": "Bohemian Rhapsody",
						"artist-credit": [{"name": "Queen", "artist": {"id": "a1", "name": "Queen"}}],
						"releases": [
							{"id": "rel-2", "title": "Greatest Hits", "date": "1981-10-26", "status": "Official",
							 "release-group": {"primary-type": "Album", "secondary-types": ["Compilation"]}},
							{"id": "rel-1", "title": "A Night at the Opera", "date": "1975-11-21", "status": "Official",
							 "release-group": {"primary-type": "Album"}}
						]
					},
					{"id": "rec-2", "title": "Bohemian Rhapsody", "artist-credit": [{"name": "Panic! at the Disco"}]},
					{"id": "", "title": "broken"}
				]
			}`))
		case "/release/rel-1":
			if r.URL.Query().Get("inc") != "recordings" {
				t.Errorf("inc = %q", r.URL.Query().Get("inc"))
			}
			w.Write([]byte(releaseBody))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	results, err := c.SearchTrack(context.Background(), "Bohemian Rhapsody", "Queen")
	if err != nil {
		t.Fatalf("SearchTrack() error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d: %+v", len(results), results)
	}

	r := results[0]
	if r.Kind != metadata.KindTrack || r.Title != "Bohemian Rhapsody" || r.Artist != "Queen" {
		t.Errorf("result = %+v", r)
	}
	if r.Album != "A Night at the Opera" {
		t.Errorf("Album = %q, want %q", r.Album, "A Night at the Opera")
	}
	if r.Year != "1975" {
		t.Errorf("Year = %q, want 1975", r.Year)
	}
	if r.Score != 100 {
		t.Errorf("Score = %v, want 100", r.Score)
	}
	if r.Provider != "musicbrainz" || r.ID != "rec-1" {
		t.Errorf("Provider/ID = %q/%q", r.Provider, r.ID)
	}
	if r.ArtworkURL != "https://coverartarchive.org/release/rel-1/front-500" {
		t.Errorf("ArtworkURL = %q", r.ArtworkURL)
	}
	if len(r.Tracks) != 2 || r.Tracks[1].Title != "Lazing on a Sunday Afternoon" || r.Tracks[0].Duration != 223*time.Second {
		t.Errorf("Tracks = %+v", r.Tracks)
	}
}

func TestSearchAlbum(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/release":
			if q := r.URL.Query().Get("query"); q != `release:"A Night at the Opera"` {
				t.Errorf("query = %q", q)
			}
			w.Write([]byte(`{"releases": [
				{"id": "rel-1", "title": "A Night at the Opera", "date": "1975", "artist-credit": [{"name": "Queen"}]},
				{"id": "rel-9", "title": "Something Else Entirely", "artist-credit": [{"name": "Queen"}]}
			]}`))
		case "/release/rel-1":
			w.Write([]byte(releaseBody))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	results, err := newTestClient(srv.URL, nil).SearchAlbum(context.Background(), "A Night at the Opera", "")
	if err != nil {
		t.Fatalf("SearchAlbum() error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if r := results[0]; r.Kind != metadata.KindAlbum || r.Year != "1975" || len(r.Tracks) != 2 {
		t.Errorf("result = %+v", r)
	}
}

func TestSearchAlbum_TrackLookupFailureKeepsCandidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/release" {
			w.Write([]byte(`{"releases": [{"id": "rel-1", "title": "Innuendo", "artist-credit": [{"name": "Queen"}]}]}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	results, err := newTestClient(srv.URL, nil).SearchAlbum(context.Background(), "Innuendo", "Queen")
	if err != nil || len(results) != 1 || len(results[0].Tracks) != 0 {
		t.Errorf("SearchAlbum() = %+v, %v", results, err)
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

type timeoutTransport struct{ calls atomic.Int32 }

func (rt *timeoutTransport) RoundTrip(*http.Request) (*http.Response, error) {
	rt.calls.Add(1)
	return nil, timeoutError{}
}

func TestSearchTrack_TransientFailureReturnsEmpty(t *testing.T) {
	rt := &timeoutTransport{}
	c := newTestClient("http://musicbrainz.invalid/ws/2", &http.Client{Transport: rt})

	results, err := c.SearchTrack(context.Background(), "Bohemian Rhapsody", "Queen")
	if err != nil {
		t.Fatalf("expected transient failure to be swallowed, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
	if rt.calls.Load() != 3 {
		t.Errorf("attempts = %d, want 3", rt.calls.Load())
	}
}

// flakyTransport times out the first failures requests whose path starts with
// prefix and passes everything else through.
type flakyTransport struct {
	prefix   string
	failures int32
	calls    atomic.Int32
}

func (rt *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if strings.HasPrefix(req.URL.Path, rt.prefix) && rt.calls.Add(1) <= rt.failures {
		return nil, timeoutError{}
	}
	return http.DefaultTransport.RoundTrip(req)
}

func TestSearchAlbum_TrackLookupRetriedAfterTimeouts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/release":
			w.Write([]byte(`{"releases": [{"id": "rel-1", "title": "A Night at the Opera", "artist-credit": [{"name": "Queen"}]}]}`))
		case "/release/rel-1":
			w.Write([]byte(releaseBody))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	rt := &flakyTransport{prefix: "/release/", failures: 2}
	c := newTestClient(srv.URL, &http.Client{Transport: rt})

	results, err := c.SearchAlbum(context.Background(), "A Night at the Opera", "Queen")
	if err != nil {
		t.Fatalf("SearchAlbum() error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if tracks := results[0].Tracks; len(tracks) != 2 || tracks[0].Title != "Death on Two Legs" {
		t.Errorf("Tracks = %+v, want the listing fetched on the third attempt", tracks)
	}
	if got := rt.calls.Load(); got != 3 {
		t.Errorf("release lookups = %d, want 3", got)
	}
}

func TestSearchAlbum_SkipsMalformedRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/release":
			w.Write([]byte(`{"releases": [
				{"id": "rel-0", "title": "A Night at the Opera", "date": 1975, "artist-credit": [{"name": "Queen"}]},
				{"id": "rel-1", "title": "A Night at the Opera", "date": "1975", "artist-credit": [{"name": "Queen"}]}
			]}`))
		case "/release/rel-1":
			w.Write([]byte(releaseBody))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	results, err := newTestClient(srv.URL, nil).SearchAlbum(context.Background(), "A Night at the Opera", "Queen")
	if err != nil {
		t.Fatalf("SearchAlbum() error: %v", err)
	}
	if len(results) != 1 || results[0].ID != "rel-1" {
		t.Fatalf("results = %+v, want rel-1 only", results)
	}
}

func TestSearchTrack_ServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, nil).SearchTrack(context.Background(), "test", "")
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestSearchTrack_EmptyTitle(t *testing.T) {
	results, err := newTestClient("http://unused", nil).SearchTrack(context.Background(), "  ", "Queen")
	if err != nil || results != nil {
		t.Errorf("SearchTrack() = %v, %v", results, err)
	}
}

func TestNewRequiresUserAgent(t *testing.T) {
	if _, err := New(Options{}, logger.Discard()); err == nil {
		t.Error("expected error without user agent")
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name                 string
		field, value, artist string
		want                 string
	}{
		{"title and artist", "recording", "Test", "Artist", `recording:"Test" AND artist:"Artist"`},
		{"title only", "recording", "Test", "", `recording:"Test"`},
		{"release", "release", "Innuendo", "Queen", `release:"Innuendo" AND artist:"Queen"`},
		{"quotes escaped", "recording", `Say "Hi"`, "", `recording:"Say \"Hi\""`},
		{"empty", "recording", "", "Artist", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuery(tt.field, tt.value, tt.artist); got != tt.want {
				t.Errorf("buildQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJoinArtistCredits(t *testing.T) {
	got := joinArtistCredits([]artistCredit{
		{Name: "Queen", JoinPhrase: " & "},
		{Artist: artistInfo{Name: "David Bowie"}},
	})
	if got != "Queen & David Bowie" {
		t.Errorf("joined = %q", got)
	}

	got = joinArtistCredits([]artistCredit{{Name: "Queen"}, {Name: "David Bowie"}})
	if got != "Queen, David Bowie" {
		t.Errorf("joined = %q", got)
	}
}
