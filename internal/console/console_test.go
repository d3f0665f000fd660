package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"tagmatch/internal/metadata"
)

type searcherFunc func(ctx context.Context, query string, tracks []metadata.LocalTrack) metadata.ProviderResultSet

func (f searcherFunc) ManualSearch(ctx context.Context, query string, tracks []metadata.LocalTrack) metadata.ProviderResultSet {
	return f(ctx, query, tracks)
}

func queenSet() metadata.ProviderResultSet {
	var set metadata.ProviderResultSet
	set.Add("musicbrainz", []metadata.MatchResult{
		{Kind: metadata.KindAlbum, Title: "A Night at the Opera", Artist: "Queen", Year: "1975", Provider: "musicbrainz", Score: 100,
			Tracks: []metadata.TrackEntry{{Position: "1", Title: "Death on Two Legs", Duration: 223 * time.Second}}},
	})
	set.Add("deezer", []metadata.MatchResult{
		{Kind: metadata.KindAlbum, Title: "A Night at the Opera", Artist: "Queen", Provider: "deezer", Score: 95},
	})
	return set
}

func TestChooseResolves(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("9\n2\n\n"), &out)

	m, ok, err := p.Choose(context.Background(), "Queen/Opera", metadata.NewSelection(queenSet(), nil, nil))
	if err != nil {
		t.Fatalf("Choose() error: %v", err)
	}
	if !ok || m.Provider != "deezer" {
		t.Fatalf("Choose() = %+v, %v", m, ok)
	}
	if m.Year != "1975" || len(m.Tracks) != 1 {
		t.Errorf("chosen match should carry borrowed fields, got %+v", m)
	}

	s := out.String()
	for _, want := range []string{
		"Queen/Opera",
		"Queen - A Night at the Opera (1975) • 1 tracks",
		"Invalid choice, try again",
		"Year from: musicbrainz",
		"Death on Two Legs",
		"3:43",
		"Use this match? [Y/n]",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q:\n%s", want, s)
		}
	}
}

func TestChooseDeclineThenAbandon(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("1\nn\n0\n"), &out)

	_, ok, err := p.Choose(context.Background(), "", metadata.NewSelection(queenSet(), nil, nil))
	if err != nil || ok {
		t.Fatalf("Choose() = %v, %v", ok, err)
	}
	if strings.Count(out.String(), "A Night at the Opera (1975)") < 3 {
		t.Errorf("list should be shown again after declining:\n%s", out.String())
	}
}

func TestChooseManualSearch(t *testing.T) {
	var gotQuery string
	searcher := searcherFunc(func(_ context.Context, query string, _ []metadata.LocalTrack) metadata.ProviderResultSet {
		gotQuery = query
		var set metadata.ProviderResultSet
		set.Add("itunes", []metadata.MatchResult{{Kind: metadata.KindTrack, Title: "Innuendo", Artist: "Queen", Provider: "itunes"}})
		return set
	})

	var out bytes.Buffer
	p := New(strings.NewReader("s\nqueen innuendo\n1\ny\n"), &out)

	m, ok, err := p.Choose(context.Background(), "", metadata.NewSelection(metadata.ProviderResultSet{}, nil, searcher))
	if err != nil || !ok {
		t.Fatalf("Choose() = %v, %v", ok, err)
	}
	if gotQuery != "queen innuendo" || m.Title != "Innuendo" {
		t.Errorf("query = %q, match = %+v", gotQuery, m)
	}
	if !strings.Contains(out.String(), "No matches found") || !strings.Contains(out.String(), "Searching...") {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestChooseEOFAbandons(t *testing.T) {
	p := New(strings.NewReader("1"), &bytes.Buffer{})
	_, ok, err := p.Choose(context.Background(), "", metadata.NewSelection(queenSet(), nil, nil))
	if err != nil || ok {
		t.Errorf("Choose() = %v, %v", ok, err)
	}
}

func TestChooseCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(strings.NewReader("1\n"), &bytes.Buffer{})
	if _, _, err := p.Choose(ctx, "", metadata.NewSelection(queenSet(), nil, nil)); err == nil {
		t.Error("expected context error")
	}
}

func TestFormatCandidate(t *testing.T) {
	tests := []struct {
		name string
		c    metadata.Candidate
		want string
	}{
		{
			name: "full",
			c: metadata.Candidate{MatchResult: metadata.MatchResult{Title: "Innuendo", Artist: "Queen", Year: "1991",
				Tracks: make([]metadata.TrackEntry, 12)}},
			want: "Queen - Innuendo (1991) • 12 tracks",
		},
		{
			name: "no year or tracks",
			c:    metadata.Candidate{MatchResult: metadata.MatchResult{Title: "Innuendo", Artist: "Queen"}},
			want: "Queen - Innuendo",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatCandidate(tt.c); got != tt.want {
				t.Errorf("FormatCandidate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(5*time.Minute + 55*time.Second); got != "5:55" {
		t.Errorf("formatDuration() = %q", got)
	}
	if got := formatDuration(0); got != "" {
		t.Errorf("formatDuration(0) = %q", got)
	}
}
