package metadata

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"tagmatch/internal/logger"
)

func TestSearchAllSkipsFailingProvider(t *testing.T) {
	hit := MatchResult{Kind: KindTrack, Title: "Bohemian Rhapsody", Artist: "Queen", Score: 96.5, Provider: "x"}
	x := &fakeProvider{name: "x", tracks: func(title, artist string) ([]MatchResult, error) {
		return []MatchResult{hit}, nil
	}}
	y := &fakeProvider{name: "y", tracks: func(title, artist string) ([]MatchResult, error) {
		return nil, timeoutError{}
	}}

	o := NewOrchestrator([]Provider{x, y}, logger.Discard())
	set := o.SearchAll(context.Background(), []LocalTrack{track("Bohemian Rhapsody", "Queen", "")}, ModeAlbum)

	if !reflect.DeepEqual(set.Providers(), []string{"x"}) {
		t.Fatalf("Providers() = %v, want [x]", set.Providers())
	}
	got, _ := set.Get("x")
	if len(got) != 1 || got[0].Title != "Bohemian Rhapsody" {
		t.Fatalf("x matches = %+v", got)
	}

	sel := NewSelection(set, nil, nil)
	view := sel.Present()
	if len(view.Candidates) != 1 || view.Candidates[0].Index != 1 {
		t.Fatalf("presented candidates = %+v", view.Candidates)
	}
	if _, err := sel.Handle(context.Background(), "1"); err != nil {
		t.Fatalf("Handle(1) error: %v", err)
	}
	view, err := sel.Handle(context.Background(), "y")
	if err != nil {
		t.Fatalf("Handle(y) error: %v", err)
	}
	if view.State != StateResolved {
		t.Fatalf("state = %s, want resolved", view.State)
	}
	result, ok := sel.Result()
	if !ok || !reflect.DeepEqual(result, hit) {
		t.Errorf("Result() = %+v, %v", result, ok)
	}
}

func TestSearchAllAlbumMode(t *testing.T) {
	p := &fakeProvider{name: "p", albums: func(album, artist string) ([]MatchResult, error) {
		return []MatchResult{{Kind: KindAlbum, Title: album, Artist: artist}}, nil
	}}
	tracks := []LocalTrack{
		track("Innuendo", "Queen", "Innuendo"),
		track("The Show Must Go On", "Queen", "Other Album"),
	}

	o := NewOrchestrator([]Provider{p}, logger.Discard())
	set := o.SearchAll(context.Background(), tracks, ModeAlbum)

	if want := []string{"album:Innuendo|Queen"}; !reflect.DeepEqual(p.Calls(), want) {
		t.Errorf("calls = %v, want %v", p.Calls(), want)
	}
	if set.Total() != 1 {
		t.Errorf("Total() = %d, want 1", set.Total())
	}
}

func TestSearchAllAlbumModeWithoutAlbumTag(t *testing.T) {
	p := &fakeProvider{name: "p"}
	tracks := []LocalTrack{track("a", "b", ""), track("c", "d", "")}

	set := NewOrchestrator([]Provider{p}, logger.Discard()).SearchAll(context.Background(), tracks, ModeAlbum)
	if set.Len() != 0 || len(p.Calls()) != 0 {
		t.Errorf("expected no calls and no results, got %v / %d", p.Calls(), set.Len())
	}
}

func TestSearchAllTrackModeConcatenates(t *testing.T) {
	p := &fakeProvider{name: "p", tracks: func(title, artist string) ([]MatchResult, error) {
		return []MatchResult{{Kind: KindTrack, Title: title, Artist: artist}}, nil
	}}
	tracks := []LocalTrack{
		track("Innuendo", "Queen", "Innuendo"),
		track("", "Queen", "Innuendo"),
		track("Headlong", "Queen", "Innuendo"),
	}

	set := NewOrchestrator([]Provider{p}, logger.Discard()).SearchAll(context.Background(), tracks, ModeTrack)

	if want := []string{"track:Innuendo|Queen", "track:Headlong|Queen"}; !reflect.DeepEqual(p.Calls(), want) {
		t.Errorf("calls = %v, want %v", p.Calls(), want)
	}
	got, _ := set.Get("p")
	if len(got) != 2 || got[0].Title != "Innuendo" || got[1].Title != "Headlong" {
		t.Errorf("matches = %+v", got)
	}
}

func TestSearchAllRecoversPanics(t *testing.T) {
	bad := &fakeProvider{name: "bad", tracks: func(title, artist string) ([]MatchResult, error) {
		panic("boom")
	}}
	good := &fakeProvider{name: "good", tracks: func(title, artist string) ([]MatchResult, error) {
		return []MatchResult{{Title: title}}, nil
	}}

	for _, concurrent := range []bool{false, true} {
		o := NewOrchestrator([]Provider{bad, good}, logger.Discard(), WithConcurrency(concurrent))
		set := o.SearchAll(context.Background(), []LocalTrack{track("x", "", "")}, ModeTrack)
		if !reflect.DeepEqual(set.Providers(), []string{"good"}) {
			t.Errorf("concurrent=%v: Providers() = %v", concurrent, set.Providers())
		}
	}
}

func TestSearchAllConcurrentKeepsRegistrationOrder(t *testing.T) {
	answer := func(title, artist string) ([]MatchResult, error) {
		return []MatchResult{{Title: title}}, nil
	}
	slow := &fakeProvider{name: "slow", delay: 50 * time.Millisecond, tracks: answer}
	fast := &fakeProvider{name: "fast", tracks: answer}

	var mu sync.Mutex
	var finished []string
	o := NewOrchestrator([]Provider{slow, fast}, logger.Discard(),
		WithConcurrency(true),
		WithProgress(func(name string, _ int) {
			mu.Lock()
			finished = append(finished, name)
			mu.Unlock()
		}),
	)
	set := o.SearchAll(context.Background(), []LocalTrack{track("x", "", "")}, ModeTrack)

	if want := []string{"slow", "fast"}; !reflect.DeepEqual(set.Providers(), want) {
		t.Errorf("Providers() = %v, want %v", set.Providers(), want)
	}
	if len(finished) != 2 {
		t.Errorf("progress hook called %d times, want 2", len(finished))
	}
}

func TestSearchAllProviderTimeout(t *testing.T) {
	blocked := &fakeProvider{name: "blocked", delay: time.Minute}
	blocked.tracks = func(title, artist string) ([]MatchResult, error) {
		return []MatchResult{{Kind: KindTrack, Title: title}}, nil
	}
	o := NewOrchestrator([]Provider{blocked}, logger.Discard(), WithProviderTimeout(20*time.Millisecond))

	start := time.Now()
	set := o.SearchAll(context.Background(), []LocalTrack{track("x", "", "")}, ModeTrack)
	if set.Len() != 0 {
		t.Errorf("expected empty result, got %d providers", set.Len())
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("SearchAll took %v, want it cut off by the timeout", elapsed)
	}
}

func TestSearchAllTimeoutAppliesPerCall(t *testing.T) {
	p := &fakeProvider{name: "p", delay: 40 * time.Millisecond}
	p.tracks = func(title, artist string) ([]MatchResult, error) {
		return []MatchResult{{Kind: KindTrack, Title: title}}, nil
	}
	tracks := []LocalTrack{
		track("Innuendo", "Queen", ""),
		track("Headlong", "Queen", ""),
		track("Ride the Wild Wind", "Queen", ""),
		track("Delilah", "Queen", ""),
		track("Bijou", "Queen", ""),
	}

	o := NewOrchestrator([]Provider{p}, logger.Discard(), WithProviderTimeout(100*time.Millisecond))
	set := o.SearchAll(context.Background(), tracks, ModeTrack)

	if got := set.Total(); got != len(tracks) {
		t.Errorf("Total() = %d, want %d: every call fits its own deadline", got, len(tracks))
	}
}

func TestManualSearchTrackLadder(t *testing.T) {
	p := &fakeProvider{name: "p", albums: func(album, artist string) ([]MatchResult, error) {
		if album == "Bohemian Rhapsody" && artist == "Queen" {
			return []MatchResult{{Kind: KindAlbum, Title: album, Artist: artist}}, nil
		}
		return nil, nil
	}}

	o := NewOrchestrator([]Provider{p}, logger.Discard())
	set := o.ManualSearch(context.Background(), "Queen - Bohemian Rhapsody", []LocalTrack{track("x", "", "")})

	want := []string{
		"track:Queen - Bohemian Rhapsody|",
		"album:Queen - Bohemian Rhapsody|",
		"track:Bohemian Rhapsody|Queen",
		"album:Bohemian Rhapsody|Queen",
	}
	if !reflect.DeepEqual(p.Calls(), want) {
		t.Errorf("calls =\n%v\nwant\n%v", p.Calls(), want)
	}
	if set.Total() != 1 {
		t.Errorf("Total() = %d, want 1", set.Total())
	}
}

func TestManualSearchAlbumLadder(t *testing.T) {
	p := &fakeProvider{name: "p", albums: func(album, artist string) ([]MatchResult, error) {
		if album == "Bohemian Rhapsody" && artist == "Queen" {
			return []MatchResult{{Kind: KindAlbum, Title: album, Artist: artist}}, nil
		}
		return nil, nil
	}}
	tracks := []LocalTrack{track("a", "", ""), track("b", "", "")}

	NewOrchestrator([]Provider{p}, logger.Discard()).ManualSearch(context.Background(), "Queen - Bohemian Rhapsody", tracks)

	want := []string{
		"album:Queen - Bohemian Rhapsody|",
		"album:Bohemian Rhapsody|Queen",
	}
	if !reflect.DeepEqual(p.Calls(), want) {
		t.Errorf("calls = %v, want %v", p.Calls(), want)
	}
}

func TestManualSearchFirstMatchPerProvider(t *testing.T) {
	eager := &fakeProvider{name: "eager", tracks: func(title, artist string) ([]MatchResult, error) {
		return []MatchResult{{Title: title}}, nil
	}}
	failing := &fakeProvider{name: "failing", tracks: func(title, artist string) ([]MatchResult, error) {
		return nil, timeoutError{}
	}}

	o := NewOrchestrator([]Provider{failing, eager}, logger.Discard(), WithConcurrency(true))
	set := o.ManualSearch(context.Background(), "Daft Punk Get Lucky", nil)

	if len(eager.Calls()) != 1 {
		t.Errorf("eager provider should stop after first variation, calls = %v", eager.Calls())
	}
	// 3 variations, 2 steps for the title-only one and 4 for each pair.
	if n := len(failing.Calls()); n != 10 {
		t.Errorf("failing provider should walk the whole ladder, got %d calls", n)
	}
	if !reflect.DeepEqual(set.Providers(), []string{"eager"}) {
		t.Errorf("Providers() = %v", set.Providers())
	}
}
