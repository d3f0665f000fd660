package metadata

import (
	"math"
	"testing"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "Bohemian Rhapsody", "Bohemian Rhapsody", 100},
		{"case insensitive", "QUEEN", "queen", 100},
		{"trimmed", "  Queen ", "Queen", 100},
		{"substring", "Bohemian Rhapsody", "Bohemian Rhapsody (Remastered 2011)", 75},
		{"superstring", "The Beatles", "Beatles", 75},
		{"empty left", "", "Queen", 0},
		{"empty right", "Queen", "", 0},
		{"blank", "   ", "   ", 0},
		{"edit distance", "kitten", "sitting", (1 - 3.0/7.0) * 100},
		{"unrelated", "abc", "xyz", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilaritySymmetricAndBounded(t *testing.T) {
	words := []string{"Queen", "queen", "Bohemian Rhapsody", "Rhapsody", "Daft Punk", "Get Lucky", "Björk", "bjork", "", "a"}
	for _, a := range words {
		for _, b := range words {
			ab, ba := Similarity(a, b), Similarity(b, a)
			if ab != ba {
				t.Errorf("Similarity(%q, %q) = %v but reversed = %v", a, b, ab, ba)
			}
			if ab < 0 || ab > 100 {
				t.Errorf("Similarity(%q, %q) = %v out of range", a, b, ab)
			}
		}
		if a != "" && Similarity(a, a) != 100 {
			t.Errorf("Similarity(%q, %q) = %v, want 100", a, a, Similarity(a, a))
		}
	}
}

func TestAccept(t *testing.T) {
	tests := []struct {
		name          string
		title, artist float64
		wantScore     float64
		wantOK        bool
	}{
		{"both above", 95, 98, 96.5, true},
		{"artist below despite mean above", 61, 59, 0, false},
		{"title below", 59, 100, 0, false},
		{"exactly threshold rejected", 60, 100, 0, false},
		{"just above", 61, 61, 61, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, ok := Accept(tt.title, tt.artist)
			if ok != tt.wantOK || score != tt.wantScore {
				t.Errorf("Accept(%v, %v) = (%v, %v), want (%v, %v)", tt.title, tt.artist, score, ok, tt.wantScore, tt.wantOK)
			}
		})
	}
}

func TestScoreHit(t *testing.T) {
	if score, ok := ScoreHit("Bohemian Rhapsody", "", "Bohemian Rhapsody", "Anybody"); !ok || score != 100 {
		t.Errorf("missing query artist should not penalize: got (%v, %v)", score, ok)
	}
	if _, ok := ScoreHit("Bohemian Rhapsody", "Queen", "Bohemian Rhapsody", "Panic! at the Disco"); ok {
		t.Error("hit with unrelated artist should be rejected")
	}
	if score, ok := ScoreHit("bohemian rhapsody", "queen", "Bohemian Rhapsody", "Queen"); !ok || score != 100 {
		t.Errorf("case-only difference should score 100, got (%v, %v)", score, ok)
	}
}

func TestRankMatchesStable(t *testing.T) {
	matches := []MatchResult{
		{Title: "first", Score: 80},
		{Title: "best", Score: 99},
		{Title: "second", Score: 80},
	}
	RankMatches(matches)

	want := []string{"best", "first", "second"}
	for i, w := range want {
		if matches[i].Title != w {
			t.Errorf("matches[%d] = %q, want %q", i, matches[i].Title, w)
		}
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"The Beatles", "beatles"},
		{"AC/DC", "acdc"},
		{"Song by an Artist!", "song artist"},
		{"a", ""},
	}
	for _, tt := range tests {
		if got := CleanText(tt.in); got != tt.want {
			t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
