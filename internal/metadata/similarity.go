package metadata

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// AcceptThreshold is the minimum similarity each of title and artist must exceed.
const AcceptThreshold = 60.0

var folder = cases.Fold()

// Similarity compares two strings case-insensitively and returns a score in [0, 100].
// Exact matches score 100, containment scores 75, anything else falls back to
// a Levenshtein ratio.
func Similarity(a, b string) float64 {
	a = folder.String(strings.TrimSpace(a))
	b = folder.String(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 75
	}

	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	dist := levenshtein.ComputeDistance(a, b)
	ratio := (1 - float64(dist)/float64(longest)) * 100
	return min(max(ratio, 0), 100)
}

// ScoreHit applies the acceptance rule to one raw provider hit. Title and artist
// are compared independently and both must exceed AcceptThreshold; the combined
// score is their mean. A missing query artist counts as a perfect artist match.
func ScoreHit(title, artist, hitTitle, hitArtist string) (float64, bool) {
	titleScore := Similarity(title, hitTitle)
	artistScore := 100.0
	if strings.TrimSpace(artist) != "" {
		artistScore = Similarity(artist, hitArtist)
	}
	return Accept(titleScore, artistScore)
}

// Accept combines two field similarities, rejecting the pair unless both exceed
// AcceptThreshold.
func Accept(titleScore, artistScore float64) (float64, bool) {
	if titleScore <= AcceptThreshold || artistScore <= AcceptThreshold {
		return 0, false
	}
	return (titleScore + artistScore) / 2, true
}

// RankMatches sorts matches by descending score, keeping provider order for ties.
func RankMatches(matches []MatchResult) {
	slices.SortStableFunc(matches, func(a, b MatchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
}

var (
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)
	stopWords   = map[string]bool{"the": true, "a": true, "an": true, "by": true}
)

// CleanText lower-cases s, removes stop words and strips punctuation.
func CleanText(s string) string {
	s = punctuation.ReplaceAllString(strings.ToLower(s), "")
	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if !stopWords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}
