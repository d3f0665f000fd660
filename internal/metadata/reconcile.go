package metadata

import "strings"

// Candidate is a MatchResult as shown to the operator, numbered from 1.
// YearFrom and TracksFrom name the provider a missing field was borrowed from.
type Candidate struct {
	MatchResult
	Index      int    `json:"index"`
	YearFrom   string `json:"year_from,omitempty"`
	TracksFrom string `json:"tracks_from,omitempty"`
}

// Reconcile flattens set into one list, provider by provider, and fills a
// candidate's missing year or track listing from the earliest earlier candidate
// with the same title and artist. Present values are never overwritten and
// no candidates are merged. The returned candidates share no slices with set.
func Reconcile(set ProviderResultSet) []Candidate {
	var out []Candidate
	for _, entry := range set.Entries() {
		for _, m := range entry.Matches {
			m.Tracks = append([]TrackEntry(nil), m.Tracks...)
			out = append(out, Candidate{MatchResult: m, Index: len(out) + 1})
		}
	}

	for i := range out {
		c := &out[i]
		if c.Year != "" && len(c.Tracks) > 0 {
			continue
		}
		key := reconcileKey(c.MatchResult)
		for j := 0; j < i; j++ {
			prev := out[j]
			if reconcileKey(prev.MatchResult) != key {
				continue
			}
			if c.Year == "" && prev.Year != "" {
				c.Year = prev.Year
				c.YearFrom = origin(prev.YearFrom, prev.Provider)
			}
			if len(c.Tracks) == 0 && len(prev.Tracks) > 0 {
				c.Tracks = append([]TrackEntry(nil), prev.Tracks...)
				c.TracksFrom = origin(prev.TracksFrom, prev.Provider)
			}
		}
	}
	return out
}

type candidateKey struct{ title, artist string }

func reconcileKey(m MatchResult) candidateKey {
	return candidateKey{
		title:  strings.ToLower(strings.TrimSpace(m.Title)),
		artist: strings.ToLower(strings.TrimSpace(m.Artist)),
	}
}

func origin(borrowed, own string) string {
	if borrowed != "" {
		return borrowed
	}
	return own
}
