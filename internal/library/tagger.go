package library

import (
	"fmt"
	"strconv"
	"strings"

	"tagmatch/internal/metadata"

	"go.senan.xyz/taglib"
)

// TagsFor computes the tags a chosen match gives one local track. For album
// matches the track's title and number come from the listing row that matches it.
func TagsFor(track metadata.LocalTrack, m metadata.MatchResult) map[string][]string {
	tags := make(map[string][]string)
	set := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			tags[key] = []string{value}
		}
	}

	set(taglib.Artist, m.Artist)
	set(taglib.Date, m.Year)

	if m.Kind == metadata.KindAlbum {
		set(taglib.Album, m.Title)
		set(taglib.AlbumArtist, m.Artist)
		if entry, ok := matchEntry(track, m.Tracks); ok {
			set(taglib.Title, entry.Title)
			set(taglib.TrackNumber, entry.Position)
		}
		return tags
	}

	set(taglib.Title, m.Title)
	set(taglib.Album, m.Album)
	return tags
}

// Apply writes the tags for m into the track's file.
func Apply(track metadata.LocalTrack, m metadata.MatchResult) error {
	tags := TagsFor(track, m)
	if len(tags) == 0 {
		return nil
	}
	if err := taglib.WriteTags(track.Path, tags, 0); err != nil {
		return fmt.Errorf("failed to write tags to %s: %w", track.Path, err)
	}
	return nil
}

// matchEntry finds the listing row for a track, first by track number and then
// by the most similar accepted title.
func matchEntry(track metadata.LocalTrack, entries []metadata.TrackEntry) (metadata.TrackEntry, bool) {
	if n, ok := trackNumber(track.Tags.TrackNumber); ok {
		for _, e := range entries {
			if pos, ok := trackNumber(e.Position); ok && pos == n {
				return e, true
			}
		}
	}

	title := track.Tags.Title
	if title == "" {
		title = strings.TrimSuffix(track.Filename, fileExt(track.Filename))
	}

	var best metadata.TrackEntry
	bestScore := metadata.AcceptThreshold
	for _, e := range entries {
		if s := metadata.Similarity(title, e.Title); s > bestScore {
			best, bestScore = e, s
		}
	}
	return best, bestScore > metadata.AcceptThreshold
}

// trackNumber parses "3", "03" or "3/12".
func trackNumber(s string) (int, bool) {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.Atoi(s)
	return n, err == nil && n > 0
}

func fileExt(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[i:]
	}
	return ""
}
