// Package library turns audio files on disk into metadata.LocalTrack records
// and writes chosen metadata back into them.
package library

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"tagmatch/internal/logger"
	"tagmatch/internal/metadata"
	"tagmatch/pkg/utils"

	"go.senan.xyz/taglib"
)

// Group is the set of tracks found in one directory.
type Group struct {
	Dir    string
	Tracks []metadata.LocalTrack
}

// Scan reads the tags of every audio file under dir. Files whose tags cannot be
// read are still returned with empty tags.
func Scan(dir string, recursive bool, log *logger.Logger) ([]metadata.LocalTrack, error) {
	files, err := utils.FindAudioFiles(dir, recursive)
	if err != nil {
		return nil, err
	}

	tracks := make([]metadata.LocalTrack, 0, len(files))
	for _, path := range files {
		t, err := ReadTrack(path)
		if err != nil {
			log.Debug("Failed to read tags from %s: %v", path, err)
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// ReadTrack builds a LocalTrack for one file. On error the track carries empty tags.
func ReadTrack(path string) (metadata.LocalTrack, error) {
	t := metadata.LocalTrack{
		Path:     path,
		Filename: filepath.Base(path),
	}

	tags, err := taglib.ReadTags(path)
	if err != nil {
		return t, fmt.Errorf("failed to read tags: %w", err)
	}

	t.Tags = metadata.Tags{
		Title:       firstTag(tags, taglib.Title),
		Artist:      firstTag(tags, taglib.Artist),
		Album:       firstTag(tags, taglib.Album),
		Date:        firstTag(tags, taglib.Date),
		TrackNumber: firstTag(tags, taglib.TrackNumber),
	}
	return t, nil
}

// GroupByDir splits tracks by parent directory, sorted by directory name.
func GroupByDir(tracks []metadata.LocalTrack) []Group {
	byDir := make(map[string][]metadata.LocalTrack)
	for _, t := range tracks {
		dir := filepath.Dir(t.Path)
		byDir[dir] = append(byDir[dir], t)
	}

	groups := make([]Group, 0, len(byDir))
	for dir, ts := range byDir {
		groups = append(groups, Group{Dir: dir, Tracks: ts})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Dir < groups[j].Dir })
	return groups
}

func firstTag(tags map[string][]string, key string) string {
	if vals, ok := tags[key]; ok && len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}
