package metadata

import "strings"

// Separators tried in order when splitting a free-text query into artist and title.
// Only the first one present in the query is used.
var querySeparators = []string{" - ", " – ", " / ", " : ", " by ", "-", "–", "/", ":"}

// Normalize turns a free-text query into an ordered list of candidate
// interpretations. The whole query as a title is always first; the list
// never holds two candidates with the same (artist, title) pair.
func Normalize(raw string) []SearchQuery {
	query := strings.TrimSpace(strings.ReplaceAll(strings.TrimSpace(raw), "_", " "))

	variations := []SearchQuery{{Title: query}}

	split := false
	for _, sep := range querySeparators {
		if !strings.Contains(query, sep) {
			continue
		}
		split = true

		left, right, _ := strings.Cut(query, sep)
		left, right = strings.TrimSpace(left), strings.TrimSpace(right)
		if left == "" || right == "" {
			break
		}

		variations = append(variations,
			SearchQuery{Artist: left, Title: right},
			SearchQuery{Artist: right, Title: left},
		)

		cleanLeft, cleanRight := CleanText(left), CleanText(right)
		if (cleanLeft != left || cleanRight != right) && cleanLeft != "" && cleanRight != "" {
			variations = append(variations,
				SearchQuery{Artist: cleanLeft, Title: cleanRight},
				SearchQuery{Artist: cleanRight, Title: cleanLeft},
			)
		}
		break
	}

	if !split {
		words := strings.Fields(query)
		if len(words) > 2 {
			mid := len(words) / 2
			first := strings.Join(words[:mid], " ")
			second := strings.Join(words[mid:], " ")
			variations = append(variations,
				SearchQuery{Title: first, Artist: second},
				SearchQuery{Artist: first, Title: second},
			)
		}
	}

	return dedupeQueries(variations)
}

func dedupeQueries(queries []SearchQuery) []SearchQuery {
	seen := make(map[SearchQuery]bool, len(queries))
	out := make([]SearchQuery, 0, len(queries))
	for _, q := range queries {
		if seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return out
}
