package metadata

import (
	"encoding/json"
	"fmt"
)

// DecodeHits unmarshals every element of a provider's hit array on its own.
// Elements that fail to decode are left out and reported to skip with an
// error wrapping ErrMalformedHit. skip may be nil.
func DecodeHits[T any](raw []json.RawMessage, skip func(index int, err error)) []T {
	hits := make([]T, 0, len(raw))
	for i, r := range raw {
		var hit T
		if err := json.Unmarshal(r, &hit); err != nil {
			if skip != nil {
				skip(i, fmt.Errorf("%w: %v", ErrMalformedHit, err))
			}
			continue
		}
		hits = append(hits, hit)
	}
	return hits
}
