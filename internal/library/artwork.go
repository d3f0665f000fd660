package library

import (
	"context"
	"fmt"

	"tagmatch/internal/provider/apiclient"

	"go.senan.xyz/taglib"
)

// FetchArtwork downloads the cover image a match points at.
func FetchArtwork(ctx context.Context, client *apiclient.Client, url string) ([]byte, error) {
	data, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to download artwork: %w", err)
	}
	return data, nil
}

// EmbedArtwork stores image data as the file's cover. Empty data is a no-op.
func EmbedArtwork(path string, imageData []byte) error {
	if len(imageData) == 0 {
		return nil
	}
	if err := taglib.WriteImage(path, imageData); err != nil {
		return fmt.Errorf("failed to write artwork to %s: %w", path, err)
	}
	return nil
}
