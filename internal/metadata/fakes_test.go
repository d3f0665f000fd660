package metadata

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// fakeProvider records every call and answers from the configured functions.
// A call waits delay before answering and gives up with ctx.Err() when ctx ends first.
type fakeProvider struct {
	name   string
	delay  time.Duration
	tracks func(title, artist string) ([]MatchResult, error)
	albums func(album, artist string) ([]MatchResult, error)

	mu    sync.Mutex
	calls []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) SearchTrack(ctx context.Context, title, artist string) ([]MatchResult, error) {
	if err := f.record(ctx, fmt.Sprintf("track:%s|%s", title, artist)); err != nil {
		return nil, err
	}
	if f.tracks == nil {
		return nil, nil
	}
	return f.tracks(title, artist)
}

func (f *fakeProvider) SearchAlbum(ctx context.Context, album, artist string) ([]MatchResult, error) {
	if err := f.record(ctx, fmt.Sprintf("album:%s|%s", album, artist)); err != nil {
		return nil, err
	}
	if f.albums == nil {
		return nil, nil
	}
	return f.albums(album, artist)
}

func (f *fakeProvider) record(ctx context.Context, call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeProvider) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func track(title, artist, album string) LocalTrack {
	return LocalTrack{
		Path:     "/music/" + title + ".mp3",
		Filename: title + ".mp3",
		Tags:     Tags{Title: title, Artist: artist, Album: album},
	}
}
