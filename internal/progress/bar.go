// Package progress renders a console progress bar over provider searches.
package progress

import (
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Bar represents a progress bar over a known number of steps
type Bar struct {
	mu   sync.Mutex
	bar  *progressbar.ProgressBar
	done bool
}

// New creates a new progress bar writing to w
func New(total int, description string, w io.Writer) *Bar {
	return &Bar{
		bar: progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionOnCompletion(func() { io.WriteString(w, "\n") }),
		),
	}
}

// Increment advances the bar by one step
func (b *Bar) Increment() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.done {
		b.bar.Add(1)
	}
}

// Describe replaces the label shown before the bar
func (b *Bar) Describe(description string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bar.Describe(description)
}

// Finish marks the progress as complete
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.done {
		b.bar.Finish()
		b.done = true
	}
}
