// Package console drives a metadata.Selection from a terminal: it renders the
// candidate list, reads the operator's answers and feeds them back.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"tagmatch/internal/metadata"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// Prompter reads operator input line by line.
type Prompter struct {
	in       *bufio.Reader
	out      io.Writer
	colorize bool
}

// New creates a Prompter. Output is colored only when out is a terminal.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:       bufio.NewReader(in),
		out:      out,
		colorize: shouldColorize(out),
	}
}

// Choose runs sel until the operator resolves or abandons it. End of input
// abandons the selection.
func (p *Prompter) Choose(ctx context.Context, title string, sel *metadata.Selection) (metadata.MatchResult, bool, error) {
	if title != "" {
		fmt.Fprintln(p.out, p.paint(title, color.Bold))
	}

	view := sel.Present()
	p.renderList(view)
	if view.Message != "" {
		fmt.Fprintln(p.out, p.paint(view.Message, color.FgYellow))
	}

	for !view.State.Terminal() {
		if err := ctx.Err(); err != nil {
			return metadata.MatchResult{}, false, err
		}

		fmt.Fprint(p.out, p.prompt(view))
		line, err := p.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(p.out)
				return metadata.MatchResult{}, false, nil
			}
			return metadata.MatchResult{}, false, err
		}

		if view.State == metadata.StateAwaitingQuery && strings.TrimSpace(line) != "" {
			fmt.Fprintln(p.out, p.paint("Searching...", color.FgCyan))
		}

		next, err := sel.Handle(ctx, line)
		if err != nil && !errors.Is(err, metadata.ErrInvalidSelection) {
			return metadata.MatchResult{}, false, err
		}
		if next.Message != "" {
			fmt.Fprintln(p.out, p.paint(next.Message, color.FgYellow))
		}

		switch next.State {
		case metadata.StatePresenting:
			next = sel.Present()
			p.renderList(next)
		case metadata.StateConfirming:
			p.renderDetail(*next.Selected)
		case metadata.StateAwaitingInput:
			if view.State != metadata.StateAwaitingInput {
				p.renderList(next)
			}
		}
		view = next
	}

	m, ok := sel.Result()
	return m, ok, nil
}

func (p *Prompter) prompt(view metadata.View) string {
	var s string
	switch {
	case view.State == metadata.StateConfirming:
		s = "Use this match? [Y/n] "
	case view.State == metadata.StateAwaitingQuery:
		s = "Search query: "
	case len(view.Candidates) == 0:
		s = "s to search, 0 to skip: "
	default:
		s = fmt.Sprintf("Select [1-%d], s to search, 0 to skip: ", len(view.Candidates))
	}
	return p.paint(s, color.FgGreen)
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *Prompter) renderList(view metadata.View) {
	if len(view.Candidates) == 0 {
		return
	}
	fmt.Fprintln(p.out, RenderCandidates(view.Candidates))
}

func (p *Prompter) renderDetail(c metadata.Candidate) {
	fmt.Fprintln(p.out, p.paint(FormatCandidate(c), color.Bold))
	if c.Kind == metadata.KindTrack && c.Album != "" {
		fmt.Fprintf(p.out, "Album: %s\n", c.Album)
	}
	fmt.Fprintf(p.out, "Provider: %s  Score: %.0f\n", c.Provider, c.Score)
	if c.YearFrom != "" {
		fmt.Fprintf(p.out, "Year from: %s\n", c.YearFrom)
	}
	if len(c.Tracks) > 0 {
		if c.TracksFrom != "" {
			fmt.Fprintf(p.out, "Tracks from: %s\n", c.TracksFrom)
		}
		fmt.Fprintln(p.out, RenderTracks(c.Tracks))
	}
}

func (p *Prompter) paint(s string, attrs ...color.Attribute) string {
	c := color.New(attrs...)
	if p.colorize {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}

// FormatCandidate renders "Artist - Title (Year) • N tracks".
func FormatCandidate(c metadata.Candidate) string {
	var b strings.Builder
	b.WriteString(c.Artist)
	b.WriteString(" - ")
	b.WriteString(c.Title)
	if c.Year != "" {
		fmt.Fprintf(&b, " (%s)", c.Year)
	}
	if n := len(c.Tracks); n > 0 {
		fmt.Fprintf(&b, " • %d tracks", n)
	}
	return b.String()
}

// RenderCandidates renders the numbered candidate table, one block per provider.
func RenderCandidates(candidates []metadata.Candidate) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Provider", "Match"})

	for i, c := range candidates {
		if i > 0 && candidates[i-1].Provider != c.Provider {
			tw.AppendSeparator()
		}
		tw.AppendRow(table.Row{c.Index, c.Provider, FormatCandidate(c)})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

// RenderTracks renders a track listing.
func RenderTracks(tracks []metadata.TrackEntry) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Title", "Length"})
	for _, t := range tracks {
		tw.AppendRow(table.Row{t.Position, t.Title, formatDuration(t.Duration)})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
