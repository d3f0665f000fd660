package metadata

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// State is a step of the operator selection flow.
type State string

const (
	StatePresenting    State = "presenting"
	StateAwaitingInput State = "awaiting_input"
	StateConfirming    State = "confirming"
	StateAwaitingQuery State = "awaiting_query"
	StateManualSearch  State = "manual_search"
	StateResolved      State = "resolved"
	StateAbandoned     State = "abandoned"
)

// Terminal reports whether no further input is accepted in this state.
func (s State) Terminal() bool {
	return s == StateResolved || s == StateAbandoned
}

// Operator commands understood while awaiting input.
const (
	InputAbandon = "0"
	InputSearch  = "s"
)

// ManualSearcher runs a free-text search for the tracks being matched.
type ManualSearcher interface {
	ManualSearch(ctx context.Context, query string, tracks []LocalTrack) ProviderResultSet
}

// View is a snapshot of a Selection for whatever front end renders it.
type View struct {
	State      State       `json:"state"`
	Candidates []Candidate `json:"candidates"`
	Selected   *Candidate  `json:"selected,omitempty"`
	Message    string      `json:"message,omitempty"`
	Query      string      `json:"query,omitempty"`
}

// Selection is the operator choice state machine. It is driven by discrete
// input strings and knows nothing about the transport that supplies them.
// A Selection is not safe for concurrent use.
type Selection struct {
	state      State
	candidates []Candidate
	selected   int
	tracks     []LocalTrack
	searcher   ManualSearcher
	message    string
	query      string
	result     *MatchResult
}

// NewSelection starts a selection over the reconciled contents of set.
// searcher may be nil, in which case manual search is refused.
func NewSelection(set ProviderResultSet, tracks []LocalTrack, searcher ManualSearcher) *Selection {
	s := &Selection{
		state:      StatePresenting,
		candidates: Reconcile(set),
		selected:   -1,
		tracks:     tracks,
		searcher:   searcher,
	}
	if len(s.candidates) == 0 {
		s.message = "No matches found"
	}
	return s
}

// State returns the current state.
func (s *Selection) State() State { return s.state }

// Candidates returns the list currently offered to the operator.
func (s *Selection) Candidates() []Candidate { return s.candidates }

// Result returns the chosen match once the selection is resolved.
func (s *Selection) Result() (MatchResult, bool) {
	if s.result == nil {
		return MatchResult{}, false
	}
	return *s.result, true
}

// Present shows the candidate list and starts waiting for input.
func (s *Selection) Present() View {
	if s.state == StatePresenting {
		s.state = StateAwaitingInput
	}
	return s.View()
}

// View returns the current snapshot.
func (s *Selection) View() View {
	v := View{
		State:      s.state,
		Candidates: s.candidates,
		Message:    s.message,
		Query:      s.query,
	}
	if s.selected >= 0 && s.selected < len(s.candidates) {
		c := s.candidates[s.selected]
		v.Selected = &c
	}
	return v
}

// Handle applies one line of operator input. Invalid input leaves the state
// unchanged and returns ErrInvalidSelection alongside the view to re-prompt with.
func (s *Selection) Handle(ctx context.Context, input string) (View, error) {
	if s.state.Terminal() {
		return s.View(), ErrSessionClosed
	}
	if s.state == StatePresenting {
		s.Present()
	}

	input = strings.TrimSpace(input)
	s.message = ""

	switch s.state {
	case StateAwaitingInput:
		return s.handleChoice(input)
	case StateConfirming:
		return s.handleConfirm(input)
	case StateAwaitingQuery:
		return s.handleQuery(ctx, input), nil
	}
	return s.View(), fmt.Errorf("unexpected state %s", s.state)
}

func (s *Selection) handleChoice(input string) (View, error) {
	switch strings.ToLower(input) {
	case InputAbandon:
		s.state = StateAbandoned
		return s.View(), nil
	case InputSearch:
		if s.searcher == nil {
			return s.invalid("Manual search is not available")
		}
		s.state = StateAwaitingQuery
		return s.View(), nil
	}

	k, err := strconv.Atoi(input)
	if err != nil || k < 1 || k > len(s.candidates) {
		return s.invalid("Invalid choice, try again")
	}
	s.selected = k - 1
	s.state = StateConfirming
	return s.View(), nil
}

func (s *Selection) handleConfirm(input string) (View, error) {
	switch strings.ToLower(input) {
	case "", "y", "yes":
		chosen := s.candidates[s.selected].MatchResult
		s.result = &chosen
		s.state = StateResolved
	case "n", "no":
		s.selected = -1
		s.state = StateAwaitingInput
	default:
		return s.invalid("Please answer y or n")
	}
	return s.View(), nil
}

func (s *Selection) handleQuery(ctx context.Context, query string) View {
	if query == "" {
		s.state = StateAwaitingInput
		return s.View()
	}

	s.state = StateManualSearch
	s.query = query
	set := s.searcher.ManualSearch(ctx, query, s.tracks)

	s.candidates = Reconcile(set)
	s.selected = -1
	s.state = StatePresenting
	if len(s.candidates) == 0 {
		s.message = fmt.Sprintf("No matches found for %q", query)
	}
	return s.View()
}

func (s *Selection) invalid(msg string) (View, error) {
	s.message = msg
	return s.View(), ErrInvalidSelection
}
