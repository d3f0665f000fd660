package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
)

var (
	// ErrMalformedHit marks a single provider hit that could not be parsed.
	ErrMalformedHit = errors.New("malformed provider hit")

	// ErrInvalidSelection is reported for operator input outside the command grammar.
	ErrInvalidSelection = errors.New("invalid selection")

	// ErrSessionClosed is returned when input reaches a selection that already finished.
	ErrSessionClosed = errors.New("selection already finished")
)

// UnavailableError reports a provider that could not be initialized and is
// left out of the active set for the whole session.
type UnavailableError struct {
	Provider string
	Cause    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Cause)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

// IsTransient reports whether err is a timeout or connection failure worth retrying.
// Application level failures such as HTTP status errors and decode errors are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}

	// *url.Error satisfies net.Error itself, so look at what it wraps.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return IsTransient(urlErr.Err)
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
