package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"
	"time"
)

func TestRetryPolicyRetriesTransient(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond, Retryable: IsTransient}

	attempts := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return timeoutError{}
	})
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if !errors.Is(err, timeoutError{}) {
		t.Errorf("err = %v, want the last timeout", err)
	}
}

func TestRetryPolicyStopsOnSuccess(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}

	attempts := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return io.ErrUnexpectedEOF
		}
		return nil
	})
	if err != nil || attempts != 2 {
		t.Errorf("Do() = %v after %d attempts", err, attempts)
	}
}

func TestRetryPolicySkipsPermanentErrors(t *testing.T) {
	permanent := errors.New("status 404")
	attempts := 0
	err := DefaultRetryPolicy().Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return permanent
	})
	if attempts != 1 || !errors.Is(err, permanent) {
		t.Errorf("Do() = %v after %d attempts", err, attempts)
	}
}

func TestNoRetry(t *testing.T) {
	attempts := 0
	NoRetry.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return timeoutError{}
	})
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", timeoutError{}, true},
		{"connection refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, true},
		{"connection reset wrapped", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"unexpected eof", fmt.Errorf("body: %w", io.ErrUnexpectedEOF), true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"url timeout", &url.Error{Op: "Get", URL: "http://x", Err: timeoutError{}}, true},
		{"url bad scheme", &url.Error{Op: "Get", URL: "x", Err: errors.New("unsupported protocol scheme")}, false},
		{"plain", errors.New("decode failed"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
