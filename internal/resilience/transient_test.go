package resilience

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"marked transient", MarkTransient(errors.New("rate limited"), 429), true},
		{"wrapped transient", fmt.Errorf("wiki: search: %w", MarkTransient(errors.New("503"), 503)), true},
		{"connection reset", syscall.ECONNRESET, true},
		{"connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"message heuristic", errors.New("read tcp: connection reset by peer"), true},
		{"io timeout message", eris.New("Get \"https://en.wikipedia.org\": i/o timeout"), true},
		{"plain error", errors.New("no such page"), false},
		{"context canceled", context.Canceled, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestTransientErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	te := MarkTransient(inner, 500)

	if !errors.Is(te, inner) {
		t.Error("expected MarkTransient to preserve the error chain")
	}
	if te.Status != 500 {
		t.Errorf("expected status 500, got %d", te.Status)
	}
	if te.Error() != "boom" {
		t.Errorf("expected message %q, got %q", "boom", te.Error())
	}
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !RetryableStatus(code) {
			t.Errorf("expected %d to be retryable", code)
		}
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 501} {
		if RetryableStatus(code) {
			t.Errorf("expected %d not to be retryable", code)
		}
	}
}
