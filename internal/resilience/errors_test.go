package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"golang.org/x/time/rate"
)

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		code      int
		transient bool
		permanent bool
	}{
		{200, false, false},
		{400, false, true},
		{401, false, true},
		{403, false, true},
		{404, false, true},
		{408, true, false},
		{422, false, true},
		{429, true, false},
		{500, true, false},
		{503, true, false},
		{529, true, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.code), func(t *testing.T) {
			err := ClassifyHTTPStatus(tt.code, errors.New("boom"))
			if got := IsTransient(err); got != tt.transient {
				t.Errorf("IsTransient = %v, want %v", got, tt.transient)
			}
			if got := IsPermanent(err); got != tt.permanent {
				t.Errorf("IsPermanent = %v, want %v", got, tt.permanent)
			}
		})
	}
}

func TestStatusCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", ClassifyHTTPStatus(429, nil))
	if StatusCode(err) != 429 {
		t.Errorf("expected 429, got %d", StatusCode(err))
	}
	if !IsRateLimited(err) {
		t.Error("expected rate limited")
	}
	if StatusCode(errors.New("plain")) != 0 {
		t.Error("expected 0 for unclassified error")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient_NetworkPatterns(t *testing.T) {
	cases := []error{
		timeoutErr{},
		syscall.ECONNRESET,
		errors.New("read tcp: connection reset by peer"),
		errors.New("unexpected EOF"),
	}
	for _, err := range cases {
		if !IsTransient(err) {
			t.Errorf("expected transient: %v", err)
		}
	}
	if IsTransient(nil) {
		t.Error("nil should not be transient")
	}
	if IsTransient(errors.New("invalid request body")) {
		t.Error("plain error should not be transient")
	}
}

func TestRequireKey(t *testing.T) {
	if err := RequireKey("tavily", "tvly-123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := RequireKey("tavily", "  "); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestAdaptiveLimiter_Bounds(t *testing.T) {
	l := NewAdaptiveLimiter("exa", rate.Limit(8), 1)
	for i := 0; i < 10; i++ {
		l.OnRateLimit()
	}
	if l.Limit() != rate.Limit(2) {
		t.Errorf("expected floor 2, got %v", l.Limit())
	}
	for i := 0; i < 50; i++ {
		l.OnSuccess()
	}
	if l.Limit() != rate.Limit(16) {
		t.Errorf("expected ceiling 16, got %v", l.Limit())
	}
}

func TestPaced_FeedsBackRateLimit(t *testing.T) {
	l := NewAdaptiveLimiter("exa", rate.Limit(100), 5)
	_, err := Paced(context.Background(), l, func(_ context.Context) (int, error) {
		return 0, ClassifyHTTPStatus(429, nil)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if l.Limit() != rate.Limit(50) {
		t.Errorf("expected halved rate, got %v", l.Limit())
	}

	got, err := Paced(context.Background(), nil, func(_ context.Context) (int, error) { return 3, nil })
	if err != nil || got != 3 {
		t.Errorf("nil limiter should pass through, got %d %v", got, err)
	}
}
