package scraper

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mikandro/smartfamilytravelscout-sub001/models"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{NewRateLimitError(models.SourceRyanair, time.Hour, "daily", 5, 5), "rate_limited"},
		{NewAuthError(models.SourceAirbnb, "rejected key", "****abcd"), "authentication_failed"},
		{NewCaptchaError(models.SourceRyanair, "recaptcha", "https://x", ""), "anti_bot_challenge"},
		{NewTimeoutError(models.SourceBooking, "navigate", 60*time.Second, nil), "operation_timed_out"},
		{NewParseError(models.SourceBooking, "no cards", "cards", "<html>", false, nil), "extraction_failed"},
		{NewNetworkError(models.SourceBooking, "reset", "https://x", 502, nil), "transport_failed"},
		{errors.New("plain"), "error"},
	}

	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v): got %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestErrorKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("booking failed after 3 attempts: %w",
		NewNetworkError(models.SourceBooking, "reset", "https://x", 0, nil))

	if got := ErrorKind(err); got != "transport_failed" {
		t.Errorf("wrapped kind: got %q, want transport_failed", got)
	}
	if !IsRecoverable(err) {
		t.Error("wrapped transport failure must stay recoverable")
	}
}

func TestRecoverability(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit clears at midnight", NewRateLimitError(models.SourceRyanair, time.Hour, "daily", 5, 5), true},
		{"timeout may pass on retry", NewTimeoutError(models.SourceBooking, "navigate", time.Minute, nil), true},
		{"network blip may pass on retry", NewNetworkError(models.SourceBooking, "reset", "https://x", 0, nil), true},
		{"bad key needs operator action", NewAuthError(models.SourceAirbnb, "rejected", "****"), false},
		{"challenge may clear on a later run", NewCaptchaError(models.SourceRyanair, "recaptcha", "https://x", ""), true},
		{"structural parse failure", NewParseError(models.SourceBooking, "no cards", "cards", "", false, nil), false},
		{"transient parse failure", NewParseError(models.SourceBooking, "truncated response", "cards", "", true, nil), true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoverable(tt.err); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScrapeErrorMessageFormat(t *testing.T) {
	err := NewCaptchaError(models.SourceRyanair, "recaptcha", "https://www.ryanair.com", "")
	want := "[ryanair] anti-bot challenge detected, aborting"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseErrorTruncatesSample(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	err := NewParseError(models.SourceBooking, "no cards", "cards", string(long), false, nil)
	if len(err.Sample) != 200 {
		t.Errorf("sample length: got %d, want 200", len(err.Sample))
	}
}
