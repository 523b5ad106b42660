package scraper

import (
	"context"
	"testing"
	"time"
)

func TestDetectChallenge(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		wantType string
		wantHit  bool
	}{
		{
			name:     "recaptcha widget",
			html:     `<div class="g-recaptcha" data-sitekey="x"></div>`,
			wantType: "recaptcha",
			wantHit:  true,
		},
		{
			name:     "perimeterx block page",
			html:     `<div id="px-captcha"></div>`,
			wantType: "perimeterx",
			wantHit:  true,
		},
		{
			name:     "cloudflare interstitial",
			html:     `<form id="cf-challenge-form">`,
			wantType: "cloudflare",
			wantHit:  true,
		},
		{
			name:     "text marker case-insensitive",
			html:     `<h1>Please Verify You Are Human</h1>`,
			wantType: "challenge_text",
			wantHit:  true,
		},
		{
			name:    "ordinary results page",
			html:    `<div data-testid="property-card"><span>Hotel Central</span></div>`,
			wantHit: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, hit := DetectChallenge(tt.html)
			if hit != tt.wantHit {
				t.Fatalf("hit = %v, want %v", hit, tt.wantHit)
			}
			if hit && gotType != tt.wantType {
				t.Errorf("type: got %q, want %q", gotType, tt.wantType)
			}
		})
	}
}

func TestHumanDelayRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	HumanDelay(ctx, time.Minute, 2*time.Minute)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancelled delay took %v, want immediate return", elapsed)
	}
}

func TestHumanDelayBounds(t *testing.T) {
	start := time.Now()
	HumanDelay(context.Background(), 10*time.Millisecond, 30*time.Millisecond)
	elapsed := time.Since(start)
	if elapsed < 10*time.Millisecond {
		t.Errorf("delay %v shorter than minimum", elapsed)
	}
}
