package scraper

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/mikandro/smartfamilytravelscout-sub001/models"
	"github.com/mikandro/smartfamilytravelscout-sub001/utils"
)

// Session is the minimal browser capability adapters drive. Every operation
// carries an explicit timeout; deadline hits surface as *TimeoutError so the
// owning adapter can report them without inspecting context errors.
type Session interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string, timeout time.Duration) error
	Type(ctx context.Context, selector, text string, timeout time.Duration) error
	HTML(ctx context.Context, timeout time.Duration) (string, error)
	Evaluate(ctx context.Context, js string, result interface{}, timeout time.Duration) error
	Screenshot(ctx context.Context, name string) (string, error)
	Close() error
}

// SessionFactory creates a fresh session per adapter run. Sessions are
// exclusively owned by the run that created them and never shared.
type SessionFactory func(source models.Source) (Session, error)

// User agents that look residential; one is picked per session.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
}

// stealthScript is injected on every new document to mask the usual
// automation fingerprints before site scripts run.
const stealthScript = `
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	window.chrome = window.chrome || { runtime: {} };
	Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
	Object.defineProperty(navigator, 'languages', { get: () => ['en-GB', 'en', 'en-US'] });
`

// SessionConfig configures one browser session. Anti-fingerprinting behavior
// is configuration here, not script injection scattered through adapters.
type SessionConfig struct {
	Source      models.Source
	Headless    bool
	ChromeBin   string
	ArtifactDir string
	Logger      *utils.Logger
}

// ChromeSession drives a chromedp-backed browser tab.
type ChromeSession struct {
	cfg         SessionConfig
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
	tabCtx      context.Context
}

// NewChromeSession launches a stealth-configured browser and opens one tab.
// The caller must Close the session on every exit path.
func NewChromeSession(cfg SessionConfig) (Session, error) {
	chromeBin := cfg.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(userAgents[rand.Intn(len(userAgents))]),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	// Suppress chromedp log noise
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	s := &ChromeSession{
		cfg:         cfg,
		cancelAlloc: cancelAlloc,
		cancelTab:   cancelTab,
		tabCtx:      tabCtx,
	}

	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, e := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return e
	}))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("chrome session: install stealth script: %w", err)
	}

	return s, nil
}

func (s *ChromeSession) run(ctx context.Context, operation string, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()

	select {
	case err := <-done:
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return NewTimeoutError(s.cfg.Source, operation, timeout, err)
			}
			return fmt.Errorf("%s: %w", operation, err)
		}
		return nil
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

func (s *ChromeSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return s.run(ctx, "navigate "+url, timeout, chromedp.Navigate(url))
}

func (s *ChromeSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, "wait for "+selector, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (s *ChromeSession) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, "click "+selector, timeout,
		chromedp.Click(selector, chromedp.ByQuery))
}

// Type clears the target field and types the text key by key, with the
// per-key delay the browser applies naturally through SendKeys.
func (s *ChromeSession) Type(ctx context.Context, selector, text string, timeout time.Duration) error {
	return s.run(ctx, "type into "+selector, timeout,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

func (s *ChromeSession) HTML(ctx context.Context, timeout time.Duration) (string, error) {
	var html string
	err := s.run(ctx, "capture page html", timeout,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (s *ChromeSession) Evaluate(ctx context.Context, js string, result interface{}, timeout time.Duration) error {
	return s.run(ctx, "evaluate script", timeout, chromedp.Evaluate(js, result))
}

// Screenshot captures a full-page diagnostic artifact into the configured
// artifact directory and returns its path.
func (s *ChromeSession) Screenshot(ctx context.Context, name string) (string, error) {
	if s.cfg.ArtifactDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(s.cfg.ArtifactDir, 0o755); err != nil {
		return "", fmt.Errorf("screenshot: create artifact dir: %w", err)
	}

	filename := fmt.Sprintf("%s_%s_%s.png",
		time.Now().Format("20060102_150405"), s.cfg.Source, name)
	path := filepath.Join(s.cfg.ArtifactDir, filename)

	var buf []byte
	if err := s.run(ctx, "screenshot "+name, 15*time.Second, chromedp.FullScreenshot(&buf, 80)); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("screenshot: write %q: %w", path, err)
	}

	if s.cfg.Logger != nil {
		s.cfg.Logger.Debug("[%s] Screenshot saved: %s", s.cfg.Source, path)
	}
	return path, nil
}

func (s *ChromeSession) Close() error {
	s.cancelTab()
	s.cancelAlloc()
	return nil
}

// challengeMarkers maps page-content markers to a challenge type label.
var challengeMarkers = []struct {
	marker        string
	challengeType string
}{
	{"g-recaptcha", "recaptcha"},
	{"iframe[src*=\"recaptcha\"", "recaptcha"},
	{"recaptcha/api", "recaptcha"},
	{"hcaptcha", "hcaptcha"},
	{"px-captcha", "perimeterx"},
	{"_px-captcha", "perimeterx"},
	{"cf-challenge", "cloudflare"},
	{"verify you are human", "challenge_text"},
	{"security check", "challenge_text"},
	{"are you a robot", "challenge_text"},
	{"unusual traffic", "challenge_text"},
}

// DetectChallenge inspects captured page HTML for known anti-bot challenge
// markers and returns the challenge type when one is present.
func DetectChallenge(html string) (string, bool) {
	lower := strings.ToLower(html)
	for _, m := range challengeMarkers {
		if strings.Contains(lower, m.marker) {
			return m.challengeType, true
		}
	}
	return "", false
}

// CheckChallenge captures the current page and aborts with a *CaptchaError
// when an anti-bot challenge is present, saving a diagnostic screenshot
// first. Adapters call it after navigation and again after form submission.
func CheckChallenge(ctx context.Context, sess Session, source models.Source, pageURL, stage string) error {
	html, err := sess.HTML(ctx, 15*time.Second)
	if err != nil {
		return err
	}
	challengeType, found := DetectChallenge(html)
	if !found {
		return nil
	}
	shot, shotErr := sess.Screenshot(ctx, "challenge_"+stage)
	if shotErr != nil {
		shot = ""
	}
	return NewCaptchaError(source, challengeType, pageURL, shot)
}

// HumanDelay sleeps for a random duration in [min, max] to reduce detection
// signal between interactions. Returns early if ctx is cancelled.
func HumanDelay(ctx context.Context, min, max time.Duration) {
	if max < min {
		max = min
	}
	d := min
	if max > min {
		d = min + time.Duration(rand.Int63n(int64(max-min)))
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
