package scraper

import (
	"errors"
	"fmt"
	"time"

	"github.com/mikandro/smartfamilytravelscout-sub001/models"
	"github.com/mikandro/smartfamilytravelscout-sub001/utils"
)

// ScrapeError is the base of the closed failure taxonomy shared by all
// adapters. Every taxonomy error embeds it, so callers can classify any
// adapter failure with errors.As and decide on retry policy from the
// Recoverable flag. Fields are plain data and construction never fails.
type ScrapeError struct {
	Message     string
	Source      models.Source
	Recoverable bool
	Err         error // wrapped original error, may be nil
}

func (e *ScrapeError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("[%s] %s", e.Source, e.Message)
	}
	return e.Message
}

func (e *ScrapeError) Unwrap() error { return e.Err }

// RateLimitError signals that a source's invocation quota was exceeded.
// Always recoverable: the caller may retry after RetryAfter.
type RateLimitError struct {
	ScrapeError
	RetryAfter   time.Duration
	LimitType    string // e.g. "daily"
	CurrentCount int
	MaxCount     int
}

// NewRateLimitError builds a rate-limit failure for the given source.
func NewRateLimitError(source models.Source, retryAfter time.Duration, limitType string, current, max int) *RateLimitError {
	return &RateLimitError{
		ScrapeError: ScrapeError{
			Message:     fmt.Sprintf("%s rate limit exceeded (%d/%d)", limitType, current, max),
			Source:      source,
			Recoverable: true,
		},
		RetryAfter:   retryAfter,
		LimitType:    limitType,
		CurrentCount: current,
		MaxCount:     max,
	}
}

// AuthError signals failed authentication against a source or its managed
// extraction service. Never recoverable without operator intervention, and
// never retried automatically by any layer.
type AuthError struct {
	ScrapeError
	KeyHint string // which credential is problematic, e.g. "MANAGED_API_KEY"
}

// NewAuthError builds an authentication failure for the given source.
func NewAuthError(source models.Source, message, keyHint string) *AuthError {
	return &AuthError{
		ScrapeError: ScrapeError{Message: message, Source: source, Recoverable: false},
		KeyHint:     keyHint,
	}
}

// CaptchaError signals a detected anti-bot challenge. Recoverable in
// principle (a later attempt may not hit it), but the adapter must abort
// rather than attempt to defeat the challenge.
type CaptchaError struct {
	ScrapeError
	ChallengeType  string
	PageURL        string
	ScreenshotPath string
}

// NewCaptchaError builds an anti-bot challenge failure.
func NewCaptchaError(source models.Source, challengeType, pageURL, screenshotPath string) *CaptchaError {
	return &CaptchaError{
		ScrapeError: ScrapeError{
			Message:     "anti-bot challenge detected, aborting",
			Source:      source,
			Recoverable: true,
		},
		ChallengeType:  challengeType,
		PageURL:        pageURL,
		ScreenshotPath: screenshotPath,
	}
}

// TimeoutError signals that a wait operation exceeded its deadline.
// Recoverable.
type TimeoutError struct {
	ScrapeError
	Timeout   time.Duration
	Operation string
}

// NewTimeoutError builds a timeout failure for the named operation.
func NewTimeoutError(source models.Source, operation string, timeout time.Duration, original error) *TimeoutError {
	return &TimeoutError{
		ScrapeError: ScrapeError{
			Message:     fmt.Sprintf("%s timed out after %s", operation, timeout),
			Source:      source,
			Recoverable: true,
			Err:         original,
		},
		Timeout:   timeout,
		Operation: operation,
	}
}

// ParseError signals that extraction of listing data failed. Recoverability
// depends on the cause: a single malformed response may succeed on retry, a
// structural site change will not.
type ParseError struct {
	ScrapeError
	Sample string // sample of the unparseable content
	Step   string // extraction step that failed
}

// NewParseError builds an extraction failure; recoverable says whether a
// retry might succeed.
func NewParseError(source models.Source, message, step, sample string, recoverable bool, original error) *ParseError {
	return &ParseError{
		ScrapeError: ScrapeError{
			Message:     message,
			Source:      source,
			Recoverable: recoverable,
			Err:         original,
		},
		Sample: truncateSample(sample, 200),
		Step:   step,
	}
}

// NetworkError signals a transport failure. Recoverable: network issues are
// usually transient.
type NetworkError struct {
	ScrapeError
	StatusCode int // 0 when no HTTP response was received
	URL        string
}

// NewNetworkError builds a transport failure.
func NewNetworkError(source models.Source, message, url string, statusCode int, original error) *NetworkError {
	return &NetworkError{
		ScrapeError: ScrapeError{
			Message:     message,
			Source:      source,
			Recoverable: true,
			Err:         original,
		},
		StatusCode: statusCode,
		URL:        url,
	}
}

// AsScrapeError extracts the taxonomy base from err, or nil if err is not a
// taxonomy error.
func AsScrapeError(err error) *ScrapeError {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return &rl.ScrapeError
	}
	var au *AuthError
	if errors.As(err, &au) {
		return &au.ScrapeError
	}
	var ca *CaptchaError
	if errors.As(err, &ca) {
		return &ca.ScrapeError
	}
	var to *TimeoutError
	if errors.As(err, &to) {
		return &to.ScrapeError
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return &pe.ScrapeError
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return &ne.ScrapeError
	}
	return nil
}

// ErrorKind names the taxonomy kind of err, or "error" for plain errors.
func ErrorKind(err error) string {
	switch {
	case errors.As(err, new(*RateLimitError)):
		return "rate_limited"
	case errors.As(err, new(*AuthError)):
		return "authentication_failed"
	case errors.As(err, new(*CaptchaError)):
		return "anti_bot_challenge"
	case errors.As(err, new(*TimeoutError)):
		return "operation_timed_out"
	case errors.As(err, new(*ParseError)):
		return "extraction_failed"
	case errors.As(err, new(*NetworkError)):
		return "transport_failed"
	default:
		return "error"
	}
}

// IsRecoverable reports whether err is a taxonomy error marked recoverable.
// Plain errors are not recoverable.
func IsRecoverable(err error) bool {
	if se := AsScrapeError(err); se != nil {
		return se.Recoverable
	}
	return false
}

// LogScrapeError renders a taxonomy error with its kind-specific fields in a
// uniform format.
func LogScrapeError(logger *utils.Logger, err error) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		logger.Error("%v | kind=rate_limited recoverable=%t retry_after=%s limit=%s count=%d/%d",
			rl, rl.Recoverable, rl.RetryAfter, rl.LimitType, rl.CurrentCount, rl.MaxCount)
		return
	}
	var au *AuthError
	if errors.As(err, &au) {
		logger.Error("%v | kind=authentication_failed recoverable=%t key_hint=%s",
			au, au.Recoverable, au.KeyHint)
		return
	}
	var ca *CaptchaError
	if errors.As(err, &ca) {
		logger.Error("%v | kind=anti_bot_challenge recoverable=%t challenge=%s page=%s screenshot=%s",
			ca, ca.Recoverable, ca.ChallengeType, ca.PageURL, ca.ScreenshotPath)
		return
	}
	var to *TimeoutError
	if errors.As(err, &to) {
		logger.Error("%v | kind=operation_timed_out recoverable=%t operation=%s timeout=%s",
			to, to.Recoverable, to.Operation, to.Timeout)
		return
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		logger.Error("%v | kind=extraction_failed recoverable=%t step=%s sample=%q",
			pe, pe.Recoverable, pe.Step, pe.Sample)
		return
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		logger.Error("%v | kind=transport_failed recoverable=%t status=%d url=%s",
			ne, ne.Recoverable, ne.StatusCode, ne.URL)
		return
	}
	logger.Error("%v", err)
}

func truncateSample(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
