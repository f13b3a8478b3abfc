package errorreporting

import (
	"fmt"
	"regexp"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/cuadrantes/iph-console/backend/internal/config"
)

// PII patterns to scrub from error messages. IPH reports reference real
// people, so anything resembling an identity or credential is redacted
// before leaving the process.
var piiPatterns = []*regexp.Regexp{
	// Email addresses
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	// Bearer tokens
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_-]{16,}`),
	// API keys and tokens
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret)["\s:=]+[a-zA-Z0-9_-]{16,}`),
	// CURP identifiers (18-char Mexican national ID)
	regexp.MustCompile(`\b[A-Z]{4}\d{6}[HM][A-Z]{5}[A-Z0-9]\d\b`),
	// IP addresses
	regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
	// Phone numbers (10+ digits, optionally grouped)
	regexp.MustCompile(`\b\d{2,3}[\s-]?\d{3,4}[\s-]?\d{4}\b`),
}

var enabled bool

// Init initializes Sentry error reporting. A missing DSN disables reporting
// without error.
func Init(cfg *config.Config) error {
	if cfg.SentryDSN == "" {
		return nil
	}

	sampleRate := 1.0
	if cfg.SentryEnvironment == "production" {
		sampleRate = 0.1
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.SentryEnvironment,
		Release:          releaseOf(cfg),
		TracesSampleRate: sampleRate,
		BeforeSend:       beforeSend,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	enabled = true
	return nil
}

func releaseOf(cfg *config.Config) string {
	if cfg.SentryRelease != "" {
		return cfg.SentryRelease
	}
	return "dev"
}

// beforeSend scrubs PII and sensitive request data from every event.
func beforeSend(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if event.Exception != nil {
		for i := range event.Exception {
			event.Exception[i].Value = scrubPII(event.Exception[i].Value)
		}
	}
	if event.Message != "" {
		event.Message = scrubPII(event.Message)
	}
	if event.Extra != nil {
		for key, value := range event.Extra {
			if str, ok := value.(string); ok {
				event.Extra[key] = scrubPII(str)
			}
		}
	}
	if event.Request != nil {
		if event.Request.Headers != nil {
			delete(event.Request.Headers, "Authorization")
			delete(event.Request.Headers, "Cookie")
			delete(event.Request.Headers, "X-Api-Key")
		}
		event.Request.QueryString = ""
	}
	return event
}

func scrubPII(text string) string {
	result := text
	for _, pattern := range piiPatterns {
		result = pattern.ReplaceAllString(result, "[REDACTED]")
	}
	return result
}

// ScrubPII exposes the PII scrubbing function for external use
func ScrubPII(text string) string {
	return scrubPII(text)
}

// CaptureError captures an error and sends it to Sentry
func CaptureError(err error) {
	if err == nil || !enabled {
		return
	}
	sentry.CaptureException(err)
}

// CaptureErrorWithContext captures an error with additional context
func CaptureErrorWithContext(err error, tags map[string]string, extras map[string]any) {
	if err == nil || !enabled {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		for k, v := range extras {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

// Flush waits for all events to be sent to Sentry
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsSentryEnabled returns true if Sentry is configured
func IsSentryEnabled() bool {
	return enabled
}
