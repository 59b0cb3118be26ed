package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// FailoverReason categorizes why a provider request failed, driving retry
// decisions (only rate-limit/timeout/server-error are retried — see the
// adapters' retrier and the Agent Executor's rate-limit retry).
type FailoverReason string

const (
	FailoverRateLimit   FailoverReason = "rate_limit"
	FailoverAuth        FailoverReason = "auth"
	FailoverTimeout     FailoverReason = "timeout"
	FailoverServerError FailoverReason = "server_error"
	FailoverInvalid     FailoverReason = "invalid_request"
	FailoverUnavailable FailoverReason = "model_unavailable"
	FailoverUnknown     FailoverReason = "unknown"
)

// IsRetryable reports whether retrying a request with this failure reason
// may succeed. Only rate limiting, timeouts, and 5xx server errors are
// retried per the error-handling design; everything else is fatal to the
// current request.
func (r FailoverReason) IsRetryable() bool {
	switch r {
	case FailoverRateLimit, FailoverTimeout, FailoverServerError:
		return true
	default:
		return false
	}
}

// ProviderError is the ProviderTransport/ProviderUnavailable wrapper type:
// a structured error from an adapter carrying enough context for retry
// decisions and diagnostics.
type ProviderError struct {
	Reason   FailoverReason
	Provider string
	Model    string
	Status   int
	Cause    error
}

func (e *ProviderError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Reason), e.Provider)
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// NewProviderError wraps cause, classifying it from its text.
func NewProviderError(provider, model string, cause error) *ProviderError {
	return &ProviderError{Provider: provider, Model: model, Cause: cause, Reason: classifyError(cause)}
}

// WithStatus attaches an HTTP status code and reclassifies from it.
func (e *ProviderError) WithStatus(status int) *ProviderError {
	e.Status = status
	e.Reason = classifyStatus(status)
	return e
}

func classifyError(err error) FailoverReason {
	if err == nil {
		return FailoverUnknown
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "timeout") || strings.Contains(s, "deadline exceeded"):
		return FailoverTimeout
	case strings.Contains(s, "rate limit") || strings.Contains(s, "too many requests") || strings.Contains(s, "429"):
		return FailoverRateLimit
	case strings.Contains(s, "unauthorized") || strings.Contains(s, "invalid api key") || strings.Contains(s, "401") || strings.Contains(s, "403"):
		return FailoverAuth
	case strings.Contains(s, "not found") || strings.Contains(s, "unavailable"):
		return FailoverUnavailable
	case strings.Contains(s, "500") || strings.Contains(s, "502") || strings.Contains(s, "503") || strings.Contains(s, "504"):
		return FailoverServerError
	default:
		return FailoverUnknown
	}
}

func classifyStatus(status int) FailoverReason {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return FailoverAuth
	case status == http.StatusTooManyRequests:
		return FailoverRateLimit
	case status == http.StatusBadRequest:
		return FailoverInvalid
	case status == http.StatusNotFound:
		return FailoverUnavailable
	case status >= 500:
		return FailoverServerError
	default:
		return FailoverUnknown
	}
}

// IsRetryable reports whether err (a ProviderError or a raw error) should
// be retried.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Reason.IsRetryable()
	}
	return classifyError(err).IsRetryable()
}

// IsRateLimit reports whether err represents HTTP 429 / a textual
// rate-limit indicator, the one condition the Agent Executor auto-retries.
func IsRateLimit(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Reason == FailoverRateLimit
	}
	return classifyError(err) == FailoverRateLimit
}
