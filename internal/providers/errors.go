package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"docquorum/internal/util"
)

type ErrorKind string

const (
	KindRateLimited   ErrorKind = "rate_limited"
	KindQuota         ErrorKind = "quota"
	KindUnreachable   ErrorKind = "unreachable"
	KindInvalidModel  ErrorKind = "invalid_model"
	KindNotConfigured ErrorKind = "not_configured"
	KindContextLength ErrorKind = "context_length"
	KindUnknown       ErrorKind = "unknown"
)

// BackendError is the failure shape every backend returns.
type BackendError struct {
	Kind     ErrorKind
	Provider string
	Model    string
	Status   int
	Err      error
}

func (e *BackendError) Error() string {
	target := e.Provider
	if e.Model != "" {
		target += ":" + e.Model
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s %s (status %d): %v", target, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", target, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Is lets callers match backend failures against the util sentinels.
func (e *BackendError) Is(target error) bool {
	switch e.Kind {
	case KindRateLimited:
		return target == util.ErrRateLimited
	case KindQuota:
		return target == util.ErrQuotaExhausted
	case KindUnreachable:
		return target == util.ErrUnreachable
	case KindInvalidModel:
		return target == util.ErrInvalidModel
	case KindNotConfigured:
		return target == util.ErrNotConfigured
	case KindContextLength:
		return target == util.ErrContextTooLong
	}
	return false
}

func newError(kind ErrorKind, provider, model string, err error) *BackendError {
	return &BackendError{Kind: kind, Provider: provider, Model: model, Err: err}
}

// KindOf reports the kind of err, classifying untyped errors by message.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind
	}
	return ClassifyError(err)
}

// Retryable reports whether the failure is worth another attempt later.
func Retryable(kind ErrorKind) bool {
	return kind == KindRateLimited || kind == KindUnreachable
}

func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ""
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "quota"), strings.Contains(e, "credit"), strings.Contains(e, "insufficient_quota"):
		return KindQuota
	case strings.Contains(e, "rate limit"), strings.Contains(e, "rate_limit"), strings.Contains(e, "429"), strings.Contains(e, "resource_exhausted"):
		return KindRateLimited
	case strings.Contains(e, "context_length"), strings.Contains(e, "context length"), strings.Contains(e, "too long"):
		return KindContextLength
	case strings.Contains(e, "model_not_found"), strings.Contains(e, "does not exist"), strings.Contains(e, "decommissioned"):
		return KindInvalidModel
	case strings.Contains(e, "not configured"), strings.Contains(e, "key missing"):
		return KindNotConfigured
	case strings.Contains(e, "timeout"), strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"),
		strings.Contains(e, "connection refused"), strings.Contains(e, "no such host"), strings.Contains(e, "eof"):
		return KindUnreachable
	default:
		return KindUnknown
	}
}

// kindForStatus maps an HTTP failure to a kind, using the body to
// separate context overflows and bad model ids from other 4xx replies.
func kindForStatus(status int, body string) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		if strings.Contains(strings.ToLower(body), "quota") {
			return KindQuota
		}
		return KindRateLimited
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindNotConfigured
	case status == http.StatusNotFound:
		return KindInvalidModel
	case status >= 500:
		return KindUnreachable
	}
	if k := ClassifyError(errors.New(body)); k != KindUnknown && k != KindUnreachable {
		return k
	}
	return KindUnknown
}
