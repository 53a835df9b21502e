package llm

import (
	"context"
	"errors"
	"net"
	"net/http"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	openai "github.com/openai/openai-go"
	"google.golang.org/api/googleapi"
)

// ErrorKind classifies a failed provider call.
type ErrorKind int

const (
	// KindUnknown is any error not matched by a more specific kind.
	KindUnknown ErrorKind = iota
	// KindTransport covers network failures and 5xx responses.
	KindTransport
	// KindRateLimit is an HTTP 429 or quota rejection.
	KindRateLimit
	// KindAuth is an HTTP 401/403 or a missing credential.
	KindAuth
	// KindTimeout is a deadline exceeded on the call context.
	KindTimeout
	// KindCanceled is a call abandoned because the caller canceled.
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRateLimit:
		return "rate_limit"
	case KindAuth:
		return "auth"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// httpCoder is satisfied by gax apierror.APIError, which the genai client
// returns for REST failures.
type httpCoder interface {
	HTTPCode() int
}

// Classify inspects err and reports which ErrorKind it belongs to.
// A nil error classifies as KindUnknown.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, ErrMissingCredential) {
		return KindAuth
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	if code := statusCode(err); code != 0 {
		return kindForStatus(code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindTransport
	}
	return KindUnknown
}

// statusCode extracts an HTTP status code from any supported vendor error.
func statusCode(err error) int {
	var ae *anthropic.Error
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	var oe *openai.Error
	if errors.As(err, &oe) {
		return oe.StatusCode
	}
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	var hc httpCoder
	if errors.As(err, &hc) {
		return hc.HTTPCode()
	}
	return 0
}

func kindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindRateLimit
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code >= 500:
		return KindTransport
	}
	return KindUnknown
}

// IsFatal reports whether err should stop all further provider calls.
// Only missing or rejected credentials are fatal; every other failure is
// absorbed by the calling stage.
func IsFatal(err error) bool {
	return Classify(err) == KindAuth
}
