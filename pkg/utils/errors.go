package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrRetryFailed     = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError = errors.New("client HTTP error (4xx)")          // Wraps original error/status
	ErrServerHTTPError = errors.New("server HTTP error (5xx)")          // Wraps original error/status
	ErrOtherHTTPError  = errors.New("other HTTP error (non-2xx)")       // Wraps original error/status
	ErrRobotsDisallowed  = errors.New("disallowed by robots.txt")
	ErrScopeViolation    = errors.New("URL out of scope (domain/pattern)")
	ErrMaxDepthExceeded  = errors.New("maximum crawl depth exceeded")
	ErrPageLimitReached  = errors.New("page limit reached")
	ErrParsing           = errors.New("parsing error")  // Wraps specific parsing error (HTML, URL, JSON, XML)
	ErrDatabase          = errors.New("database error") // Wraps badger errors
	ErrReportWrite       = errors.New("report write error") // Wraps filesystem errors from run output
	ErrSeedUnreachable   = errors.New("start URL could not be resolved")
	ErrRequestCreation   = errors.New("failed to create HTTP request")
	ErrResponseBodyRead  = errors.New("failed to read response body")
	ErrConfigValidation  = errors.New("configuration validation error")
	ErrContractViolation = errors.New("rule context contract violation") // Caller bug; fail fast
)

// WrapErrorf wraps a sentinel error with a formatted message.
func WrapErrorf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// CategorizeError maps an error to a predefined category string for
// logging and issue evidence.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrRetryFailed):
		underlying := errors.Unwrap(err)
		if underlying != nil {
			if errors.Is(underlying, ErrServerHTTPError) {
				return "RetryFailed_HTTPServer"
			}
			if errors.Is(underlying, ErrClientHTTPError) {
				return "RetryFailed_HTTPClient"
			}
			var netErr net.Error
			if errors.As(underlying, &netErr) && netErr.Timeout() {
				return "RetryFailed_NetworkTimeout"
			}
			return "RetryFailed_NetworkOther"
		}
		return "RetryFailed_Unknown"
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		if strings.Contains(errMsg, " 404 ") {
			return "HTTP_404"
		}
		if strings.Contains(errMsg, " 403 ") {
			return "HTTP_403"
		}
		if strings.Contains(errMsg, " 410 ") {
			return "HTTP_410"
		}
		if strings.Contains(errMsg, " 429 ") {
			return "HTTP_429"
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrRobotsDisallowed):
		return "Policy_Robots"
	case errors.Is(err, ErrScopeViolation):
		return "Policy_Scope"
	case errors.Is(err, ErrMaxDepthExceeded):
		return "Policy_MaxDepth"
	case errors.Is(err, ErrPageLimitReached):
		return "Policy_PageLimit"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "URL") {
			return "Content_ParsingURL"
		}
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		if strings.Contains(errMsg, "JSON") {
			return "Content_ParsingJSON"
		}
		if strings.Contains(errMsg, "XML") {
			return "Content_ParsingXML"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrReportWrite):
		return "Storage_ReportWrite"
	case errors.Is(err, ErrSeedUnreachable):
		return "Crawl_SeedUnreachable"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	case errors.Is(err, ErrContractViolation):
		return "Internal_Contract"
	}

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "timeout"):
		return "Network_TimeoutGeneric"
	case strings.Contains(lowerErrMsg, "connection refused"):
		return "Network_ConnectionRefused"
	case strings.Contains(lowerErrMsg, "no such host"):
		return "Network_DNSLookup"
	case strings.Contains(lowerErrMsg, "tls"), strings.Contains(lowerErrMsg, "certificate"):
		return "Network_TLS"
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return "Network_ConnectionReset"
	}

	return "Unknown"
}
