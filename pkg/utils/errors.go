package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	// Task failures surfaced through the error policy
	ErrNavigation  = errors.New("navigation failed")      // Address unreachable or resource error during load
	ErrPageAcquire = errors.New("failed to acquire page") // Rendering surface could not open a page
	ErrExtraction  = errors.New("extraction failed")      // Extractor, link query or ready waiter failed
	ErrPolicy      = errors.New("policy failed")          // Filter, gate, sort or onPage hook failed
	ErrPanic       = errors.New("recovered panic")        // Wrapped alongside one of the above

	// Transport
	ErrRetryFailed      = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError  = errors.New("client HTTP error (4xx)")          // Wraps original error/status
	ErrServerHTTPError  = errors.New("server HTTP error (5xx)")          // Wraps original error/status
	ErrOtherHTTPError   = errors.New("other HTTP error (non-2xx)")       // Wraps original error/status
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrSemaphoreTimeout = errors.New("timeout acquiring semaphore")

	// Policy outcomes and content
	ErrRobotsDisallowed   = errors.New("disallowed by robots.txt")
	ErrScopeViolation     = errors.New("URL out of scope (domain/prefix/pattern)")
	ErrMaxDepthExceeded   = errors.New("maximum link depth exceeded")
	ErrContentSelector    = errors.New("content selector not found")
	ErrMarkdownConversion = errors.New("failed to convert HTML to markdown")
	ErrParsing            = errors.New("parsing error") // Wraps specific parsing error (HTML, URL, JSON)

	// Infrastructure
	ErrFilesystem       = errors.New("filesystem error") // Wraps os errors
	ErrDatabase         = errors.New("database error")   // Wraps badger errors
	ErrConfigValidation = errors.New("configuration validation error")
)

// WrapErrorf prefixes err with a formatted message, keeping errors.Is working.
// Returns nil if err is nil.
func WrapErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// CategorizeError maps an error to a predefined category string for logging.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	// Task-level sentinels first; the transport cause is appended when known
	switch {
	case errors.Is(err, ErrPageAcquire):
		return "Navigation_PageAcquire"
	case errors.Is(err, ErrNavigation):
		if cause := categorizeTransport(err); cause != "" {
			return "Navigation_" + cause
		}
		return "Navigation"
	case errors.Is(err, ErrExtraction):
		if errors.Is(err, ErrPanic) {
			return "Extraction_Panic"
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "Extraction_Timeout"
		}
		return "Extraction"
	case errors.Is(err, ErrPolicy):
		if errors.Is(err, ErrPanic) {
			return "Policy_Panic"
		}
		return "Policy"
	}

	if cause := categorizeTransport(err); cause != "" {
		return cause
	}

	switch {
	case errors.Is(err, ErrRobotsDisallowed):
		return "Policy_Robots"
	case errors.Is(err, ErrScopeViolation):
		return "Policy_Scope"
	case errors.Is(err, ErrMaxDepthExceeded):
		return "Policy_MaxDepth"
	case errors.Is(err, ErrContentSelector):
		return "Content_SelectorNotFound"
	case errors.Is(err, ErrMarkdownConversion):
		return "Content_Markdown"
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
		return "Content_ParsingOther"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	// Context errors
	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		if strings.Contains(err.Error(), "semaphore") {
			return "Resource_SemaphoreTimeout"
		}
		return "System_ContextDeadlineExceeded"
	}

	if cause := categorizeNetwork(err); cause != "" {
		return cause
	}
	return "Unknown"
}

// categorizeTransport returns the HTTP/transport category of err, or "" if none applies.
func categorizeTransport(err error) string {
	switch {
	case errors.Is(err, ErrRetryFailed):
		if err == ErrRetryFailed {
			return "RetryFailed_Unknown"
		}
		if errors.Is(err, ErrServerHTTPError) {
			return "RetryFailed_HTTPServer"
		}
		if errors.Is(err, ErrClientHTTPError) {
			return "RetryFailed_HTTPClient"
		}
		if cause := categorizeNetwork(err); cause != "" {
			return "RetryFailed_Network" + strings.TrimPrefix(cause, "Network_")
		}
		return "RetryFailed_NetworkOther"
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		for _, code := range []string{"404", "403", "401", "429"} {
			if strings.Contains(errMsg, " "+code+" ") {
				return "HTTP_" + code
			}
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrSemaphoreTimeout):
		return "Resource_SemaphoreTimeout"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	}
	return ""
}

// categorizeNetwork inspects net.Error values and common message fragments.
func categorizeNetwork(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "timeout"), strings.Contains(lowerErrMsg, "deadline exceeded"):
		return "Network_Timeout"
	case strings.Contains(lowerErrMsg, "connection refused"):
		return "Network_ConnectionRefused"
	case strings.Contains(lowerErrMsg, "no such host"):
		return "Network_DNSLookup"
	case strings.Contains(lowerErrMsg, "tls"), strings.Contains(lowerErrMsg, "certificate"):
		return "Network_TLS"
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return "Network_ConnectionReset"
	case strings.Contains(lowerErrMsg, "broken pipe"):
		return "Network_BrokenPipe"
	}
	return ""
}
