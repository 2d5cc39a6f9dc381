package notifier

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxErrorBody bounds how much of a provider error response is kept in an error.
const maxErrorBody = 512

// Provider error types. All of them implement Retryable so callers that use
// retry.IsRetryable can tell transient failures from permanent ones.

// RateLimitError represents a 429 response from a provider.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limit exceeded (retry after %v)", e.Provider, e.RetryAfter)
}

// Retryable reports true; the provider will accept the request later.
func (e *RateLimitError) Retryable() bool { return true }

// ClientError represents a 4xx response other than 429.
type ClientError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("%s client error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Retryable reports false; the same request will be rejected again.
func (e *ClientError) Retryable() bool { return false }

// ServerError represents a 5xx response.
type ServerError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s server error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Retryable reports true.
func (e *ServerError) Retryable() bool { return true }

// InvalidTokenError is returned when the push provider reports a device token
// that is no longer registered. The token has already been removed from the
// token store when this error is returned.
type InvalidTokenError struct {
	UserID string
	Token  string
}

func (e *InvalidTokenError) Error() string {
	return fmt.Sprintf("push token for user %s is not registered", e.UserID)
}

// Retryable reports false.
func (e *InvalidTokenError) Retryable() bool { return false }

// RecipientError ties a provider failure to the recipient it concerns.
type RecipientError struct {
	UserID string
	Err    error
}

func (e *RecipientError) Error() string {
	return fmt.Sprintf("recipient %s: %v", e.UserID, e.Err)
}

func (e *RecipientError) Unwrap() error { return e.Err }

// checkResponse maps a provider HTTP response to nil or a typed error.
// The body is read only on failure.
func checkResponse(provider string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(body))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{Provider: provider, RetryAfter: retryAfter(resp)}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ClientError{Provider: provider, StatusCode: resp.StatusCode, Message: msg}
	case resp.StatusCode >= 500:
		return &ServerError{Provider: provider, StatusCode: resp.StatusCode, Message: msg}
	}
	return fmt.Errorf("%s: unexpected status code %d: %s", provider, resp.StatusCode, msg)
}

// retryAfter reads the Retry-After header in seconds, defaulting to 5s.
func retryAfter(resp *http.Response) time.Duration {
	if h := resp.Header.Get("Retry-After"); h != "" {
		if seconds, err := strconv.Atoi(h); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 5 * time.Second
}

// truncate shortens text to at most maxLength bytes including suffix, without
// splitting a UTF-8 sequence.
func truncate(text string, maxLength int, suffix string) string {
	if len(text) <= maxLength {
		return text
	}
	cut := maxLength - len(suffix)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + suffix
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
