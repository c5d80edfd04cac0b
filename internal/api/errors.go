package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Error classification codes. Every failure surfaced by the client carries
// exactly one of these.
const (
	CodeTimeout     = "TIMEOUT"           // client-enforced deadline exceeded
	CodeNetwork     = "NETWORK_ERROR"     // no response reached us
	CodeHTTPTimeout = "HTTP_TIMEOUT"      // server answered 408
	CodeRateLimited = "HTTP_RATE_LIMITED" // server answered 429
	CodeClientError = "HTTP_CLIENT_ERROR" // other 4xx, never retried
	CodeServerError = "HTTP_SERVER_ERROR" // 5xx
	CodeAuthExpired = "AUTH_EXPIRED"      // credential rejected as expired/invalid
	CodeParse       = "PARSE_ERROR"       // malformed response body
)

// Error is a classified API failure. Not persisted; propagated to the caller.
type Error struct {
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("api: %s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("api: %s (%s)", e.Message, e.Code)
}

// Retryable is the baseline retry condition: transient failures (network
// errors, 5xx, 408, 429, client-side timeout) are retried; every other 4xx
// surfaces immediately.
func (e *Error) Retryable() bool {
	switch e.Code {
	case CodeNetwork, CodeServerError, CodeHTTPTimeout, CodeRateLimited, CodeTimeout:
		return true
	}
	return false
}

// errorBody is the shape backends commonly use for error responses. Parsed
// defensively: anything unrecognizable falls back to the raw body text.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// classifyStatus turns a non-2xx response into an Error. The body is parsed
// best-effort; a malformed body never masks the HTTP failure itself.
func classifyStatus(status int, body []byte) *Error {
	var parsed errorBody
	_ = json.Unmarshal(body, &parsed)

	msg := parsed.Message
	if msg == "" {
		msg = parsed.Error
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	e := &Error{Message: msg, Status: status}
	switch {
	case status == http.StatusRequestTimeout:
		e.Code = CodeHTTPTimeout
	case status == http.StatusTooManyRequests:
		e.Code = CodeRateLimited
	case isAuthExpired(status, parsed.Code, msg):
		e.Code = CodeAuthExpired
	case status >= 400 && status < 500:
		e.Code = CodeClientError
	case status >= 500:
		e.Code = CodeServerError
	default:
		e.Code = CodeClientError
	}
	return e
}

// isAuthExpired recognizes the backend's token-expiry signature: a 401 whose
// body names an expired or invalid credential. A plain 401 (e.g. wrong
// password on login) stays a client error and does not clear tokens.
func isAuthExpired(status int, code, msg string) bool {
	if status != http.StatusUnauthorized {
		return false
	}
	switch code {
	case "TOKEN_EXPIRED", "AUTH_EXPIRED", "TOKEN_INVALID":
		return true
	}
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "token expired") ||
		strings.Contains(lower, "token is expired") ||
		strings.Contains(lower, "invalid token")
}
