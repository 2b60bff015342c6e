package authclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Error types carried by ClientError.Type.
const (
	ErrorTypeNetwork        = "NetworkError"
	ErrorTypeHTTP           = "HTTPError"
	ErrorTypeSessionExpired = "SessionExpiredError"
	ErrorTypeRenewalFailed  = "RenewalFailedError"
	ErrorTypeEncoding       = "EncodingError"
	ErrorTypeValidation     = "ValidationError"
)

// Sentinel errors for common failure scenarios
var (
	// ErrSessionExpired reports a 401 that could not be recovered.
	ErrSessionExpired = errors.New("authclient: session expired")

	// ErrRenewalFailed reports a failed silent session renewal.
	ErrRenewalFailed = errors.New("authclient: session renewal failed")

	// ErrNotAuthenticated is returned when an operation needs a stored session.
	ErrNotAuthenticated = errors.New("authclient: not authenticated")

	// ErrNotInitialized is returned by Default before Init.
	ErrNotInitialized = errors.New("authclient: default factory not initialized")

	// ErrAlreadyInitialized is returned by Init when a default factory exists.
	ErrAlreadyInitialized = errors.New("authclient: default factory already initialized")

	// ErrCorruptCredentials reports a stored session that cannot be decoded.
	ErrCorruptCredentials = errors.New("authclient: corrupt credentials record")

	// ErrNoRefreshToken is returned by providers that renew with a refresh
	// token when none is stored.
	ErrNoRefreshToken = errors.New("authclient: no refresh token")
)

var sentinelByType = map[string]error{
	ErrorTypeSessionExpired: ErrSessionExpired,
	ErrorTypeRenewalFailed:  ErrRenewalFailed,
}

// ClientError describes a failed request with enough context to debug it.
type ClientError struct {
	Type       string
	Message    string
	Cause      error
	RequestID  string
	Method     string
	URL        string
	Endpoint   string
	Attempt    int
	Timestamp  time.Time
	Duration   time.Duration
	StatusCode int
	// Body is the response body for HTTP and session errors.
	Body []byte
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 1 {
		msg = fmt.Sprintf("%s (attempt %d)", msg, e.Attempt)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches another ClientError of the same Type, or the sentinel that
// corresponds to this error's Type.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	if sentinel, ok := sentinelByType[e.Type]; ok {
		return target == sentinel
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.Endpoint != "" {
		info += fmt.Sprintf("Endpoint: %s\n", e.Endpoint)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.Attempt > 0 {
		info += fmt.Sprintf("Attempt: %d\n", e.Attempt)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// ToServiceError maps the error onto a go-errors envelope for callers that
// render errors to their own users.
func (e *ClientError) ToServiceError() *goerrors.Error {
	if e == nil {
		return nil
	}

	category, code, textCode := e.classify()
	message := e.Message
	if message == "" {
		message = e.Type
	}

	var out *goerrors.Error
	if e.Cause != nil {
		out = goerrors.Wrap(e.Cause, category, message)
	} else {
		out = goerrors.New(message, category)
	}
	out = out.WithCode(code).WithTextCode(textCode)

	metadata := map[string]any{"type": e.Type}
	if e.RequestID != "" {
		metadata["request_id"] = e.RequestID
	}
	if e.Method != "" {
		metadata["method"] = e.Method
	}
	if e.Endpoint != "" {
		metadata["endpoint"] = e.Endpoint
	}
	if e.StatusCode > 0 {
		metadata["status_code"] = e.StatusCode
	}
	out.WithMetadata(metadata)

	return out
}

func (e *ClientError) classify() (goerrors.Category, int, string) {
	switch e.Type {
	case ErrorTypeSessionExpired, ErrorTypeRenewalFailed:
		return goerrors.CategoryAuth, http.StatusUnauthorized, "SESSION_EXPIRED"
	case ErrorTypeEncoding:
		return goerrors.CategoryBadInput, http.StatusBadRequest, "BAD_INPUT"
	case ErrorTypeValidation:
		return goerrors.CategoryValidation, http.StatusBadRequest, "INVALID_CONFIGURATION"
	case ErrorTypeNetwork:
		return goerrors.CategoryExternal, http.StatusBadGateway, "UPSTREAM_UNREACHABLE"
	case ErrorTypeHTTP:
		switch {
		case e.StatusCode == http.StatusUnauthorized:
			return goerrors.CategoryAuth, e.StatusCode, "UNAUTHORIZED"
		case e.StatusCode == http.StatusForbidden:
			return goerrors.CategoryAuthz, e.StatusCode, "FORBIDDEN"
		case e.StatusCode == http.StatusNotFound:
			return goerrors.CategoryNotFound, e.StatusCode, "NOT_FOUND"
		case e.StatusCode == http.StatusConflict:
			return goerrors.CategoryConflict, e.StatusCode, "CONFLICT"
		case e.StatusCode == http.StatusTooManyRequests:
			return goerrors.CategoryRateLimit, e.StatusCode, "RATE_LIMITED"
		case e.StatusCode >= 400 && e.StatusCode < 500:
			return goerrors.CategoryBadInput, e.StatusCode, "BAD_INPUT"
		default:
			return goerrors.CategoryExternal, http.StatusBadGateway, "UPSTREAM_FAILURE"
		}
	default:
		return goerrors.CategoryInternal, http.StatusInternalServerError, "INTERNAL"
	}
}

// IsSessionError reports whether err ended a request because the session
// could not be renewed.
func IsSessionError(err error) bool {
	return errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrRenewalFailed)
}

// StatusCode returns the HTTP status attached to err, or 0.
func StatusCode(err error) int {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.StatusCode
	}
	return 0
}

func newValidationError(message string) *ClientError {
	return &ClientError{
		Type:      ErrorTypeValidation,
		Message:   message,
		Timestamp: time.Now(),
	}
}
