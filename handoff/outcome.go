package handoff

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Tags of the outcome lines which the helper prints to stdout.
// The error tag is also the marker of a failure in result.txt.
const (
	CapturedTag = "CAPTURED_URL:"
	ErrorTag    = "CAPTURE_ERROR:"
)

// ErrorKind identifies a failure of the helper.
type ErrorKind string

const (
	KindInvalidAuthURL     ErrorKind = "invalid_auth_url"
	KindRegistrationFailed ErrorKind = "registration_failed"
	KindTimeout            ErrorKind = "timeout"
)

// CaptureError represents a failure reported by the helper.
type CaptureError struct {
	Kind   ErrorKind
	Reason string
}

func (e *CaptureError) Error() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Is reports whether target is the sentinel of the same kind,
// e.g. errors.Is(err, handoff.ErrTimeout).
func (e *CaptureError) Is(target error) bool {
	t, ok := target.(*CaptureError)
	return ok && t.Reason == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInvalidAuthURL     = &CaptureError{Kind: KindInvalidAuthURL}
	ErrRegistrationFailed = &CaptureError{Kind: KindRegistrationFailed}
	ErrTimeout            = &CaptureError{Kind: KindTimeout}
)

// NewCaptureError returns a CaptureError of the kind with a formatted reason.
func NewCaptureError(kind ErrorKind, format string, args ...interface{}) *CaptureError {
	return &CaptureError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// AsCaptureError returns the CaptureError in the chain of err.
func AsCaptureError(err error) (*CaptureError, bool) {
	var e *CaptureError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Outcome is the result of an attempt reported by the helper.
// Exactly one of URL and Err is set.
type Outcome struct {
	URL string
	Err *CaptureError
}

// String returns the outcome line.
func (o Outcome) String() string {
	if o.Err != nil {
		return FormatFailure(o.Err)
	}
	return FormatCaptured(o.URL)
}

// FormatCaptured returns the success line of the captured URL.
func FormatCaptured(raw string) string {
	return CapturedTag + strings.TrimSpace(raw)
}

// FormatFailure returns the error line of e.
func FormatFailure(e *CaptureError) string {
	reason := strings.Join(strings.Fields(e.Reason), " ")
	return ErrorTag + string(e.Kind) + ":" + reason
}

// ParseOutcomeLine parses a line printed by the helper.
// It returns false if the line is not an outcome, e.g. a diagnostic message.
func ParseOutcomeLine(line string) (Outcome, bool) {
	line = strings.TrimRight(line, "\r\n")
	if e, ok := parseFailure(line); ok {
		return Outcome{Err: e}, true
	}
	if strings.HasPrefix(line, CapturedTag) {
		raw := strings.TrimPrefix(line, CapturedTag)
		if IsCapture(raw) {
			return Outcome{URL: raw}, true
		}
	}
	return Outcome{}, false
}

func parseFailure(s string) (*CaptureError, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, ErrorTag) {
		return nil, false
	}
	kind, reason, _ := strings.Cut(strings.TrimPrefix(s, ErrorTag), ":")
	return &CaptureError{Kind: ErrorKind(kind), Reason: reason}, true
}

// IsCapture reports whether s is a redirect URL carrying an authorization code.
// An error marker or a URL without the code parameter is not a capture.
func IsCapture(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, ErrorTag) || !strings.Contains(s, "code=") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return false
	}
	return u.Query().Get("code") != ""
}
