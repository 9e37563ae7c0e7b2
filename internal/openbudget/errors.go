package openbudget

import (
	"errors"
	"fmt"
)

var (
	ErrMaintenance        = errors.New("openbudget: service under maintenance")
	ErrUnrecognizedFormat = errors.New("openbudget: unrecognized response format")
	ErrHTTPStatus         = errors.New("openbudget: unexpected HTTP status")
	ErrNetwork            = errors.New("openbudget: network failure")
	ErrInvalidRequest     = errors.New("openbudget: invalid request")
)

// ErrorKind classifies fetch failures for diagnostics and retry decisions.
type ErrorKind string

const (
	KindMaintenance ErrorKind = "maintenance"
	KindHTTPStatus  ErrorKind = "http_status"
	KindNetwork     ErrorKind = "network"
	KindFormat      ErrorKind = "format"
)

// FetchError describes a failed fetch. BodyPrefix holds at most the first
// 300 bytes of the response so upstream contract changes stay visible.
type FetchError struct {
	Kind       ErrorKind
	StatusCode int
	Status     string
	URL        string
	BodyPrefix string
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindMaintenance:
		return fmt.Sprintf("status %d: HTML response, service under maintenance", e.StatusCode)
	case KindHTTPStatus:
		return fmt.Sprintf("%s: %s", e.Status, e.BodyPrefix)
	case KindNetwork:
		return fmt.Sprintf("request %s: %v", e.URL, e.Err)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%v: %q", e.Err, e.BodyPrefix)
		}
		return fmt.Sprintf("%v: %q", ErrUnrecognizedFormat, e.BodyPrefix)
	}
}

func (e *FetchError) Unwrap() []error {
	var sentinel error
	switch e.Kind {
	case KindMaintenance:
		sentinel = ErrMaintenance
	case KindHTTPStatus:
		sentinel = ErrHTTPStatus
	case KindNetwork:
		sentinel = ErrNetwork
	default:
		sentinel = ErrUnrecognizedFormat
	}
	if e.Err == nil || e.Err == sentinel {
		return []error{sentinel}
	}
	return []error{sentinel, e.Err}
}

// Transient reports whether a later retry may succeed without an upstream fix.
func (e *FetchError) Transient() bool {
	return e.Kind != KindFormat
}

// KindOf returns the kind of a fetch error found in err's chain, or "".
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
