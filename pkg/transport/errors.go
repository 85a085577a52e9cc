package transport

import "fmt"

// ErrorKind is the closed set of transport failure classes. Retry policy is a
// pure function over the kind (and status code for KindHTTPStatus).
type ErrorKind int

const (
	// KindNetwork covers unreachable hosts, resets, and dial failures.
	KindNetwork ErrorKind = iota
	// KindTimeout covers per-attempt deadline expiry.
	KindTimeout
	// KindHTTPStatus covers non-2xx responses; 4xx is caller fault, 5xx server fault.
	KindHTTPStatus
	// KindDecode covers response-shape mismatches. Never retried.
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindHTTPStatus:
		return "http_status"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is a typed transport failure. StatusCode is set only for
// KindHTTPStatus.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Path       string
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("%s error on %s: status %d", e.Kind, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s error on %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt can possibly succeed: network
// failures, timeouts, and 5xx responses. 4xx and decode mismatches cannot.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindHTTPStatus:
		return e.StatusCode >= 500
	default:
		return false
	}
}
