package ninjam

import "fmt"

// ErrorKind classifies session failures and recoverable conditions
type ErrorKind int

const (
	ErrResolveFailed ErrorKind = iota
	ErrAuthFailed
	ErrProtocol
	ErrLicenseRejected
	ErrLicenseTimeout
	ErrNetworkDropped
	ErrCodec
	ErrCapacityExceeded
)

func (k ErrorKind) String() string {
	switch k {
	case ErrResolveFailed:
		return "resolve failed"
	case ErrAuthFailed:
		return "auth failed"
	case ErrProtocol:
		return "protocol error"
	case ErrLicenseRejected:
		return "license rejected"
	case ErrLicenseTimeout:
		return "license timeout"
	case ErrNetworkDropped:
		return "network dropped"
	case ErrCodec:
		return "codec error"
	case ErrCapacityExceeded:
		return "capacity exceeded"
	}
	return "unknown"
}

// Error carries the failure taxonomy alongside the underlying cause
type Error struct {
	Kind  ErrorKind
	Where string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Where != "":
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Where, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Where != "":
		return fmt.Sprintf("%s (%s)", e.Kind, e.Where)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Kind extracts the taxonomy tag, or -1 for foreign errors
func Kind(err error) ErrorKind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return -1
}

func newError(kind ErrorKind, where string, err error) *Error {
	return &Error{Kind: kind, Where: where, Err: err}
}
