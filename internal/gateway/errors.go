package gateway

import (
	"errors"
	"fmt"
)

// ErrGateway matches every *Error with errors.Is.
var ErrGateway = errors.New("payment gateway error")

// Kind classifies a gateway failure.
type Kind string

const (
	KindTimeout           Kind = "timeout"
	KindUnreachable       Kind = "unreachable"
	KindMalformedResponse Kind = "malformed_response"
	KindRejected          Kind = "rejected"
)

// Error is returned for every failed gateway call.
type Error struct {
	Op     string // "initialize" or "verify"
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("gateway %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("gateway %s: %s: %s", e.Op, e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrGateway }

// IsKind reports whether err is a gateway error of the given kind.
func IsKind(err error, kind Kind) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Kind == kind
}
