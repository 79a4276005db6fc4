package core

import "fmt"

// ErrorKind classifies user-visible failures. Background refresh failures are
// deliberately not represented here: they are logged, never surfaced.
type ErrorKind string

const (
	ErrorKindLoadFailed   ErrorKind = "load-failed"
	ErrorKindActionFailed ErrorKind = "action-failed"
)

// UserError is a consumer-visible failure. The underlying cause
// (unauthorized, network, ...) rides along as payload detail rather than a
// distinct control path.
type UserError struct {
	Kind ErrorKind
	Err  error
}

func (e UserError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e UserError) Unwrap() error {
	return e.Err
}
