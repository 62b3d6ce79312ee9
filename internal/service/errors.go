package service

import (
	"errors"
	"fmt"
)

// Kind classifies service errors so the transport can pick a status.
type Kind string

const (
	KindBadRequest    Kind = "BadRequest"
	KindForbidden     Kind = "Forbidden"
	KindNotFound      Kind = "NotFound"
	KindNotAcceptable Kind = "NotAcceptable"
	KindConflict      Kind = "Conflict"
	KindGeneral       Kind = "GeneralError"
)

// Error is returned by every PlaylistService operation that fails.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the Kind of err, or KindGeneral for unclassified errors.
func KindOf(err error) Kind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindGeneral
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// generalError wraps unexpected failures. Already classified errors pass through.
func generalError(err error) error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	return &Error{Kind: KindGeneral, Err: err}
}
