package domain

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Error is a classified failure whose Message is safe to show to clients.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(msg string) error  { return &Error{Kind: KindNotFound, Message: msg} }
func Forbidden(msg string) error { return &Error{Kind: KindForbidden, Message: msg} }
func Conflict(msg string) error  { return &Error{Kind: KindConflict, Message: msg} }
func Invalid(msg string) error   { return &Error{Kind: KindInvalid, Message: msg} }

var (
	ErrRoomNotFound    = &Error{Kind: KindNotFound, Message: "Room not found"}
	ErrRequestNotFound = &Error{Kind: KindNotFound, Message: "Request not found"}
	ErrDuplicateRoomID = &Error{Kind: KindConflict, Message: "A room with this id already exists"}
	ErrDuplicateTrack  = &Error{Kind: KindConflict, Message: "This song is already in the queue"}
	ErrNothingPlaying  = &Error{Kind: KindInvalid, Message: "Nothing is playing"}
)

// KindOf reports the kind of a classified error, KindUnknown otherwise.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// MessageOf returns the client-safe message of a classified error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
