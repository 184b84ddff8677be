package filetree

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so transports can map it to their own status codes
type Kind int

const (
	KindInternal Kind = iota
	KindConflict
	KindNotFound
	KindInvalidPath
	KindBadRequest   // request failed input validation before reaching the tree
	KindUnauthorized // no identity was established for the caller
)

// Sentinels for use with errors.Is. Every [*Error] unwraps to the sentinel of its Kind.
var (
	ErrInternal     = errors.New("internal error")
	ErrConflict     = errors.New("already exists")
	ErrNotFound     = errors.New("not found")
	ErrInvalidPath  = errors.New("invalid path")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInvalidPath:
		return "invalid_path"
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindConflict:
		return ErrConflict
	case KindNotFound:
		return ErrNotFound
	case KindInvalidPath:
		return ErrInvalidPath
	case KindBadRequest:
		return ErrBadRequest
	case KindUnauthorized:
		return ErrUnauthorized
	default:
		return ErrInternal
	}
}

// Error is the tagged error returned by every tree and auth operation.
// Msg is safe to show to callers; Err carries the underlying cause, if any.
type Error struct {
	Kind Kind
	Op   string
	Path string // logical path as supplied by the caller
	Msg  string
	Err  error
}

var _ error = (*Error)(nil)

// NewError builds an [*Error]. cause may be nil.
func NewError(kind Kind, op, path, msg string, cause error) error {
	return &Error{Kind: kind, Op: op, Path: path, Msg: msg, Err: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return "(*filetree.Error)(nil)"
	}
	s := e.Op
	if e.Path != "" {
		s += fmt.Sprintf(" %q", e.Path)
	}
	s += ": " + e.Msg
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap exposes both the Kind sentinel and the underlying cause
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// Message is the caller-facing text. Internal errors carry the cause message
// so the caller can re-inspect state after a partial failure.
func (e *Error) Message() string {
	if e.Kind == KindInternal && e.Err != nil {
		if e.Msg == "" {
			return e.Err.Error()
		}
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// KindOf returns the Kind of err. Errors not produced by this module are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, k := range []Kind{KindConflict, KindNotFound, KindInvalidPath, KindBadRequest, KindUnauthorized} {
		if errors.Is(err, k.sentinel()) {
			return k
		}
	}
	return KindInternal
}

// MessageOf returns the caller-facing message for any error
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message()
	}
	return err.Error()
}
