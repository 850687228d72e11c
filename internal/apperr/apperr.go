// Package apperr defines the error kinds surfaced to API clients.
//
// Store packages classify collaborator failures (driver error codes, network
// errors, context deadlines) into a Kind at the call boundary, so callers never
// inspect error text.
package apperr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind is a coarse, user-facing failure category.
type Kind uint8

const (
	Unknown Kind = iota
	NotFound
	Validation
	Permission
	Auth
	Network
	Unavailable
	Conflict
	RateLimited
)

var kindNames = map[Kind]string{
	Unknown:     "unknown",
	NotFound:    "not_found",
	Validation:  "validation",
	Permission:  "permission",
	Auth:        "auth",
	Network:     "network",
	Unavailable: "unavailable",
	Conflict:    "conflict",
	RateLimited: "rate_limited",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Code maps a Kind to the gRPC status code returned to clients.
func (k Kind) Code() codes.Code {
	switch k {
	case NotFound:
		return codes.NotFound
	case Validation:
		return codes.InvalidArgument
	case Permission:
		return codes.PermissionDenied
	case Auth:
		return codes.Unauthenticated
	case Network, Unavailable:
		return codes.Unavailable
	case Conflict:
		return codes.AlreadyExists
	case RateLimited:
		return codes.ResourceExhausted
	default:
		return codes.Internal
	}
}

// Error carries a Kind alongside the operation that failed.
type Error struct {
	Op   string // operation, e.g. "directory.AddContact"
	Kind Kind
	Msg  string // safe to show to a user
	Err  error  // underlying cause, never shown to a user
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// GRPCStatus lets gRPC handlers return *Error directly. Only Msg reaches the
// client; causes stay in server logs.
func (e *Error) GRPCStatus() *status.Status {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	return status.New(e.Kind.Code(), msg)
}

// E builds an *Error. A nil err with an empty msg is allowed.
func E(op string, kind Kind, msg string, err error) error {
	return &Error{Op: op, Kind: kind, Msg: msg, Err: err}
}

// Invalid reports a validation failure detected before any network call.
func Invalid(op, msg string) error {
	return &Error{Op: op, Kind: Validation, Msg: msg}
}

// KindOf returns the Kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	switch KindOf(err) {
	case Permission:
		return "permission denied"
	case Network:
		return "network error, check your connection"
	case Auth:
		return "authentication required"
	case Unavailable:
		return "service temporarily unavailable"
	default:
		return "something unexpected happened"
	}
}
