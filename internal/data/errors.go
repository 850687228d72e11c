// Package data provides DB models and stores.
package data

import (
	"context"
	"errors"

	"github.com/PaulBabatuyi/duochat/internal/apperr"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ErrNotFound is wrapped by every store when a keyed document does not exist.
var ErrNotFound = errors.New("document not found")

// MongoDB server error codes we map explicitly.
const (
	codeUnauthorized         = 13
	codeAuthenticationFailed = 18
)

// classify converts a driver error into an *apperr.Error. It relies on driver
// error types and codes, never on message text.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var se mongo.ServerError
	switch {
	case errors.Is(err, mongo.ErrNoDocuments), errors.Is(err, ErrNotFound):
		return apperr.E(op, apperr.NotFound, "not found", ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return apperr.E(op, apperr.Conflict, "already exists", err)
	case errors.Is(err, context.DeadlineExceeded), mongo.IsTimeout(err):
		return apperr.E(op, apperr.Unavailable, "", err)
	case errors.Is(err, context.Canceled):
		return apperr.E(op, apperr.Unavailable, "request canceled", err)
	case mongo.IsNetworkError(err):
		return apperr.E(op, apperr.Network, "", err)
	case errors.As(err, &se) && se.HasErrorCode(codeUnauthorized):
		return apperr.E(op, apperr.Permission, "", err)
	case errors.As(err, &se) && se.HasErrorCode(codeAuthenticationFailed):
		return apperr.E(op, apperr.Auth, "", err)
	default:
		return apperr.E(op, apperr.Unknown, "", err)
	}
}

// notFound builds a NotFound error with a user-facing message.
func notFound(op, msg string) error {
	return apperr.E(op, apperr.NotFound, msg, ErrNotFound)
}
