// Package apperr defines the fixed set of error kinds the gateway can
// return to a client, and the envelope they are rendered into.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the four error categories the gateway maps to an HTTP status.
type Kind string

const (
	BadRequest   Kind = "invalid_request_error"
	Unauthorized Kind = "unauthorized_error"
	NotFound     Kind = "not_found_error"
	Internal     Kind = "internal_error"
)

// Error is the error type every package in this module returns across
// package boundaries. The HTTP layer maps Kind to a status code and
// renders Message through the envelope.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind, retaining cause for %w unwrapping.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Status returns the HTTP status code for a Kind. Unrecognized kinds map
// to 500.
func (k Kind) Status() int {
	switch k {
	case BadRequest:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// envelope is the wire shape of every error response.
type envelope struct {
	Error envelopeBody `json:"error"`
}

type envelopeBody struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Code    *string `json:"code"`
}

// WriteHTTP renders err as the fixed error envelope with the status implied
// by its Kind. Non-*Error values are treated as Internal.
func WriteHTTP(w http.ResponseWriter, err error) {
	var ae *Error
	kind := Internal
	msg := "internal error"
	if errors.As(err, &ae) {
		kind = ae.Kind
		msg = ae.Message
	} else if err != nil {
		msg = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(kind.Status())
	_ = json.NewEncoder(w).Encode(envelope{Error: envelopeBody{
		Message: msg,
		Type:    "invalid_request_error",
		Code:    nil,
	}})
}
