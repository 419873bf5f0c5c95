// Package operr defines the gateway's error taxonomy. Every error crossing
// a dispatch boundary is one of these kinds; raw transport errors never
// escape the gateway.
package operr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes an operation failure.
type Kind string

const (
	// KindInvalidParams marks malformed or missing caller input.
	KindInvalidParams Kind = "invalid_params"
	// KindUnknownOperation marks an unrecognized action name.
	KindUnknownOperation Kind = "unknown_operation"
	// KindUnavailable marks the absence of a healthy connection.
	KindUnavailable Kind = "unavailable"
	// KindRemoteCallFailed marks a downstream network or service error.
	KindRemoteCallFailed Kind = "remote_call_failed"
	// KindKeyMismatch marks a signing key that does not correspond to the
	// claimed sending address.
	KindKeyMismatch Kind = "key_mismatch"
	// KindConfirmationTimeout marks a submitted transaction that was not
	// confirmed within the bounded wait. The transaction may still land.
	KindConfirmationTimeout Kind = "confirmation_timeout"
	// KindMetadataUploadFailed marks a failed metadata upload, before any
	// ledger submission took place.
	KindMetadataUploadFailed Kind = "metadata_upload_failed"
)

// Error is a categorized operation error with optional operation context.
type Error struct {
	Kind    Kind
	Op      string // operation name, empty when not yet resolved
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// InvalidParams builds a validation error for one offending parameter.
func InvalidParams(op, param, reason string) *Error {
	return &Error{Kind: KindInvalidParams, Op: op, Message: fmt.Sprintf("%s: %s", param, reason)}
}

// Required builds the most common validation error.
func Required(op, param string) *Error {
	return InvalidParams(op, param, "is required")
}

// UnknownOperation builds an error for an unrecognized action name.
func UnknownOperation(name string) *Error {
	return &Error{Kind: KindUnknownOperation, Message: fmt.Sprintf("unknown operation %q", name)}
}

// Unavailable builds a degraded-mode error.
func Unavailable(op, msg string) *Error {
	return &Error{Kind: KindUnavailable, Op: op, Message: msg}
}

// RemoteCallFailed wraps a downstream failure, carrying the underlying
// message through to the caller.
func RemoteCallFailed(op string, err error) *Error {
	return &Error{Kind: KindRemoteCallFailed, Op: op, Message: err.Error(), Err: err}
}

// KeyMismatch builds a signer/address mismatch error.
func KeyMismatch(op string) *Error {
	return &Error{Kind: KindKeyMismatch, Op: op, Message: "private key does not match the claimed from address"}
}

// ConfirmationTimeout builds a bounded-wait expiry error for a signature
// that was submitted but not confirmed in time.
func ConfirmationTimeout(op, signature string) *Error {
	return &Error{
		Kind:    KindConfirmationTimeout,
		Op:      op,
		Message: fmt.Sprintf("transaction %s submitted but not confirmed in time; poll its status before retrying", signature),
	}
}

// MetadataUploadFailed wraps a failed upload to the metadata host.
func MetadataUploadFailed(op string, err error) *Error {
	return &Error{Kind: KindMetadataUploadFailed, Op: op, Message: err.Error(), Err: err}
}

// KindOf extracts the kind of an error, or empty for uncategorized errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to its HTTP status code. Client mistakes are
// 4xx, downstream trouble is 5xx, and 500 is reserved for uncategorized
// faults.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidParams, KindUnknownOperation, KindKeyMismatch:
		return http.StatusBadRequest
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindRemoteCallFailed, KindMetadataUploadFailed:
		return http.StatusBadGateway
	case KindConfirmationTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
