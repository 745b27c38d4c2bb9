// Package domain contains the core business entities and interfaces for the payment service.
package domain

import (
	"errors"
	"strings"
)

// Domain errors represent business rule violations.
// These are used to communicate specific error conditions from the domain layer.
var (
	// ErrOrderNotFound is returned when no order matches a correlation token.
	ErrOrderNotFound = errors.New("order not found")

	// ErrDuplicateOrder is returned when an order_id has already been used.
	ErrDuplicateOrder = errors.New("order already exists")

	// ErrInvalidOrder is wrapped by ValidationError.
	ErrInvalidOrder = errors.New("invalid order data")

	// ErrDecryptionFailed is wrapped by DecryptionError. Its text is the only
	// thing a caller outside the service ever sees about a decryption failure.
	ErrDecryptionFailed = errors.New("unable to decrypt gateway payload")

	// ErrMalformedCallback is wrapped by MalformedCallbackError.
	ErrMalformedCallback = errors.New("malformed gateway callback")

	// ErrInvalidWorkingKey is returned when the working key is not 32 characters.
	ErrInvalidWorkingKey = errors.New("working key must be 32 characters")

	// ErrStorage is returned when the order store fails.
	ErrStorage = errors.New("order storage error")
)

// PaymentError wraps a domain error with additional context.
type PaymentError struct {
	Err     error
	Message string
	Code    string
}

// Error implements the error interface.
func (e *PaymentError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// Unwrap allows errors.Is and errors.As to work with PaymentError.
func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentError creates a new PaymentError with the given error and message.
func NewPaymentError(err error, message, code string) *PaymentError {
	return &PaymentError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// ValidationError lists every problem found in an OrderRequest.
type ValidationError struct {
	MissingFields []string
	InvalidAmount bool
	TooLong       []string // Present fields longer than the gateway accepts
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.MissingFields) > 0 {
		parts = append(parts, "missing fields: "+strings.Join(e.MissingFields, ", "))
	}
	if e.InvalidAmount {
		parts = append(parts, "amount must be a positive number")
	}
	if len(e.TooLong) > 0 {
		parts = append(parts, "too long: "+strings.Join(e.TooLong, ", "))
	}
	return ErrInvalidOrder.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidOrder }

// InvalidFields returns the names of present-but-invalid fields.
func (e *ValidationError) InvalidFields() []string {
	var fields []string
	if e.InvalidAmount {
		fields = append(fields, "amount")
	}
	return append(fields, e.TooLong...)
}

// DecryptReason says why a ciphertext was rejected. It is for logs only.
type DecryptReason string

const (
	ReasonBadPadding   DecryptReason = "bad-padding"
	ReasonMalformedHex DecryptReason = "malformed-hex"
	ReasonKeyLength    DecryptReason = "key-length"
	ReasonBadPlaintext DecryptReason = "bad-plaintext"
)

// DecryptionError is a cryptographic rejection of a gateway payload.
// Error() is identical for every Reason.
type DecryptionError struct {
	Reason DecryptReason
}

func (e *DecryptionError) Error() string { return ErrDecryptionFailed.Error() }

func (e *DecryptionError) Unwrap() error { return ErrDecryptionFailed }

// MalformedCallbackError is a decryptable callback missing required parameters.
type MalformedCallbackError struct {
	MissingKeys []string
	Detail      string
}

func (e *MalformedCallbackError) Error() string {
	msg := ErrMalformedCallback.Error()
	if len(e.MissingKeys) > 0 {
		msg += ": missing " + strings.Join(e.MissingKeys, ", ")
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *MalformedCallbackError) Unwrap() error { return ErrMalformedCallback }
