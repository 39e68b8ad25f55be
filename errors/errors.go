// Package errors provides error handling for the engyne node.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrInvalidSlotID) {
//	    // reject at the boundary
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors shared across the node. Use these with errors.Is() for
// type-safe checks; wrap them with errors.Wrap() to add context while
// preserving the type.
var (
	// ErrInvalidSlotID indicates a slot id with disallowed characters or one
	// that would resolve outside the slots root.
	ErrInvalidSlotID = New("invalid slot id")

	// ErrNotFound indicates the requested slot or artifact does not exist.
	ErrNotFound = New("not found")

	// ErrUnauthorized indicates a request without a valid worker secret.
	ErrUnauthorized = New("unauthorized")

	// ErrSlotRunning indicates a start was refused because the previous
	// worker child is still alive.
	ErrSlotRunning = New("slot worker already running")

	// ErrRestartThrottled indicates a start was refused by the anti-churn
	// minimum restart interval.
	ErrRestartThrottled = New("restart throttled")

	// ErrMissingWebhook indicates a dispatcher channel has no delivery
	// webhook configured.
	ErrMissingWebhook = New("missing webhook")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidSlotIDError checks if an error is or wraps ErrInvalidSlotID.
func IsInvalidSlotIDError(err error) bool {
	return err != nil && Is(err, ErrInvalidSlotID)
}
