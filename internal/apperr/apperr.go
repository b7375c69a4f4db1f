// Package apperr defines the domain error conditions the services return.
// Handlers match on these with errors.Is to pick a status code; anything
// that is not one of these sentinels is a persistence failure and is
// surfaced as-is.
package apperr

import "errors"

var (
	ErrAlreadyMember       = errors.New("already a member of this challenge")
	ErrNotMember           = errors.New("not a member of this challenge")
	ErrDuplicateCompletion = errors.New("challenge already completed today")
	ErrMissingProof        = errors.New("proof photo is required")
	ErrInvalidAmount       = errors.New("amount must be a positive number of points")
	ErrInsufficientBalance = errors.New("not enough points to redeem")
	ErrInvalidInput        = errors.New("invalid input")
	ErrEmptyMessage        = errors.New("message text is empty")
	ErrNotFound            = errors.New("not found")
)
