package entity

import "errors"

var (
	// ErrInvalidInput is returned when a request parameter fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidAlertTarget is returned when an alert target sits on the wrong side
	// of the current price for its condition.
	ErrInvalidAlertTarget = errors.New("invalid alert target")

	// ErrInvalidAddress is returned for malformed wallet or token addresses.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrFeatureUnavailable is returned when an optional capability (API key, RPC) is
	// not configured.
	ErrFeatureUnavailable = errors.New("feature unavailable")

	// ErrTokenNotFound is returned when the upstream has no pairs for an address.
	ErrTokenNotFound = errors.New("token not found")

	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyClaimed is returned when a token profile is claimed by another wallet.
	ErrAlreadyClaimed = errors.New("token already claimed")

	// ErrInvalidSignature is returned when a claim signature does not verify.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrForbidden is returned when a wallet edits a profile it does not own.
	ErrForbidden = errors.New("forbidden")
)
