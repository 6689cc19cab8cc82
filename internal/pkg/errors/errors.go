package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")

	ErrAuthenticationRequired = errors.New("authentication required")
	ErrPermissionDenied       = errors.New("permission denied")

	// ErrUnknownTargetSchema marks a payment event that resolves to neither a mission nor a formation.
	ErrUnknownTargetSchema = errors.New("unknown target schema")
	ErrSignatureMismatch   = errors.New("signature mismatch")
	ErrMalformedPayload    = errors.New("malformed payload")

	ErrInsufficientGrade = errors.New("insufficient grade")
	ErrAlreadySubmitted  = errors.New("quiz attempt already submitted")
	// ErrQuizUnavailable is returned when a lesson has no questions to draw from.
	ErrQuizUnavailable = errors.New("quiz unavailable")
	// ErrStaleArtifact is internal: the stored document behind a record is gone.
	ErrStaleArtifact = errors.New("stale artifact")
)
