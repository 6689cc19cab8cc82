package apierr

import (
	"errors"
	"fmt"
	"net/http"

	domainerrs "github.com/yungbote/entitlement-engine/internal/pkg/errors"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

var mappings = []struct {
	target error
	status int
	code   string
}{
	{domainerrs.ErrAuthenticationRequired, http.StatusUnauthorized, "authentication_required"},
	{domainerrs.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domainerrs.ErrPermissionDenied, http.StatusForbidden, "permission_denied"},
	{domainerrs.ErrNotFound, http.StatusNotFound, "not_found"},
	{domainerrs.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
	{domainerrs.ErrMalformedPayload, http.StatusBadRequest, "malformed_payload"},
	{domainerrs.ErrUnknownTargetSchema, http.StatusUnprocessableEntity, "unknown_target_schema"},
	{domainerrs.ErrSignatureMismatch, http.StatusUnauthorized, "signature_mismatch"},
	{domainerrs.ErrInsufficientGrade, http.StatusUnprocessableEntity, "insufficient_grade"},
	{domainerrs.ErrAlreadySubmitted, http.StatusConflict, "already_submitted"},
	{domainerrs.ErrQuizUnavailable, http.StatusNotFound, "quiz_unavailable"},
}

// From maps a service error onto its HTTP status and stable code.
// Unknown errors become 500/internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return New(m.status, m.code, err)
		}
	}
	return New(http.StatusInternalServerError, "internal", err)
}
