package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/lib/pq"
)

var (
	ErrUnauthorized      = errors.New("user is not authorized")
	ErrForbidden         = errors.New("operation is forbidden for user")
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("resource already exists")
	ErrTableUnavailable  = errors.New("table already reserved for this event")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrEventClosed       = errors.New("event is not open for sales")
	ErrSoldOut           = errors.New("not enough tickets available")
	ErrCodeInvalid       = errors.New("code is not valid for this event")
	ErrCodeExhausted     = errors.New("code has no uses left")
	ErrTicketUsed        = errors.New("ticket already used")
	ErrRateLimited       = errors.New("too many requests")
	ErrUpstream          = errors.New("upstream service unavailable")
)

// Postgres error codes the API reacts to.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
	pqNotNullViolation    = "23502"
	pqInvalidText         = "22P02"
	pqInvalidDatetime     = "22007"
	pqDatetimeOverflow    = "22008"
	pqRaiseException      = "P0001"
)

// ValidationError carries a message that is safe to show to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// Invalid builds a ValidationError; it matches ErrInvalidInput with errors.Is.
func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError names the missing entity; it matches ErrNotFound with errors.Is.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string { return e.Entity + " not found" }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NotFound(entity string) error {
	return &NotFoundError{Entity: entity}
}

// IsUniqueViolation reports whether err is a unique violation, optionally on a given constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// IsCodeRejection reports whether err rejects a promotional code.
func IsCodeRejection(err error) bool {
	return errors.Is(err, ErrCodeInvalid) || errors.Is(err, ErrCodeExhausted)
}

var sentinelStatus = []struct {
	err    error
	status int
}{
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrForbidden, http.StatusForbidden},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrCodeInvalid, http.StatusBadRequest},
	{ErrTableUnavailable, http.StatusConflict},
	{ErrInvalidTransition, http.StatusConflict},
	{ErrEventClosed, http.StatusConflict},
	{ErrSoldOut, http.StatusConflict},
	{ErrCodeExhausted, http.StatusConflict},
	{ErrTicketUsed, http.StatusConflict},
	{ErrConflict, http.StatusConflict},
	{ErrRateLimited, http.StatusTooManyRequests},
	{ErrUpstream, http.StatusBadGateway},
}

// constraintMessages maps unique index names to caller-facing messages.
var constraintMessages = map[string]string{
	"table_reservations_active_uniq": ErrTableUnavailable.Error(),
	"codes_event_code_uniq":          "code already exists for this event",
	"codes_event_general_uniq":       "event already has an active general code",
	"staff_tenant_user_uniq":         "user is already a staff member",
	"tenants_slug_key":               "slug already in use",
}

// Sanitize maps an error to an HTTP status and a message safe for the
// response body. Driver and database messages are never passed through.
func Sanitize(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, vErr.Message
	}

	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound, notFoundMessage(err)
	}

	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			return s.status, s.err.Error()
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			if msg, ok := constraintMessages[pqErr.Constraint]; ok {
				return http.StatusConflict, msg
			}
			return http.StatusConflict, ErrConflict.Error()
		case pqForeignKeyViolation:
			return http.StatusConflict, "referenced resource does not exist or is still in use"
		case pqCheckViolation, pqNotNullViolation:
			return http.StatusBadRequest, "value violates a data constraint"
		case pqInvalidText, pqInvalidDatetime, pqDatetimeOverflow:
			return http.StatusBadRequest, "invalid input syntax"
		case pqRaiseException:
			return http.StatusBadRequest, "request rejected by database rule"
		}
	}

	return http.StatusInternalServerError, "internal server error"
}

func notFoundMessage(err error) string {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.Error()
	}
	return ErrNotFound.Error()
}
