// Package apperr is the caller-visible error model shared by every booking
// workflow. Each failure carries a Code and a human readable Message.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeNotFound            Code = "NOT_FOUND"
	CodeConflict            Code = "CONFLICT" // availability CAS lost or uniqueness violated
	CodeInvalidState        Code = "INVALID_STATE"
	CodeAlreadyConfirmed    Code = "ALREADY_CONFIRMED"
	CodeInvalidReturnDate   Code = "INVALID_RETURN_DATE"
	CodeInvalidPickupDate   Code = "INVALID_PICKUP_DATE"
	CodeBelowBulkThreshold  Code = "BELOW_BULK_THRESHOLD"
	CodeNoEquipmentSelected Code = "NO_EQUIPMENT_SELECTED"
	CodePermissionDenied    Code = "PERMISSION_DENIED"
	CodeInvalidArgument     Code = "INVALID_ARGUMENT"
	CodeInternal            Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// Is matches another *APIError by code, so errors.Is(err, apperr.Conflict("")) works.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

func newf(code Code, format string, args ...any) *APIError {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &APIError{Code: code, Message: msg}
}

func NotFound(format string, args ...any) *APIError { return newf(CodeNotFound, format, args...) }
func Conflict(format string, args ...any) *APIError { return newf(CodeConflict, format, args...) }
func InvalidState(format string, args ...any) *APIError {
	return newf(CodeInvalidState, format, args...)
}
func AlreadyConfirmed(format string, args ...any) *APIError {
	return newf(CodeAlreadyConfirmed, format, args...)
}
func InvalidReturnDate(format string, args ...any) *APIError {
	return newf(CodeInvalidReturnDate, format, args...)
}
func InvalidPickupDate(format string, args ...any) *APIError {
	return newf(CodeInvalidPickupDate, format, args...)
}
func BelowBulkThreshold(format string, args ...any) *APIError {
	return newf(CodeBelowBulkThreshold, format, args...)
}
func NoEquipmentSelected(format string, args ...any) *APIError {
	return newf(CodeNoEquipmentSelected, format, args...)
}
func PermissionDenied(format string, args ...any) *APIError {
	return newf(CodePermissionDenied, format, args...)
}
func Invalid(format string, args ...any) *APIError {
	return newf(CodeInvalidArgument, format, args...)
}
func Internal(format string, args ...any) *APIError { return newf(CodeInternal, format, args...) }

// CodeOf returns the code carried by err, CodeInternal for foreign errors and "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var api *APIError
	if errors.As(err, &api) {
		return api.Code
	}
	return CodeInternal
}

func IsCode(err error, code Code) bool { return err != nil && CodeOf(err) == code }

func ToHTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidState, CodeAlreadyConfirmed:
		return http.StatusConflict
	case CodeInvalidReturnDate, CodeInvalidPickupDate, CodeBelowBulkThreshold, CodeNoEquipmentSelected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ---------- response body ----------

type ErrorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func Body(code Code, msg string) ErrorDTO {
	var e ErrorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

// FromErr hides the text of non-API errors; those are logged by the caller.
func FromErr(err error) ErrorDTO {
	var api *APIError
	if errors.As(err, &api) {
		return Body(api.Code, api.Message)
	}
	return Body(CodeInternal, "internal error")
}
