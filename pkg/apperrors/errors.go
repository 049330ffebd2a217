package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to callers. Raw store errors never leave the service.
const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeOverDelivery      = "OVER_DELIVERY"
	CodeOverReturn        = "OVER_RETURN"
	CodeNotFound          = "NOT_FOUND"
	CodeStoreError        = "STORE_ERROR"
	CodeInternal          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewNotFound(resource string, details map[string]any) error {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, details)
}

func NewInvalidTransition(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidTransition, message, http.StatusConflict, details)
}

func NewInsufficientStock(message string, details map[string]any) error {
	return NewDomainError(CodeInsufficientStock, message, http.StatusConflict, details)
}

func NewOverDelivery(message string, details map[string]any) error {
	return NewDomainError(CodeOverDelivery, message, http.StatusConflict, details)
}

func NewOverReturn(message string, details map[string]any) error {
	return NewDomainError(CodeOverReturn, message, http.StatusConflict, details)
}

// NewStoreError wraps a transient persistence failure. The enclosing
// operation has been rolled back in full; the caller may replay it.
func NewStoreError(err error) error {
	return &DomainError{
		Code:       CodeStoreError,
		Message:    "storage operation failed",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewInternalError wraps an unexpected failure such as a recovered panic.
func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewStoreError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeStoreError,
		Message:    "storage operation failed",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// IsCode reports whether err is a DomainError carrying the given code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == code
}
