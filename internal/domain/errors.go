package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Configuration Errors (CONFIG_*)
	ErrorCodeConfigIncomplete ErrorCode = "CONFIG_INCOMPLETE"

	// Provider Errors (PROVIDER_*)
	ErrorCodeProviderNotFound      ErrorCode = "PROVIDER_NOT_FOUND"
	ErrorCodeProviderVariantLocked ErrorCode = "PROVIDER_VARIANT_LOCKED"

	// Transaction Errors (TXN_*)
	ErrorCodeTxnNotFound      ErrorCode = "TXN_NOT_FOUND"
	ErrorCodeTxnInvalidState  ErrorCode = "TXN_INVALID_STATE"
	ErrorCodeTxnAlreadyExists ErrorCode = "TXN_ALREADY_EXISTS"

	// Notification Errors (NOTIFICATION_*)
	ErrorCodeNotificationMalformed        ErrorCode = "NOTIFICATION_MALFORMED"
	ErrorCodeNotificationUnknownTxn       ErrorCode = "NOTIFICATION_UNKNOWN_TXN"
	ErrorCodeNotificationDataMismatch     ErrorCode = "NOTIFICATION_DATA_MISMATCH"
	ErrorCodeNotificationAmountMismatch   ErrorCode = "NOTIFICATION_AMOUNT_MISMATCH"
	ErrorCodeNotificationChecksumMismatch ErrorCode = "NOTIFICATION_CHECKSUM_MISMATCH"

	// Payment Gateway Errors (GATEWAY_*)
	ErrorCodeGatewayError ErrorCode = "GATEWAY_ERROR"

	// Integrity Errors
	ErrorCodeIntegrityViolation ErrorCode = "INTEGRITY_VIOLATION"

	// Request Errors
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
	ErrorCodeLockError     ErrorCode = "INTERNAL_LOCK_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError carrying the same code, so errors.Is works against
// the sentinel values below regardless of message or details
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeTxnNotFound ||
		code == ErrorCodeProviderNotFound
}

// IsNotificationRejection checks if an error rejects an inbound notification
func IsNotificationRejection(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeNotificationMalformed,
		ErrorCodeNotificationUnknownTxn,
		ErrorCodeNotificationDataMismatch,
		ErrorCodeNotificationAmountMismatch,
		ErrorCodeNotificationChecksumMismatch:
		return true
	}
	return false
}

// Sentinel values for errors.Is comparisons. Never attach details to these;
// build a fresh error with NewDomainError instead.
var (
	ErrConfigIncomplete = NewDomainError(ErrorCodeConfigIncomplete, "smilepay configuration incomplete")

	ErrProviderNotFound      = NewDomainError(ErrorCodeProviderNotFound, "provider not found")
	ErrProviderVariantLocked = NewDomainError(ErrorCodeProviderVariantLocked, "payment method cannot change once transactions exist")

	ErrTxnNotFound      = NewDomainError(ErrorCodeTxnNotFound, "transaction not found")
	ErrTxnInvalidState  = NewDomainError(ErrorCodeTxnInvalidState, "transaction is in invalid state for this operation")
	ErrTxnAlreadyExists = NewDomainError(ErrorCodeTxnAlreadyExists, "transaction reference already exists")

	ErrMalformedNotification = NewDomainError(ErrorCodeNotificationMalformed, "malformed notification")
	ErrUnknownTransaction    = NewDomainError(ErrorCodeNotificationUnknownTxn, "no transaction matches notification")
	ErrDataMismatch          = NewDomainError(ErrorCodeNotificationDataMismatch, "notification data does not match transaction")
	ErrAmountMismatch        = NewDomainError(ErrorCodeNotificationAmountMismatch, "notification amount does not match transaction")
	ErrChecksumMismatch      = NewDomainError(ErrorCodeNotificationChecksumMismatch, "notification checksum mismatch")

	ErrGatewayError = NewDomainError(ErrorCodeGatewayError, "payment gateway error")

	ErrIntegrityViolation = NewDomainError(ErrorCodeIntegrityViolation, "transaction reference is not unique")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
	ErrLockError     = NewDomainError(ErrorCodeLockError, "could not acquire transaction lock")
)
