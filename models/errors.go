package models

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeCatalogUnavailable   ErrorCode = "catalog_unavailable"
	CodeVerificationFailed   ErrorCode = "verification_failed"
	CodeValidationIncomplete ErrorCode = "validation_incomplete"
	CodeGatewayConfigMissing ErrorCode = "gateway_config_missing"
	CodeGatewayFailed        ErrorCode = "gateway_failed"
	CodePaymentCancelled     ErrorCode = "payment_cancelled"
	CodeSessionNotFound      ErrorCode = "session_not_found"
	CodeNoDraft              ErrorCode = "no_draft"
	CodeAlreadyPresented     ErrorCode = "already_presented"
	CodeAttemptMismatch      ErrorCode = "attempt_mismatch"
	CodeInvalidField         ErrorCode = "invalid_field"
)

// AppError is a classified failure that resolves to a notice and a well-defined state.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Notice converts the error into the notification shown to the user.
func (e *AppError) Notice() Notice {
	switch e.Code {
	case CodeGatewayConfigMissing, CodeGatewayFailed, CodeVerificationFailed:
		return ErrorNotice(string(e.Code), e.Message)
	case CodePaymentCancelled, CodeNoDraft:
		return InfoNotice(string(e.Code), e.Message)
	default:
		return WarningNotice(string(e.Code), e.Message)
	}
}

func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// AsAppError extracts an AppError from err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
