package domain

import "errors"

var (
	ErrInvalidOperand      = errors.New("invalid operand")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrDivisionByZero      = errors.New("division by zero")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrUnknownCurrency     = errors.New("unknown currency")
	ErrUnknownCapability   = errors.New("unknown capability")
	ErrDuplicateCapability = errors.New("duplicate capability")
	ErrDocumentWriteError  = errors.New("document write error")
)

// Error codes reported to orchestrators.
const (
	CodeInvalidOperand      = "INVALID_OPERAND"
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeDivisionByZero      = "DIVISION_BY_ZERO"
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	CodeUnknownCurrency     = "UNKNOWN_CURRENCY"
	CodeUnknownCapability   = "UNKNOWN_CAPABILITY"
	CodeDuplicateCapability = "DUPLICATE_CAPABILITY"
	CodeDocumentWriteError  = "DOCUMENT_WRITE_ERROR"
	CodeInternal            = "INTERNAL"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidOperand, CodeInvalidOperand},
	{ErrInvalidRequest, CodeInvalidRequest},
	{ErrDivisionByZero, CodeDivisionByZero},
	{ErrProviderUnavailable, CodeProviderUnavailable},
	{ErrUnknownCurrency, CodeUnknownCurrency},
	{ErrUnknownCapability, CodeUnknownCapability},
	{ErrDuplicateCapability, CodeDuplicateCapability},
	{ErrDocumentWriteError, CodeDocumentWriteError},
}

// ErrorCode maps an error to its stable code. Nil maps to "".
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// Retryable reports whether the caller may reasonably try the same request
// again later. Nothing in this module retries on its own.
func Retryable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}
