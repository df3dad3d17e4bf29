package usecase

import "errors"

const (
	CodeValidation = "VALIDATION_ERROR"
	CodeUnexpected = "UNEXPECTED_ERROR"
)

// DomainError is a client-caused failure. Message is safe to show.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// TechnicalError hides the cause from callers; Cause is for logs only.
type TechnicalError struct {
	Code    string
	Message string
	Cause   error
}

func (e *TechnicalError) Error() string {
	return e.Message
}

func (e *TechnicalError) Unwrap() error {
	return e.Cause
}

func IsTechnicalError(err error) bool {
	var te *TechnicalError
	return errors.As(err, &te)
}
