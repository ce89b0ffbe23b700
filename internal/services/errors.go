package services

import "errors"

// validationError is a rule violation the visitor can fix; nothing was written.
type validationError struct {
	message string
}

func (e validationError) Error() string { return e.message }

func newValidationError(msg string) error {
	return validationError{message: msg}
}

// IsValidation separates user mistakes from infrastructure failures.
func IsValidation(err error) bool {
	var v validationError
	return errors.As(err, &v)
}
