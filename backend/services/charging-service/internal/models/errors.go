package models

import "errors"

// Error kinds shared by every component. Wrap them with fmt.Errorf("%w: ...") and
// test with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrValidation          = errors.New("validation failed")
)
