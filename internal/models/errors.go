package models

import (
	"errors"
	"fmt"
)

// Error taxonomy. Per-file errors wrap ErrOpen, ErrIntegrity or ErrSave and
// end up as Failed batch records; ErrConfiguration and ErrUserCancel end the
// run.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrOpen          = errors.New("open error")
	ErrIntegrity     = errors.New("integrity error")
	ErrSave          = errors.New("save error")
	ErrUserCancel    = errors.New("cancelled by user")
)

// IntegrityError reports a channel count too small for the requested figure
type IntegrityError struct {
	What string
	Have int
	Need int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: image has %d channels, but %d channels are required", e.What, e.Have, e.Need)
}

// Is makes IntegrityError match ErrIntegrity
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

// Configurationf builds a ConfigurationError with a formatted message
func Configurationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
