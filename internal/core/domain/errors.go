package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAuthentication = errors.New("authentication rejected")
	ErrConfiguration  = errors.New("portal configuration incomplete")
	ErrPollTimeout    = errors.New("load status never reached terminal state")
	ErrFileNotFound   = errors.New("invoice file not found")
	ErrTemporary      = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
