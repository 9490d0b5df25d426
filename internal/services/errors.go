package services

import (
	"errors"
	"fmt"
)

var (
	ErrPollClosed       = errors.New("poll is closed")
	ErrAlreadyVoted     = errors.New("user has already voted")
	ErrNotEligible      = errors.New("user is not eligible to vote in poll")
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrResultsNotPublic = errors.New("results are not public")
	ErrForbidden        = errors.New("forbidden")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
