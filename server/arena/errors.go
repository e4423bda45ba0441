package arena

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientCandidates = errors.New("fewer than two eligible models")
	ErrMissingCredential      = errors.New("model provider credential not configured")
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchIncomplete        = errors.New("match incomplete")
	ErrAlreadyVoted           = errors.New("match already voted")
	ErrInvalidSide            = errors.New("winner must be left or right")
	ErrNotFound               = errors.New("cached comparison not found")
)

// QuotaExceededError is returned when a session has used up its distinct
// prompt budget.
type QuotaExceededError struct {
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("prompt quota exceeded (limit %d)", e.Limit)
}
