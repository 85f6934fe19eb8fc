package service

import (
	"errors"
	"fmt"
)

// Errors before the debit carry no side effects. Everything after a
// successful debit is "already paid": GenerationFailed and PersistenceFailed
// mean tokens were spent with no post to show for it, which the service logs
// distinctly.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrUnsupportedMedia  = errors.New("unsupported media type")
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrGenerationFailed  = errors.New("generation failed")
	ErrPersistenceFailed = errors.New("failed to persist post")
	ErrNotFound          = errors.New("not found")
)

// InsufficientTokensError carries the price and the balance observed
// atomically by the debit check.
type InsufficientTokensError struct {
	Required int64
	Balance  int64
}

func (e *InsufficientTokensError) Error() string {
	return fmt.Sprintf("insufficient tokens: required %d, balance %d", e.Required, e.Balance)
}
