package orchestrator

import (
	"fmt"

	"example.com/healthscore/internal/domain"
)

// SyncError is returned by RunSync for a run that reached the Failed state.
// Its message is a summary safe to show to the user; the underlying cause
// is only logged.
type SyncError struct {
	Stage  State
	Kind   domain.ErrorKind
	Detail string

	sentinel error
	cause    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync failed while %s: %s", e.Stage, e.Detail)
}

// Unwrap exposes the taxonomy sentinel so domain.KindOf and errors.Is work.
func (e *SyncError) Unwrap() error {
	return e.sentinel
}

func failure(sentinel error, cause error, format string, args ...any) *SyncError {
	kind := domain.KindOf(sentinel)
	if sentinel == nil {
		kind = domain.KindInternal
	}
	return &SyncError{
		Kind:     kind,
		Detail:   fmt.Sprintf(format, args...),
		sentinel: sentinel,
		cause:    cause,
	}
}
