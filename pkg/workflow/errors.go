package workflow

import "errors"

var (
	// ErrUnknownEvent is returned for an event outside the closed event set.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrRollbackTargetRequired is returned for a human reset without a target.
	ErrRollbackTargetRequired = errors.New("rollback target is required")
	// ErrInvalidRollbackTarget is returned when the target is not on the rollback allow-list.
	ErrInvalidRollbackTarget = errors.New("invalid rollback target")
	// ErrWorkflowVanished means the workflow disappeared between the read and
	// the conditional write of a transition.
	ErrWorkflowVanished = errors.New("workflow vanished during transition")
)

// IsInputError reports whether err was caused by the caller's input rather
// than by the infrastructure.
func IsInputError(err error) bool {
	return errors.Is(err, ErrUnknownEvent) ||
		errors.Is(err, ErrRollbackTargetRequired) ||
		errors.Is(err, ErrInvalidRollbackTarget)
}
