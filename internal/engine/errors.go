package engine

import "errors"

// Failure taxonomy for ledger operations. Authorization and precondition
// failures are terminal no-ops for the requested transition; store errors
// are returned wrapped and are safe to retry since transactions never
// partially commit.
var (
	ErrNotFound             = errors.New("not found")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrNotAssigned          = errors.New("task not assigned to this child")
	ErrTaskAlreadyCompleted = errors.New("task already completed")
	ErrClaimResolved        = errors.New("claim already resolved")
	ErrInsufficientCoins    = errors.New("insufficient coins")
)
