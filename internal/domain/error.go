package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrConflict            = errors.New("conflicting state")
	ErrAlreadyProcessed    = errors.New("purchase already processed")
	ErrPendingPurchase     = errors.New("user already has a pending purchase")
	ErrUserBanned          = errors.New("user is banned")
	ErrPackageInactive     = errors.New("package is not active")
	ErrInsufficientBalance = errors.New("insufficient coin balance")
	ErrNotAuthentic        = errors.New("callback signature is not authentic")
	ErrGatewayUnavailable  = errors.New("payment provider unavailable")

	// Infra-level errors surfaced through repositories
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
)
