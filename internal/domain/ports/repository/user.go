package repository

import (
	"context"
	"time"

	"webnovel-billing/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	Save(ctx context.Context, qx Tx, u *model.User) error
	FindByID(ctx context.Context, qx Tx, id string) (*model.User, error)

	// AddCoins applies a signed delta to the coin balance. Negative deltas
	// must fail (zero rows affected) rather than drive the balance below zero.
	AddCoins(ctx context.Context, qx Tx, userID string, delta int64) (applied bool, err error)

	// SetMembership writes tier and expiry together.
	SetMembership(ctx context.Context, qx Tx, userID string, tier model.MembershipTier, expiresAt *time.Time) error

	// DowngradeExpired downgrades every premium user whose expiry is at or
	// before now, re-checking the expiry condition inside the UPDATE itself,
	// and returns the affected user ids.
	DowngradeExpired(ctx context.Context, qx Tx, now time.Time) ([]string, error)

	// DowngradeIfExpired is the single-user variant used for lazy expiration.
	DowngradeIfExpired(ctx context.Context, qx Tx, userID string, now time.Time) (bool, error)
}
