package model

import (
	"time"

	"webnovel-billing/internal/domain"

	"github.com/google/uuid"
)

type MembershipTier string

const (
	TierBasic   MembershipTier = "basic"
	TierPremium MembershipTier = "premium"
)

// User is the billing-facing view of a reader account: coin balance plus
// membership state. Profile, auth and reading history live outside this core.
type User struct {
	ID                  string
	Username            string
	Coins               int64 // never negative
	MembershipTier      MembershipTier
	MembershipExpiresAt *time.Time // nil unless premium
	Banned              bool
	RegisteredAt        time.Time
	UpdatedAt           time.Time
}

func NewUser(id, username string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if username == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:             id,
		Username:       username,
		Coins:          0,
		MembershipTier: TierBasic,
		RegisteredAt:   now,
		UpdatedAt:      now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// HasActivePremium reports whether the user holds a premium membership that
// has not lapsed as of now.
func (u *User) HasActivePremium(now time.Time) bool {
	return u.MembershipTier == TierPremium &&
		u.MembershipExpiresAt != nil &&
		u.MembershipExpiresAt.After(now)
}
