package model

import (
	"time"

	"webnovel-billing/internal/domain"
)

type PackageKind string

const (
	PackageKindCoin       PackageKind = "coin"
	PackageKindMembership PackageKind = "membership"
)

// Package is a catalog entry the store sells: either a coin bundle or a
// timed membership tier. The billing core only reads packages; the admin
// tooling owns edits. Purchases snapshot the fields they need at checkout,
// so a later catalog edit never changes an in-flight purchase.
type Package struct {
	ID           string
	Name         string
	Kind         PackageKind
	PriceCents   int64
	Currency     string
	Coins        int64          // coin packages only
	Tier         MembershipTier // membership packages only
	DurationDays int            // membership packages only
	Active       bool
	CreatedAt    time.Time
}

func (p *Package) IsZero() bool { return p == nil || p.ID == "" }

// NewCoinPackage validates and constructs a coin bundle.
func NewCoinPackage(id, name string, coins, priceCents int64, currency string) (*Package, error) {
	if id == "" || name == "" || coins <= 0 || priceCents <= 0 || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Package{
		ID:         id,
		Name:       name,
		Kind:       PackageKindCoin,
		PriceCents: priceCents,
		Currency:   currency,
		Coins:      coins,
		Active:     true,
		CreatedAt:  time.Now(),
	}, nil
}

// NewMembershipPackage validates and constructs a timed membership package.
func NewMembershipPackage(id, name string, tier MembershipTier, durationDays int, priceCents int64, currency string) (*Package, error) {
	if id == "" || name == "" || durationDays <= 0 || priceCents <= 0 || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	if tier != TierPremium {
		return nil, domain.ErrInvalidArgument
	}
	return &Package{
		ID:           id,
		Name:         name,
		Kind:         PackageKindMembership,
		PriceCents:   priceCents,
		Currency:     currency,
		Tier:         tier,
		DurationDays: durationDays,
		Active:       true,
		CreatedAt:    time.Now(),
	}, nil
}
