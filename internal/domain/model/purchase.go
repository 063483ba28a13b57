package model

import (
	"math/rand"
	"time"

	"webnovel-billing/internal/domain"

	"github.com/oklog/ulid/v2"
)

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"   // checkout started; awaiting provider confirmation
	PurchaseStatusCompleted PurchaseStatus = "completed" // provider confirmed; account mutated
	PurchaseStatusFailed    PurchaseStatus = "failed"    // provider reported failure or explicit fail
	PurchaseStatusRefunded  PurchaseStatus = "refunded"  // completed purchase reversed
)

// Purchase is one checkout attempt for a coin bundle or a membership package,
// tracked through its status lifecycle. Price, coin amount, tier and duration
// are snapshotted from the package at creation time and never re-read, so
// catalog edits cannot alter an in-flight or historical purchase.
type Purchase struct {
	ID       string // ULID; ledger entries sort by creation time
	UserID   string
	PackageID string
	Kind     PackageKind
	Provider string // gateway name, e.g. "paypal", "cryptomus"

	// Snapshot from the package at checkout.
	PriceCents   int64
	Currency     string
	Coins        int64
	Tier         MembershipTier
	DurationDays int

	// ExternalRef is the provider-assigned transaction reference. Nil until
	// the provider responds; unique per provider once set.
	ExternalRef *string
	RedirectURL string

	Status      PurchaseStatus
	FailReason  string
	RefundReason string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PaidAt      *time.Time
}

// NewPurchase snapshots the package onto a fresh pending purchase.
func NewPurchase(userID string, pkg *Package, provider string) (*Purchase, error) {
	if userID == "" || pkg.IsZero() || provider == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(now.UnixNano())), 0)
	return &Purchase{
		ID:           ulid.MustNew(ulid.Timestamp(now), entropy).String(),
		UserID:       userID,
		PackageID:    pkg.ID,
		Kind:         pkg.Kind,
		Provider:     provider,
		PriceCents:   pkg.PriceCents,
		Currency:     pkg.Currency,
		Coins:        pkg.Coins,
		Tier:         pkg.Tier,
		DurationDays: pkg.DurationDays,
		Status:       PurchaseStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CanTransition reports whether moving from the current status to next is a
// legal ledger transition. pending -> completed|failed, completed -> refunded;
// everything else is illegal and must be treated as "already processed".
func (p *Purchase) CanTransition(next PurchaseStatus) bool {
	switch p.Status {
	case PurchaseStatusPending:
		return next == PurchaseStatusCompleted || next == PurchaseStatusFailed
	case PurchaseStatusCompleted:
		return next == PurchaseStatusRefunded
	default:
		return false
	}
}
