package repository

import (
	"context"
	"time"

	"webnovel-billing/internal/domain/model"
)

// -----------------------------
// Purchases
// -----------------------------

type PurchaseRepository interface {
	Save(ctx context.Context, qx Tx, p *model.Purchase) error
	FindByID(ctx context.Context, qx Tx, id string) (*model.Purchase, error)
	FindByExternalRef(ctx context.Context, qx Tx, provider, externalRef string) (*model.Purchase, error)
	FindPendingByUser(ctx context.Context, qx Tx, userID string) (*model.Purchase, error)
	UpdateStatus(ctx context.Context, qx Tx, id string, status model.PurchaseStatus, reason string, paidAt *time.Time) error
	ListByUser(ctx context.Context, qx Tx, userID string) ([]*model.Purchase, error)
	ListPendingOlderThan(ctx context.Context, qx Tx, cutoff time.Time, limit int) ([]*model.Purchase, error)
}
