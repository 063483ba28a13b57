package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"webnovel-billing/internal/domain"
	"webnovel-billing/internal/domain/model"
	"webnovel-billing/internal/domain/ports/repository"
)

var _ repository.PurchaseRepository = (*purchaseRepo)(nil)

type purchaseRepo struct{ pool *pgxpool.Pool }

func NewPurchaseRepo(pool *pgxpool.Pool) *purchaseRepo {
	return &purchaseRepo{pool: pool}
}

const purchaseColumns = `id, user_id, package_id, kind, provider, price_cents, currency, coins, tier, duration_days, external_ref, redirect_url, status, fail_reason, refund_reason, created_at, updated_at, paid_at`

func (r *purchaseRepo) Save(ctx context.Context, qx repository.Tx, p *model.Purchase) error {
	const q = `
INSERT INTO purchases (
  id, user_id, package_id, kind, provider, price_cents, currency, coins, tier, duration_days,
  external_ref, redirect_url, status, fail_reason, refund_reason, created_at, updated_at, paid_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
) ON CONFLICT (id) DO UPDATE SET
  external_ref=$11, redirect_url=$12, status=$13, fail_reason=$14, refund_reason=$15, updated_at=$17, paid_at=$18;`

	_, err := execSQL(ctx, r.pool, qx, q, p.ID, p.UserID, p.PackageID, p.Kind, p.Provider, p.PriceCents, p.Currency, p.Coins, p.Tier, p.DurationDays, p.ExternalRef, p.RedirectURL, p.Status, p.FailReason, p.RefundReason, p.CreatedAt, p.UpdatedAt, p.PaidAt)
	if err != nil {
		if isUniqueViolation(err) {
			// duplicate (provider, external_ref): same provider confirmation
			// must never mint a second ledger entry
			return domain.ErrConflict
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *purchaseRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Purchase, error) {
	q := `SELECT ` + purchaseColumns + ` FROM purchases WHERE id=$1`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPurchase(row)
}

func (r *purchaseRepo) FindByExternalRef(ctx context.Context, qx repository.Tx, provider, externalRef string) (*model.Purchase, error) {
	q := `SELECT ` + purchaseColumns + ` FROM purchases WHERE provider=$1 AND external_ref=$2`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, qx, q, provider, externalRef)
	if err != nil {
		return nil, err
	}
	return scanPurchase(row)
}

func (r *purchaseRepo) FindPendingByUser(ctx context.Context, qx repository.Tx, userID string) (*model.Purchase, error) {
	q := `SELECT ` + purchaseColumns + ` FROM purchases WHERE user_id=$1 AND status='pending' LIMIT 1;`
	row, err := pickRow(ctx, r.pool, qx, q, userID)
	if err != nil {
		return nil, err
	}
	return scanPurchase(row)
}

func (r *purchaseRepo) UpdateStatus(ctx context.Context, qx repository.Tx, id string, status model.PurchaseStatus, reason string, paidAt *time.Time) error {
	var q string
	switch status {
	case model.PurchaseStatusFailed:
		q = `UPDATE purchases SET status=$2, fail_reason=$3, paid_at=COALESCE($4, paid_at), updated_at=NOW() WHERE id=$1;`
	case model.PurchaseStatusRefunded:
		q = `UPDATE purchases SET status=$2, refund_reason=$3, paid_at=COALESCE($4, paid_at), updated_at=NOW() WHERE id=$1;`
	default:
		q = `UPDATE purchases SET status=$2, paid_at=COALESCE($4, paid_at), updated_at=NOW() WHERE id=$1;`
	}
	tag, err := execSQL(ctx, r.pool, qx, q, id, status, reason, paidAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *purchaseRepo) ListByUser(ctx context.Context, qx repository.Tx, userID string) ([]*model.Purchase, error) {
	q := `SELECT ` + purchaseColumns + ` FROM purchases WHERE user_id=$1 ORDER BY id DESC;`
	rows, err := pickRows(ctx, r.pool, qx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPurchases(rows)
}

func (r *purchaseRepo) ListPendingOlderThan(ctx context.Context, qx repository.Tx, cutoff time.Time, limit int) ([]*model.Purchase, error) {
	q := `SELECT ` + purchaseColumns + ` FROM purchases WHERE status='pending' AND created_at < $1 ORDER BY created_at LIMIT $2;`
	rows, err := pickRows(ctx, r.pool, qx, q, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPurchases(rows)
}

func scanPurchase(row pgx.Row) (*model.Purchase, error) {
	p := &model.Purchase{}
	if err := row.Scan(&p.ID, &p.UserID, &p.PackageID, &p.Kind, &p.Provider, &p.PriceCents, &p.Currency, &p.Coins, &p.Tier, &p.DurationDays, &p.ExternalRef, &p.RedirectURL, &p.Status, &p.FailReason, &p.RefundReason, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func scanPurchases(rows pgx.Rows) ([]*model.Purchase, error) {
	var out []*model.Purchase
	for rows.Next() {
		p := &model.Purchase{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.PackageID, &p.Kind, &p.Provider, &p.PriceCents, &p.Currency, &p.Coins, &p.Tier, &p.DurationDays, &p.ExternalRef, &p.RedirectURL, &p.Status, &p.FailReason, &p.RefundReason, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
