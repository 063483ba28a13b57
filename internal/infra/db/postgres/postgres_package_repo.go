package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"webnovel-billing/internal/domain"
	"webnovel-billing/internal/domain/model"
	"webnovel-billing/internal/domain/ports/repository"
)

var _ repository.PackageRepository = (*packageRepo)(nil)

type packageRepo struct{ pool *pgxpool.Pool }

func NewPackageRepo(pool *pgxpool.Pool) *packageRepo {
	return &packageRepo{pool: pool}
}

const packageColumns = `id, name, kind, price_cents, currency, coins, tier, duration_days, active, created_at`

func (r *packageRepo) Save(ctx context.Context, qx repository.Tx, pkg *model.Package) error {
	const q = `
INSERT INTO packages (
  id, name, kind, price_cents, currency, coins, tier, duration_days, active, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
) ON CONFLICT (id) DO UPDATE SET
  name=$2, kind=$3, price_cents=$4, currency=$5, coins=$6, tier=$7, duration_days=$8, active=$9;`

	_, err := execSQL(ctx, r.pool, qx, q, pkg.ID, pkg.Name, pkg.Kind, pkg.PriceCents, pkg.Currency, pkg.Coins, pkg.Tier, pkg.DurationDays, pkg.Active, pkg.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *packageRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Package, error) {
	q := `SELECT ` + packageColumns + ` FROM packages WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	pkg := &model.Package{}
	if err := row.Scan(&pkg.ID, &pkg.Name, &pkg.Kind, &pkg.PriceCents, &pkg.Currency, &pkg.Coins, &pkg.Tier, &pkg.DurationDays, &pkg.Active, &pkg.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return pkg, nil
}

func (r *packageRepo) ListActive(ctx context.Context, qx repository.Tx) ([]*model.Package, error) {
	q := `SELECT ` + packageColumns + ` FROM packages WHERE active ORDER BY created_at;`
	rows, err := pickRows(ctx, r.pool, qx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Package
	for rows.Next() {
		pkg := &model.Package{}
		if err := rows.Scan(&pkg.ID, &pkg.Name, &pkg.Kind, &pkg.PriceCents, &pkg.Currency, &pkg.Coins, &pkg.Tier, &pkg.DurationDays, &pkg.Active, &pkg.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, pkg)
	}
	return out, rows.Err()
}

func (r *packageRepo) Deactivate(ctx context.Context, qx repository.Tx, id string) error {
	const q = `UPDATE packages SET active=FALSE WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, qx, q, id)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
