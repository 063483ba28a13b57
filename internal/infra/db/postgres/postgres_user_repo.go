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

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

func (r *PostgresUserRepo) Save(ctx context.Context, qx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (
  id, username, coins, membership_tier, membership_expires_at, banned, registered_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
) ON CONFLICT (id) DO UPDATE SET
  username=$2, coins=$3, membership_tier=$4, membership_expires_at=$5, banned=$6, updated_at=$8;
`
	_, err := execSQL(ctx, r.pool, qx, q, u.ID, u.Username, u.Coins, u.MembershipTier, u.MembershipExpiresAt, u.Banned, u.RegisteredAt, time.Now())
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.User, error) {
	q := `
SELECT id, username, coins, membership_tier, membership_expires_at, banned, registered_at, updated_at
  FROM users WHERE id=$1`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.Coins, &u.MembershipTier, &u.MembershipExpiresAt, &u.Banned, &u.RegisteredAt, &u.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &u, nil
}

// AddCoins applies a signed delta. The WHERE guard keeps the balance
// non-negative; a debit that would overdraw affects zero rows.
func (r *PostgresUserRepo) AddCoins(ctx context.Context, qx repository.Tx, userID string, delta int64) (bool, error) {
	const q = `UPDATE users SET coins = coins + $2, updated_at = NOW() WHERE id=$1 AND coins + $2 >= 0;`
	tag, err := execSQL(ctx, r.pool, qx, q, userID, delta)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresUserRepo) SetMembership(ctx context.Context, qx repository.Tx, userID string, tier model.MembershipTier, expiresAt *time.Time) error {
	const q = `UPDATE users SET membership_tier=$2, membership_expires_at=$3, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, qx, q, userID, tier, expiresAt)
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

// DowngradeExpired re-checks the expiry condition inside the UPDATE itself,
// so overlapping sweeps and racing completions cannot clobber a fresh grant.
func (r *PostgresUserRepo) DowngradeExpired(ctx context.Context, qx repository.Tx, now time.Time) ([]string, error) {
	const q = `
UPDATE users SET membership_tier='basic', membership_expires_at=NULL, updated_at=NOW()
 WHERE membership_tier='premium' AND membership_expires_at IS NOT NULL AND membership_expires_at <= $1
RETURNING id;`
	rows, err := pickRows(ctx, r.pool, qx, q, now)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PostgresUserRepo) DowngradeIfExpired(ctx context.Context, qx repository.Tx, userID string, now time.Time) (bool, error) {
	const q = `
UPDATE users SET membership_tier='basic', membership_expires_at=NULL, updated_at=NOW()
 WHERE id=$1 AND membership_tier='premium' AND membership_expires_at IS NOT NULL AND membership_expires_at <= $2;`
	tag, err := execSQL(ctx, r.pool, qx, q, userID, now)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() == 1, nil
}
