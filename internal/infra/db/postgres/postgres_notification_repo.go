package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"webnovel-billing/internal/domain"
	"webnovel-billing/internal/domain/model"
	"webnovel-billing/internal/domain/ports/repository"
)

var _ repository.NotificationRepository = (*notificationRepo)(nil)

type notificationRepo struct{ pool *pgxpool.Pool }

func NewNotificationRepo(pool *pgxpool.Pool) *notificationRepo {
	return &notificationRepo{pool: pool}
}

func (r *notificationRepo) Save(ctx context.Context, qx repository.Tx, n *model.Notification) error {
	const q = `
INSERT INTO notifications (id, user_id, kind, purchase_id, created_at, read_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	_, err := execSQL(ctx, r.pool, qx, q, n.ID, n.UserID, n.Kind, n.PurchaseID, n.CreatedAt, n.ReadAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *notificationRepo) ListUnreadByUser(ctx context.Context, qx repository.Tx, userID string) ([]*model.Notification, error) {
	const q = `SELECT id, user_id, kind, purchase_id, created_at, read_at FROM notifications WHERE user_id=$1 AND read_at IS NULL ORDER BY created_at;`
	rows, err := pickRows(ctx, r.pool, qx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Notification
	for rows.Next() {
		n := &model.Notification{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.PurchaseID, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *notificationRepo) MarkRead(ctx context.Context, qx repository.Tx, id string) error {
	const q = `UPDATE notifications SET read_at=NOW() WHERE id=$1 AND read_at IS NULL;`
	if _, err := execSQL(ctx, r.pool, qx, q, id); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}
