package repository

import (
	"context"

	"webnovel-billing/internal/domain/model"
)

type NotificationRepository interface {
	Save(ctx context.Context, qx Tx, n *model.Notification) error
	ListUnreadByUser(ctx context.Context, qx Tx, userID string) ([]*model.Notification, error)
	MarkRead(ctx context.Context, qx Tx, id string) error
}
