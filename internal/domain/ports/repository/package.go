package repository

import (
	"context"

	"webnovel-billing/internal/domain/model"
)

// PackageRepository is the port for catalog persistence.
type PackageRepository interface {
	Save(ctx context.Context, qx Tx, pkg *model.Package) error
	FindByID(ctx context.Context, qx Tx, id string) (*model.Package, error)
	ListActive(ctx context.Context, qx Tx) ([]*model.Package, error)
	Deactivate(ctx context.Context, qx Tx, id string) error
}
