// File: internal/usecase/package_uc.go
package usecase

import (
	"context"

	"github.com/google/uuid"

	"webnovel-billing/internal/domain/model"
	"webnovel-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ PackageUseCase = (*packageUC)(nil)

// PackageUseCase is the admin-facing catalog surface. The billing core only
// reads packages; these writes exist for the admin API and the seed command.
type PackageUseCase interface {
	CreateCoinPackage(ctx context.Context, name string, coins, priceCents int64, currency string) (*model.Package, error)
	CreateMembershipPackage(ctx context.Context, name string, durationDays int, priceCents int64, currency string) (*model.Package, error)
	ListActive(ctx context.Context) ([]*model.Package, error)
	Deactivate(ctx context.Context, id string) error
}

type packageUC struct {
	packages repository.PackageRepository
}

func NewPackageUseCase(packages repository.PackageRepository) *packageUC {
	return &packageUC{packages: packages}
}

func (u *packageUC) CreateCoinPackage(ctx context.Context, name string, coins, priceCents int64, currency string) (*model.Package, error) {
	pkg, err := model.NewCoinPackage(uuid.NewString(), name, coins, priceCents, currency)
	if err != nil {
		return nil, err
	}
	if err := u.packages.Save(ctx, nil, pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

func (u *packageUC) CreateMembershipPackage(ctx context.Context, name string, durationDays int, priceCents int64, currency string) (*model.Package, error) {
	pkg, err := model.NewMembershipPackage(uuid.NewString(), name, model.TierPremium, durationDays, priceCents, currency)
	if err != nil {
		return nil, err
	}
	if err := u.packages.Save(ctx, nil, pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

func (u *packageUC) ListActive(ctx context.Context) ([]*model.Package, error) {
	return u.packages.ListActive(ctx, nil)
}

func (u *packageUC) Deactivate(ctx context.Context, id string) error {
	return u.packages.Deactivate(ctx, nil, id)
}
