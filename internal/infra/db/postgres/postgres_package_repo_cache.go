package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"webnovel-billing/internal/domain/model"
	"webnovel-billing/internal/domain/ports/repository"
	"webnovel-billing/internal/infra/metrics"
	red "webnovel-billing/internal/infra/redis"
)

var _ repository.PackageRepository = (*packageRepoCacheDecorator)(nil)

// packageRepoCacheDecorator serves catalog reads from Redis. Write operations
// invalidate both the single-package key and the active list key.
type packageRepoCacheDecorator struct {
	inner repository.PackageRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewPackageRepoCacheDecorator(inner repository.PackageRepository, cache red.RedisClient, ttl time.Duration) repository.PackageRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &packageRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func (d *packageRepoCacheDecorator) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Package, error) {
	key := fmt.Sprintf("package:%s", id)
	if val, err := d.cache.Get(ctx, key); err == nil {
		metrics.IncCacheRequest("package", "hit")
		var pkg model.Package
		if json.Unmarshal([]byte(val), &pkg) == nil {
			return &pkg, nil
		}
	}

	metrics.IncCacheRequest("package", "miss")
	pkg, err := d.inner.FindByID(ctx, qx, id)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(pkg); err == nil {
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return pkg, nil
}

func (d *packageRepoCacheDecorator) ListActive(ctx context.Context, qx repository.Tx) ([]*model.Package, error) {
	const key = "packages:active"
	if val, err := d.cache.Get(ctx, key); err == nil {
		metrics.IncCacheRequest("package_list", "hit")
		var pkgs []*model.Package
		if json.Unmarshal([]byte(val), &pkgs) == nil {
			return pkgs, nil
		}
	}

	metrics.IncCacheRequest("package_list", "miss")
	pkgs, err := d.inner.ListActive(ctx, qx)
	if err != nil {
		return nil, err
	}
	if len(pkgs) > 0 {
		if bytes, err := json.Marshal(pkgs); err == nil {
			_ = d.cache.Set(ctx, key, bytes, d.ttl)
		}
	}
	return pkgs, nil
}

func (d *packageRepoCacheDecorator) Save(ctx context.Context, qx repository.Tx, pkg *model.Package) error {
	_ = d.cache.Del(ctx, fmt.Sprintf("package:%s", pkg.ID), "packages:active")
	return d.inner.Save(ctx, qx, pkg)
}

func (d *packageRepoCacheDecorator) Deactivate(ctx context.Context, qx repository.Tx, id string) error {
	_ = d.cache.Del(ctx, fmt.Sprintf("package:%s", id), "packages:active")
	return d.inner.Deactivate(ctx, qx, id)
}
