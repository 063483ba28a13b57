//go:build !integration

package postgres

import (
	"context"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"webnovel-billing/internal/domain/model"
	"webnovel-billing/internal/domain/ports/repository"
	red "webnovel-billing/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerPackageRepo mocks the database repository that the decorator wraps.
type mockInnerPackageRepo struct {
	SaveFunc       func(ctx context.Context, tx repository.Tx, pkg *model.Package) error
	FindByIDFunc   func(ctx context.Context, tx repository.Tx, id string) (*model.Package, error)
	ListActiveFunc func(ctx context.Context, tx repository.Tx) ([]*model.Package, error)
	DeactivateFunc func(ctx context.Context, tx repository.Tx, id string) error
}

var _ repository.PackageRepository = (*mockInnerPackageRepo)(nil)

func (m *mockInnerPackageRepo) Save(ctx context.Context, tx repository.Tx, pkg *model.Package) error {
	return m.SaveFunc(ctx, tx, pkg)
}
func (m *mockInnerPackageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerPackageRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	return m.ListActiveFunc(ctx, tx)
}
func (m *mockInnerPackageRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	return m.DeactivateFunc(ctx, tx, id)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc   func(ctx context.Context, key string) (string, error)
	SetFunc   func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetNXFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	DelFunc   func(ctx context.Context, keys ...string) error
	PingFunc  func(ctx context.Context) error
	EvalFunc  func(ctx context.Context, script *goredis.Script, keys []string, args ...interface{}) (interface{}, error)
	CloseFunc func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return m.SetNXFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Eval(ctx context.Context, script *goredis.Script, keys []string, args ...interface{}) (interface{}, error) {
	return m.EvalFunc(ctx, script, keys, args...)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }
