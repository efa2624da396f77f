package cache

import (
	"context"
	"time"

	"savdopos/backend/internal/domain"
)

// PermissionCache stores resolved capability sets keyed by employee ID, so
// the role lookup happens once at login instead of on every request.
type PermissionCache interface {
	Get(ctx context.Context, key string) ([]domain.Permission, bool, error)
	Set(ctx context.Context, key string, value []domain.Permission, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopPermissionCache struct{}

func (NoopPermissionCache) Get(_ context.Context, _ string) ([]domain.Permission, bool, error) {
	return nil, false, nil
}

func (NoopPermissionCache) Set(_ context.Context, _ string, _ []domain.Permission, _ time.Duration) error {
	return nil
}

func (NoopPermissionCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
