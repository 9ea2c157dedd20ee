package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/totegamma/starnet/internal/domain"
	"github.com/totegamma/starnet/internal/usecase"
)

// Memcache is the subset of *memcache.Client the cache layer needs.
type Memcache interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Delete(key string) error
}

const holonCacheTTL = 600

func holonCacheKey(id string, version int) string {
	return fmt.Sprintf("starnet:holon:%s:%d", id, version)
}

// CachedHolonRepository serves exact version lookups from memcached.
// Latest version lookups always go to the underlying store.
type CachedHolonRepository struct {
	inner usecase.HolonRepository
	mc    Memcache
}

func NewCachedHolonRepository(inner usecase.HolonRepository, mc Memcache) *CachedHolonRepository {
	return &CachedHolonRepository{inner: inner, mc: mc}
}

func (r *CachedHolonRepository) store(h domain.Holon) {
	data, err := json.Marshal(h)
	if err != nil {
		return
	}
	err = r.mc.Set(&memcache.Item{
		Key:        holonCacheKey(h.ID, h.Version),
		Value:      data,
		Expiration: holonCacheTTL,
	})
	if err != nil {
		slog.Debug("memcache set failed", slog.String("error", err.Error()), slog.String("module", "repository"))
	}
}

func (r *CachedHolonRepository) evict(id string, version int) {
	err := r.mc.Delete(holonCacheKey(id, version))
	if err != nil && err != memcache.ErrCacheMiss {
		slog.Debug("memcache delete failed", slog.String("error", err.Error()), slog.String("module", "repository"))
	}
}

func (r *CachedHolonRepository) Insert(ctx context.Context, h domain.Holon) error {
	return r.inner.Insert(ctx, h)
}

func (r *CachedHolonRepository) Get(ctx context.Context, id string, version int) (domain.Holon, error) {
	if version != domain.LatestVersion {
		item, err := r.mc.Get(holonCacheKey(id, version))
		if err == nil {
			var h domain.Holon
			if err := json.Unmarshal(item.Value, &h); err == nil {
				return h, nil
			}
		}
	}

	h, err := r.inner.Get(ctx, id, version)
	if err != nil {
		return domain.Holon{}, err
	}
	r.store(h)
	return h, nil
}

func (r *CachedHolonRepository) Versions(ctx context.Context, id string) ([]domain.Holon, error) {
	return r.inner.Versions(ctx, id)
}

func (r *CachedHolonRepository) List(ctx context.Context, q domain.HolonQuery) ([]domain.Holon, error) {
	return r.inner.List(ctx, q)
}

// Save evicts before and after the write so a Get racing the write cannot
// keep the old record cached.
func (r *CachedHolonRepository) Save(ctx context.Context, h domain.Holon) error {
	r.evict(h.ID, h.Version)
	err := r.inner.Save(ctx, h)
	r.evict(h.ID, h.Version)
	return err
}

func (r *CachedHolonRepository) Delete(ctx context.Context, id string, version int) (int64, error) {
	if version != domain.LatestVersion {
		r.evict(id, version)
		n, err := r.inner.Delete(ctx, id, version)
		r.evict(id, version)
		return n, err
	}

	versions, err := r.inner.Versions(ctx, id)
	if err != nil {
		return 0, err
	}
	for _, h := range versions {
		r.evict(h.ID, h.Version)
	}
	n, err := r.inner.Delete(ctx, id, version)
	for _, h := range versions {
		r.evict(h.ID, h.Version)
	}
	return n, err
}

var _ usecase.HolonRepository = (*CachedHolonRepository)(nil)
