package gateway

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/totegamma/starnet/internal/domain"
	"github.com/totegamma/starnet/internal/usecase"
)

func networkKey(family string) string {
	return "starnet:network:" + family
}

// RedisNetworkRegistry keeps the shared index as one redis hash per family.
type RedisNetworkRegistry struct {
	rdb   *redis.Client
	cache *cache.Cache
}

func NewRedisNetworkRegistry(rdb *redis.Client) *RedisNetworkRegistry {
	return &RedisNetworkRegistry{
		rdb:   rdb,
		cache: cache.New(30*time.Second, time.Minute),
	}
}

func (r *RedisNetworkRegistry) Register(ctx context.Context, entry domain.NetworkEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	err = r.rdb.HSet(ctx, networkKey(entry.Family), entry.ID, data).Err()
	if err != nil {
		return errors.Wrap(err, "redis hset")
	}
	r.cache.Delete(entry.Family)
	return nil
}

func (r *RedisNetworkRegistry) Unregister(ctx context.Context, family, id string, version int) error {
	key := networkKey(family)
	err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		if version != domain.LatestVersion {
			data, err := tx.HGet(ctx, key, id).Bytes()
			if err == redis.Nil {
				return nil
			}
			if err != nil {
				return err
			}
			var entry domain.NetworkEntry
			if err := json.Unmarshal(data, &entry); err != nil {
				return errors.Wrap(err, "decode network entry")
			}
			if entry.Version != version {
				return nil
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, key, id)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return errors.Wrap(err, "redis hdel")
	}
	r.cache.Delete(family)
	return nil
}

func (r *RedisNetworkRegistry) List(ctx context.Context, family string) ([]domain.NetworkEntry, error) {
	if cached, found := r.cache.Get(family); found {
		return cached.([]domain.NetworkEntry), nil
	}

	values, err := r.rdb.HGetAll(ctx, networkKey(family)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis hgetall")
	}

	entries := make([]domain.NetworkEntry, 0, len(values))
	for _, v := range values {
		var entry domain.NetworkEntry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			return nil, errors.Wrap(err, "decode network entry")
		}
		entries = append(entries, entry)
	}
	sortEntries(entries)

	r.cache.Set(family, entries, cache.DefaultExpiration)
	return entries, nil
}

func sortEntries(entries []domain.NetworkEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].ID < entries[j].ID
	})
}

var _ usecase.NetworkRegistry = (*RedisNetworkRegistry)(nil)
