package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/totegamma/starnet/internal/domain"
	"github.com/totegamma/starnet/internal/usecase"
)

const holonKeyPrefix = "h/"

func holonPrefix(id string) []byte {
	return []byte(holonKeyPrefix + id + "/")
}

func holonKey(id string, version int) []byte {
	return []byte(fmt.Sprintf("%s%s/%010d", holonKeyPrefix, id, version))
}

// prefixEnd returns the smallest key greater than every key starting with prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// PebbleHolonRepository is the embedded store used by single node deployments.
type PebbleHolonRepository struct {
	db *pebble.DB
	mu sync.Mutex
}

func NewPebbleHolonRepository(db *pebble.DB) *PebbleHolonRepository {
	return &PebbleHolonRepository{db: db}
}

func (r *PebbleHolonRepository) read(key []byte) (domain.Holon, error) {
	value, closer, err := r.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return domain.Holon{}, domain.NotFoundError{Resource: "holon"}
		}
		return domain.Holon{}, err
	}
	defer closer.Close()

	var h domain.Holon
	if err := json.Unmarshal(value, &h); err != nil {
		return domain.Holon{}, errors.Wrap(err, "decode holon")
	}
	return h, nil
}

func (r *PebbleHolonRepository) write(h domain.Holon) error {
	data, err := json.Marshal(h)
	if err != nil {
		return err
	}
	return r.db.Set(holonKey(h.ID, h.Version), data, pebble.Sync)
}

func (r *PebbleHolonRepository) scan(prefix []byte, fn func(h domain.Holon) error) error {
	iter, err := r.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var h domain.Holon
		if err := json.Unmarshal(iter.Value(), &h); err != nil {
			return errors.Wrap(err, "decode holon")
		}
		if err := fn(h); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (r *PebbleHolonRepository) Insert(ctx context.Context, h domain.Holon) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.read(holonKey(h.ID, h.Version))
	if err == nil {
		return domain.Conflict("holon %s version %d already exists", h.ID, h.Version)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return r.write(h)
}

func (r *PebbleHolonRepository) Get(ctx context.Context, id string, version int) (domain.Holon, error) {
	if version != domain.LatestVersion {
		return r.read(holonKey(id, version))
	}

	prefix := holonPrefix(id)
	iter, err := r.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return domain.Holon{}, err
	}
	defer iter.Close()

	if !iter.Last() {
		if err := iter.Error(); err != nil {
			return domain.Holon{}, err
		}
		return domain.Holon{}, domain.NotFoundError{Resource: "holon"}
	}
	var h domain.Holon
	if err := json.Unmarshal(iter.Value(), &h); err != nil {
		return domain.Holon{}, errors.Wrap(err, "decode holon")
	}
	return h, nil
}

func (r *PebbleHolonRepository) Versions(ctx context.Context, id string) ([]domain.Holon, error) {
	list := []domain.Holon{}
	err := r.scan(holonPrefix(id), func(h domain.Holon) error {
		list = append(list, h)
		return nil
	})
	return list, err
}

func (r *PebbleHolonRepository) List(ctx context.Context, q domain.HolonQuery) ([]domain.Holon, error) {
	list := []domain.Holon{}
	err := r.scan([]byte(holonKeyPrefix), func(h domain.Holon) error {
		if !q.AllVersions && len(list) > 0 && list[len(list)-1].ID == h.ID {
			// keys are ordered by version within an id, the later one wins
			list = list[:len(list)-1]
		}
		list = append(list, h)
		return nil
	})
	if err != nil {
		return nil, err
	}

	filtered := list[:0]
	for _, h := range list {
		if q.Family != "" && h.Family != q.Family {
			continue
		}
		if q.OwnerID != "" && h.OwnerID != q.OwnerID {
			continue
		}
		if q.Subtype != "" && h.Subtype != q.Subtype {
			continue
		}
		filtered = append(filtered, h)
	}
	return filtered, nil
}

func (r *PebbleHolonRepository) Save(ctx context.Context, h domain.Holon) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.read(holonKey(h.ID, h.Version))
	if err != nil {
		return err
	}
	h.CreatedAt = current.CreatedAt
	return r.write(h)
}

func (r *PebbleHolonRepository) Delete(ctx context.Context, id string, version int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if version != domain.LatestVersion {
		key := holonKey(id, version)
		if _, err := r.read(key); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return 0, nil
			}
			return 0, err
		}
		return 1, r.db.Delete(key, pebble.Sync)
	}

	var count int64
	batch := r.db.NewBatch()
	defer batch.Close()
	err := r.scan(holonPrefix(id), func(h domain.Holon) error {
		count++
		return batch.Delete(holonKey(h.ID, h.Version), nil)
	})
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	return count, batch.Commit(pebble.Sync)
}

var _ usecase.HolonRepository = (*PebbleHolonRepository)(nil)
