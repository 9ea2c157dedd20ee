package gateway

import (
	"context"

	"github.com/hashicorp/go-memdb"

	"github.com/totegamma/starnet/internal/domain"
	"github.com/totegamma/starnet/internal/usecase"
)

const networkTable = "network_entry"

func networkSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			networkTable: {
				Name: networkTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:   "id",
						Unique: true,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "Family"},
								&memdb.StringFieldIndex{Field: "ID"},
							},
						},
					},
					"family": {
						Name: "family",
						Indexer: &memdb.StringFieldIndex{
							Field: "Family",
						},
					},
				},
			},
		},
	}
}

// MemoryNetworkRegistry is the network index of a node running without redis.
type MemoryNetworkRegistry struct {
	db *memdb.MemDB
}

func NewMemoryNetworkRegistry() (*MemoryNetworkRegistry, error) {
	db, err := memdb.NewMemDB(networkSchema())
	if err != nil {
		return nil, err
	}
	return &MemoryNetworkRegistry{db: db}, nil
}

func (r *MemoryNetworkRegistry) Register(ctx context.Context, entry domain.NetworkEntry) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(networkTable, &entry); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (r *MemoryNetworkRegistry) Unregister(ctx context.Context, family, id string, version int) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	obj, err := txn.First(networkTable, "id", family, id)
	if err != nil {
		return err
	}
	if obj == nil {
		return nil
	}
	if version != domain.LatestVersion && obj.(*domain.NetworkEntry).Version != version {
		return nil
	}
	if err := txn.Delete(networkTable, obj); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (r *MemoryNetworkRegistry) List(ctx context.Context, family string) ([]domain.NetworkEntry, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(networkTable, "family", family)
	if err != nil {
		return nil, err
	}

	entries := []domain.NetworkEntry{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		entries = append(entries, *obj.(*domain.NetworkEntry))
	}
	sortEntries(entries)
	return entries, nil
}

var _ usecase.NetworkRegistry = (*MemoryNetworkRegistry)(nil)
