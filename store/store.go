// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package store persists pool snapshots to a key-value database. Keys are
// content addressed: a fixed prefix hashed together with the pool ID, so
// the layout is stable across restarts and independent of insertion order.
package store

import (
	"fmt"

	"github.com/luxfi/database"
	log "github.com/luxfi/log"
	"github.com/zeebo/blake3"

	"github.com/luxfi/clamm/amm"
)

var poolPrefix = []byte("pool")

// PoolStore reads and writes pool snapshots.
type PoolStore struct {
	db  database.Database
	log log.Logger
}

// New creates a pool store over a database.
func New(db database.Database, logger log.Logger) *PoolStore {
	return &PoolStore{db: db, log: logger}
}

func storageKey(prefix []byte, id [32]byte) []byte {
	h := blake3.New()
	h.Write(prefix)
	h.Write(id[:])
	key := make([]byte, 32)
	h.Digest().Read(key)
	return key
}

// SavePool writes a pool snapshot keyed by its pool ID.
func (s *PoolStore) SavePool(pool *amm.Pool) error {
	data, err := pool.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode pool: %w", err)
	}
	id := pool.Key.ID()
	if err := s.db.Put(storageKey(poolPrefix, id), data); err != nil {
		return fmt.Errorf("put pool: %w", err)
	}
	s.log.Debug("pool snapshot saved")
	return nil
}

// LoadPool reads a pool snapshot by key. Returns database.ErrNotFound if
// the pool was never saved.
func (s *PoolStore) LoadPool(key amm.PoolKey) (*amm.Pool, error) {
	data, err := s.db.Get(storageKey(poolPrefix, key.ID()))
	if err != nil {
		return nil, err
	}
	pool := new(amm.Pool)
	if err := pool.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("decode pool: %w", err)
	}
	return pool, nil
}

// HasPool reports whether a snapshot exists for a pool key.
func (s *PoolStore) HasPool(key amm.PoolKey) (bool, error) {
	return s.db.Has(storageKey(poolPrefix, key.ID()))
}

// DeletePool removes a pool snapshot.
func (s *PoolStore) DeletePool(key amm.PoolKey) error {
	return s.db.Delete(storageKey(poolPrefix, key.ID()))
}
