// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"math/big"
	"testing"

	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/clamm/amm"
)

var (
	storeOwner = common.HexToAddress("0x1000000000000000000000000000000000000001")
	storeKey   = amm.PoolKey{
		Currency0:   amm.Currency{Address: common.HexToAddress("0x0000000000000000000000000000000000000aaa")},
		Currency1:   amm.Currency{Address: common.HexToAddress("0x0000000000000000000000000000000000000bbb")},
		Fee:         amm.Fee030,
		TickSpacing: amm.TickSpacing030,
	}
)

// buildPool returns a pool with live state: liquidity, a position, and
// trading history.
func buildPool(t *testing.T) *amm.Pool {
	t.Helper()
	pool := amm.NewPool(storeKey)

	_, err := pool.Initialize(new(big.Int).Set(amm.Q96))
	require.NoError(t, err)

	_, _, err = pool.ModifyLiquidity(storeOwner, amm.ModifyLiquidityParams{
		TickLower:      -6000,
		TickUpper:      6000,
		LiquidityDelta: big.NewInt(1 << 50),
	})
	require.NoError(t, err)

	_, err = pool.Swap(amm.SwapParams{
		ZeroForOne:      true,
		AmountSpecified: big.NewInt(1_000_000),
	})
	require.NoError(t, err)

	return pool
}

func TestPoolStoreRoundTrip(t *testing.T) {
	db := memdb.New()
	defer db.Close()

	s := New(db, log.NewTestLogger(log.InfoLevel))
	pool := buildPool(t)

	require.NoError(t, s.SavePool(pool))

	ok, err := s.HasPool(storeKey)
	require.NoError(t, err)
	require.True(t, ok)

	loaded, err := s.LoadPool(storeKey)
	require.NoError(t, err)

	require.Equal(t, pool.Key, loaded.Key)
	require.Zero(t, pool.Slot0.SqrtPriceX96.Cmp(loaded.Slot0.SqrtPriceX96))
	require.Equal(t, pool.Slot0.Tick, loaded.Slot0.Tick)
	require.Zero(t, pool.Liquidity.Cmp(loaded.Liquidity))
	require.Zero(t, pool.FeeGrowthGlobal0X128.Cmp(loaded.FeeGrowthGlobal0X128))

	// The restored position is intact.
	pos := loaded.GetPosition(storeOwner, -6000, 6000, [32]byte{})
	require.NotNil(t, pos)
	require.Zero(t, pos.Liquidity.Cmp(big.NewInt(1<<50)))
}

func TestPoolStoreLoadedPoolIsLive(t *testing.T) {
	db := memdb.New()
	defer db.Close()

	s := New(db, log.NewTestLogger(log.InfoLevel))
	require.NoError(t, s.SavePool(buildPool(t)))

	loaded, err := s.LoadPool(storeKey)
	require.NoError(t, err)

	// A restored pool keeps trading: the tick bitmap was rebuilt.
	delta, err := loaded.Swap(amm.SwapParams{
		ZeroForOne:      true,
		AmountSpecified: big.NewInt(1_000_000),
	})
	require.NoError(t, err)
	require.Zero(t, delta.Amount0.Cmp(big.NewInt(1_000_000)))
	require.Negative(t, delta.Amount1.Sign())
}

func TestPoolStoreMissingPool(t *testing.T) {
	db := memdb.New()
	defer db.Close()

	s := New(db, log.NewTestLogger(log.InfoLevel))

	_, err := s.LoadPool(storeKey)
	require.ErrorIs(t, err, database.ErrNotFound)

	ok, err := s.HasPool(storeKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPoolStoreDelete(t *testing.T) {
	db := memdb.New()
	defer db.Close()

	s := New(db, log.NewTestLogger(log.InfoLevel))
	require.NoError(t, s.SavePool(buildPool(t)))
	require.NoError(t, s.DeletePool(storeKey))

	ok, err := s.HasPool(storeKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPoolStoreSaveOverwrites(t *testing.T) {
	db := memdb.New()
	defer db.Close()

	s := New(db, log.NewTestLogger(log.InfoLevel))
	pool := buildPool(t)
	require.NoError(t, s.SavePool(pool))

	// Trade, save again, reload. The newer snapshot wins.
	_, err := pool.Swap(amm.SwapParams{
		ZeroForOne:      true,
		AmountSpecified: big.NewInt(1_000_000),
	})
	require.NoError(t, err)
	require.NoError(t, s.SavePool(pool))

	loaded, err := s.LoadPool(storeKey)
	require.NoError(t, err)
	require.Zero(t, pool.Slot0.SqrtPriceX96.Cmp(loaded.Slot0.SqrtPriceX96))
}
