// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"errors"
	"math/big"
	"testing"
)

func TestUnmarshalRejectsBadTickSpacing(t *testing.T) {
	pool := newTestPool(t)
	addTestLiquidity(t, pool, -6000, 6000, 1<<40)

	data, err := pool.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	// Zero out the tick spacing field: version(1) + currencies(40) +
	// fee(4) puts it at offset 45.
	bad := make([]byte, len(data))
	copy(bad, data)
	for i := 45; i < 49; i++ {
		bad[i] = 0
	}

	loaded := new(Pool)
	if err := loaded.UnmarshalBinary(bad); !errors.Is(err, ErrBadSnapshot) {
		t.Errorf("err = %v, want ErrBadSnapshot", err)
	}
}

func TestUnmarshalRejectsBadInput(t *testing.T) {
	pool := newTestPool(t)
	if _, _, err := pool.ModifyLiquidity(testOwner, ModifyLiquidityParams{
		TickLower:      -60,
		TickUpper:      60,
		LiquidityDelta: big.NewInt(1 << 30),
	}); err != nil {
		t.Fatal(err)
	}

	data, err := pool.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	// Wrong version byte.
	bad := make([]byte, len(data))
	copy(bad, data)
	bad[0] = snapshotVersion + 1
	if err := new(Pool).UnmarshalBinary(bad); !errors.Is(err, ErrBadSnapshot) {
		t.Errorf("version err = %v, want ErrBadSnapshot", err)
	}

	// Truncated payload.
	if err := new(Pool).UnmarshalBinary(data[:len(data)/2]); !errors.Is(err, ErrBadSnapshot) {
		t.Errorf("truncated err = %v, want ErrBadSnapshot", err)
	}

	// Trailing garbage.
	if err := new(Pool).UnmarshalBinary(append(append([]byte{}, data...), 0)); !errors.Is(err, ErrBadSnapshot) {
		t.Errorf("trailing err = %v, want ErrBadSnapshot", err)
	}
}
