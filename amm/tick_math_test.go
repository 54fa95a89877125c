// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"math/big"
	"testing"
)

func TestGetSqrtRatioAtTickBounds(t *testing.T) {
	minRatio, err := GetSqrtRatioAtTick(MinTick)
	if err != nil {
		t.Fatalf("MinTick: %v", err)
	}
	if minRatio.Cmp(MinSqrtRatio) != 0 {
		t.Errorf("ratio at MinTick = %s, want %s", minRatio, MinSqrtRatio)
	}

	maxRatio, err := GetSqrtRatioAtTick(MaxTick)
	if err != nil {
		t.Fatalf("MaxTick: %v", err)
	}
	if maxRatio.Cmp(MaxSqrtRatio) != 0 {
		t.Errorf("ratio at MaxTick = %s, want %s", maxRatio, MaxSqrtRatio)
	}

	zeroRatio, err := GetSqrtRatioAtTick(0)
	if err != nil {
		t.Fatalf("tick 0: %v", err)
	}
	if zeroRatio.Cmp(Q96) != 0 {
		t.Errorf("ratio at tick 0 = %s, want %s", zeroRatio, Q96)
	}
}

func TestGetSqrtRatioAtTickOutOfRange(t *testing.T) {
	for _, tick := range []int24{MinTick - 1, MaxTick + 1, MinTick * 2} {
		if _, err := GetSqrtRatioAtTick(tick); err == nil {
			t.Errorf("tick %d: expected error", tick)
		}
	}
}

func TestGetSqrtRatioAtTickMonotonic(t *testing.T) {
	ticks := []int24{MinTick, -500000, -100000, -60, -1, 0, 1, 60, 100000, 500000, MaxTick}
	var prev *big.Int
	for _, tick := range ticks {
		ratio, err := GetSqrtRatioAtTick(tick)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		if prev != nil && ratio.Cmp(prev) <= 0 {
			t.Errorf("tick %d: ratio %s not greater than previous %s", tick, ratio, prev)
		}
		prev = ratio
	}
}

func TestGetTickAtSqrtRatioRoundTrip(t *testing.T) {
	ticks := []int24{MinTick, -887270, -123456, -887, -60, -2, -1, 0, 1, 2, 60, 887, 123456, 887270}
	for _, tick := range ticks {
		ratio, err := GetSqrtRatioAtTick(tick)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		got, err := GetTickAtSqrtRatio(ratio)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		if got != tick {
			t.Errorf("round trip of tick %d = %d", tick, got)
		}
	}
}

func TestGetTickAtSqrtRatioBetweenTicks(t *testing.T) {
	// A price strictly between two tick ratios maps to the lower tick.
	lower, err := GetSqrtRatioAtTick(100)
	if err != nil {
		t.Fatal(err)
	}
	upper, err := GetSqrtRatioAtTick(101)
	if err != nil {
		t.Fatal(err)
	}
	mid := new(big.Int).Add(lower, upper)
	mid.Rsh(mid, 1)

	tick, err := GetTickAtSqrtRatio(mid)
	if err != nil {
		t.Fatal(err)
	}
	if tick != 100 {
		t.Errorf("tick at midpoint = %d, want 100", tick)
	}
}

func TestGetTickAtSqrtRatioBounds(t *testing.T) {
	tick, err := GetTickAtSqrtRatio(MinSqrtRatio)
	if err != nil {
		t.Fatal(err)
	}
	if tick != MinTick {
		t.Errorf("tick at MinSqrtRatio = %d, want %d", tick, MinTick)
	}

	if _, err := GetTickAtSqrtRatio(new(big.Int).Sub(MinSqrtRatio, big.NewInt(1))); err == nil {
		t.Error("expected error below MinSqrtRatio")
	}
	if _, err := GetTickAtSqrtRatio(MaxSqrtRatio); err == nil {
		t.Error("expected error at MaxSqrtRatio")
	}

	almostMax := new(big.Int).Sub(MaxSqrtRatio, big.NewInt(1))
	tick, err = GetTickAtSqrtRatio(almostMax)
	if err != nil {
		t.Fatal(err)
	}
	if tick != MaxTick-1 {
		t.Errorf("tick just below MaxSqrtRatio = %d, want %d", tick, MaxTick-1)
	}
}

func TestTickSpacingToMaxLiquidityPerTick(t *testing.T) {
	// Spacing 1 covers every tick in [MinTick, MaxTick].
	numTicks := int64(MaxTick)*2 + 1
	want := new(big.Int).Div(MaxUint128, big.NewInt(numTicks))
	got := tickSpacingToMaxLiquidityPerTick(1)
	if got.Cmp(want) != 0 {
		t.Errorf("spacing 1 = %s, want %s", got, want)
	}

	// Wider spacing leaves room for more liquidity per tick.
	if tickSpacingToMaxLiquidityPerTick(60).Cmp(got) <= 0 {
		t.Error("spacing 60 cap should exceed spacing 1 cap")
	}
}

func BenchmarkGetSqrtRatioAtTick(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = GetSqrtRatioAtTick(int24(i)%MaxTick - MaxTick/2)
	}
}

func BenchmarkGetTickAtSqrtRatio(b *testing.B) {
	ratio, _ := GetSqrtRatioAtTick(12345)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = GetTickAtSqrtRatio(ratio)
	}
}
