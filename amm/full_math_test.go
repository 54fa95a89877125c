// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"errors"
	"math/big"
	"testing"
)

func TestMulDivRounding(t *testing.T) {
	a := big.NewInt(7)
	b := big.NewInt(3)
	d := big.NewInt(2)

	if got := mulDiv(a, b, d); got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("mulDiv(7,3,2) = %s, want 10", got)
	}
	if got := mulDivRoundingUp(a, b, d); got.Cmp(big.NewInt(11)) != 0 {
		t.Errorf("mulDivRoundingUp(7,3,2) = %s, want 11", got)
	}
	// Exact division rounds the same both ways.
	if got := mulDivRoundingUp(big.NewInt(6), b, d); got.Cmp(big.NewInt(9)) != 0 {
		t.Errorf("mulDivRoundingUp(6,3,2) = %s, want 9", got)
	}
}

func TestAddDeltaBounds(t *testing.T) {
	if _, err := addDelta(big.NewInt(10), big.NewInt(-11)); !errors.Is(err, ErrLiquidityUnderflow) {
		t.Error("expected underflow")
	}
	if _, err := addDelta(MaxUint128, big.NewInt(1)); !errors.Is(err, ErrLiquidityOverflow) {
		t.Error("expected overflow")
	}
	got, err := addDelta(MaxUint128, big.NewInt(0))
	if err != nil {
		t.Fatal(err)
	}
	if got.Cmp(MaxUint128) != 0 {
		t.Errorf("got %s", got)
	}
}

func TestSubWrapping(t *testing.T) {
	// a >= b behaves like plain subtraction.
	if got := subWrapping(big.NewInt(10), big.NewInt(3)); got.Cmp(big.NewInt(7)) != 0 {
		t.Errorf("got %s, want 7", got)
	}

	// a < b wraps modulo 2^256; differencing two snapshots that both
	// wrapped recovers the true delta.
	wrapped := subWrapping(big.NewInt(3), big.NewInt(10))
	recovered := subWrapping(big.NewInt(5), wrapped)
	want := new(big.Int).Sub(big.NewInt(5), new(big.Int).Sub(big.NewInt(3), big.NewInt(10)))
	if recovered.Cmp(want) != 0 {
		t.Errorf("recovered %s, want %s", recovered, want)
	}
}
