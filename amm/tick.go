// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import "math/big"

// TickInfo is the state tracked for an initialized tick boundary.
type TickInfo struct {
	// LiquidityGross is the total position liquidity referencing this tick.
	// The tick is initialized iff LiquidityGross > 0.
	LiquidityGross *big.Int

	// LiquidityNet is added to active liquidity when the tick is crossed
	// left to right, subtracted right to left.
	LiquidityNet *big.Int

	// Fee growth on the other side of this tick relative to the current
	// tick. Relative value; only meaningful after initialization.
	FeeGrowthOutside0X128 *big.Int
	FeeGrowthOutside1X128 *big.Int

	Initialized bool
}

func newTickInfo() *TickInfo {
	return &TickInfo{
		LiquidityGross:        big.NewInt(0),
		LiquidityNet:          big.NewInt(0),
		FeeGrowthOutside0X128: big.NewInt(0),
		FeeGrowthOutside1X128: big.NewInt(0),
	}
}

// tickSpacingToMaxLiquidityPerTick returns the per-tick liquidity cap that
// guarantees the sum over all usable ticks cannot overflow uint128.
func tickSpacingToMaxLiquidityPerTick(tickSpacing int24) *big.Int {
	minTick := (MinTick / tickSpacing) * tickSpacing
	maxTick := (MaxTick / tickSpacing) * tickSpacing
	numTicks := int64((maxTick-minTick)/tickSpacing) + 1
	return new(big.Int).Div(MaxUint128, big.NewInt(numTicks))
}

// updateTick applies a liquidity delta to a tick boundary. Returns whether
// the tick flipped between initialized and uninitialized.
func (p *Pool) updateTick(tick int24, liquidityDelta *big.Int, upper bool) (flipped bool, err error) {
	info, ok := p.ticks[tick]
	if !ok {
		info = newTickInfo()
	}

	liquidityGrossBefore := info.LiquidityGross
	liquidityGrossAfter, err := addDelta(liquidityGrossBefore, liquidityDelta)
	if err != nil {
		return false, err
	}
	if liquidityGrossAfter.Cmp(p.maxLiquidityPerTick) > 0 {
		return false, ErrTickLiquidityCap
	}

	flipped = (liquidityGrossAfter.Sign() == 0) != (liquidityGrossBefore.Sign() == 0)

	if liquidityGrossBefore.Sign() == 0 {
		// Convention: ticks at or below the current tick have observed
		// all fee growth so far; ticks above have observed none.
		if tick <= p.Slot0.Tick {
			info.FeeGrowthOutside0X128 = new(big.Int).Set(p.FeeGrowthGlobal0X128)
			info.FeeGrowthOutside1X128 = new(big.Int).Set(p.FeeGrowthGlobal1X128)
		}
		info.Initialized = true
	}

	info.LiquidityGross = liquidityGrossAfter
	if upper {
		info.LiquidityNet = new(big.Int).Sub(info.LiquidityNet, liquidityDelta)
	} else {
		info.LiquidityNet = new(big.Int).Add(info.LiquidityNet, liquidityDelta)
	}
	p.ticks[tick] = info
	return flipped, nil
}

// clearTick removes an uninitialized tick from the sparse store.
func (p *Pool) clearTick(tick int24) {
	delete(p.ticks, tick)
}

// crossTick transitions a tick during a swap. Flips the fee growth outside
// values and returns the liquidity net to apply.
func (p *Pool) crossTick(tick int24, feeGrowthGlobal0X128, feeGrowthGlobal1X128 *big.Int) *big.Int {
	info, ok := p.ticks[tick]
	if !ok {
		return big.NewInt(0)
	}
	info.FeeGrowthOutside0X128 = subWrapping(feeGrowthGlobal0X128, info.FeeGrowthOutside0X128)
	info.FeeGrowthOutside1X128 = subWrapping(feeGrowthGlobal1X128, info.FeeGrowthOutside1X128)
	return info.LiquidityNet
}

// getFeeGrowthInside returns the fee growth inside a tick range. Computed by
// wrapping subtraction of the two outside views from the global accumulator;
// intermediate underflow cancels when snapshots are differenced.
func (p *Pool) getFeeGrowthInside(tickLower, tickUpper, tickCurrent int24) (feeGrowthInside0X128, feeGrowthInside1X128 *big.Int) {
	lower, lowerOK := p.ticks[tickLower]
	upper, upperOK := p.ticks[tickUpper]

	zero := big.NewInt(0)

	var feeGrowthBelow0, feeGrowthBelow1 *big.Int
	if !lowerOK {
		feeGrowthBelow0, feeGrowthBelow1 = zero, zero
	} else if tickCurrent >= tickLower {
		feeGrowthBelow0 = lower.FeeGrowthOutside0X128
		feeGrowthBelow1 = lower.FeeGrowthOutside1X128
	} else {
		feeGrowthBelow0 = subWrapping(p.FeeGrowthGlobal0X128, lower.FeeGrowthOutside0X128)
		feeGrowthBelow1 = subWrapping(p.FeeGrowthGlobal1X128, lower.FeeGrowthOutside1X128)
	}

	var feeGrowthAbove0, feeGrowthAbove1 *big.Int
	if !upperOK {
		feeGrowthAbove0, feeGrowthAbove1 = zero, zero
	} else if tickCurrent < tickUpper {
		feeGrowthAbove0 = upper.FeeGrowthOutside0X128
		feeGrowthAbove1 = upper.FeeGrowthOutside1X128
	} else {
		feeGrowthAbove0 = subWrapping(p.FeeGrowthGlobal0X128, upper.FeeGrowthOutside0X128)
		feeGrowthAbove1 = subWrapping(p.FeeGrowthGlobal1X128, upper.FeeGrowthOutside1X128)
	}

	feeGrowthInside0X128 = subWrapping(subWrapping(p.FeeGrowthGlobal0X128, feeGrowthBelow0), feeGrowthAbove0)
	feeGrowthInside1X128 = subWrapping(subWrapping(p.FeeGrowthGlobal1X128, feeGrowthBelow1), feeGrowthAbove1)
	return
}
