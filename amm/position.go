// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"math/big"

	"github.com/luxfi/geth/common"
)

// Position is a liquidity position in a tick range. Fees owed accumulate
// against the stored fee growth snapshots until collected.
type Position struct {
	Owner     common.Address
	TickLower int24
	TickUpper int24
	Salt      [32]byte

	Liquidity *big.Int

	// Fee growth inside the range as of the last liquidity update.
	FeeGrowthInside0LastX128 *big.Int
	FeeGrowthInside1LastX128 *big.Int

	// Uncollected fees in token units.
	TokensOwed0 *big.Int
	TokensOwed1 *big.Int
}

func newPosition(owner common.Address, tickLower, tickUpper int24, salt [32]byte) *Position {
	return &Position{
		Owner:                    owner,
		TickLower:                tickLower,
		TickUpper:                tickUpper,
		Salt:                     salt,
		Liquidity:                big.NewInt(0),
		FeeGrowthInside0LastX128: big.NewInt(0),
		FeeGrowthInside1LastX128: big.NewInt(0),
		TokensOwed0:              big.NewInt(0),
		TokensOwed1:              big.NewInt(0),
	}
}

type positionParams struct {
	owner          common.Address
	tickLower      int24
	tickUpper      int24
	liquidityDelta *big.Int
	salt           [32]byte
}

// GetPosition returns a position by its key tuple, or nil if never created.
func (p *Pool) GetPosition(owner common.Address, tickLower, tickUpper int24, salt [32]byte) *Position {
	id := PositionID(p.Key.ID(), owner, tickLower, tickUpper, salt)
	return p.positions[id]
}

// updatePosition applies a liquidity delta to the position and both tick
// boundaries, settling accrued fees into TokensOwed first. Returns the fees
// accrued by this touch.
func (p *Pool) updatePosition(params positionParams) (feesAccrued BalanceDelta, err error) {
	poolID := p.Key.ID()
	id := PositionID(poolID, params.owner, params.tickLower, params.tickUpper, params.salt)
	position := p.positions[id]
	if position == nil {
		position = newPosition(params.owner, params.tickLower, params.tickUpper, params.salt)
		p.positions[id] = position
	}

	var flippedLower, flippedUpper bool
	if params.liquidityDelta.Sign() != 0 {
		flippedLower, err = p.updateTick(params.tickLower, params.liquidityDelta, false)
		if err != nil {
			return feesAccrued, err
		}
		flippedUpper, err = p.updateTick(params.tickUpper, params.liquidityDelta, true)
		if err != nil {
			// Roll back the lower tick update.
			if _, rbErr := p.updateTick(params.tickLower, new(big.Int).Neg(params.liquidityDelta), false); rbErr == nil && flippedLower {
				p.bitmap.flipTick(params.tickLower, p.Key.TickSpacing)
				p.clearTick(params.tickLower)
			}
			return feesAccrued, err
		}

		if flippedLower {
			p.bitmap.flipTick(params.tickLower, p.Key.TickSpacing)
		}
		if flippedUpper {
			p.bitmap.flipTick(params.tickUpper, p.Key.TickSpacing)
		}
	}

	feeGrowthInside0, feeGrowthInside1 := p.getFeeGrowthInside(
		params.tickLower, params.tickUpper, p.Slot0.Tick)

	// Settle accrued fees into the owed balances before changing liquidity.
	fees0 := mulDiv(subWrapping(feeGrowthInside0, position.FeeGrowthInside0LastX128), position.Liquidity, Q128)
	fees1 := mulDiv(subWrapping(feeGrowthInside1, position.FeeGrowthInside1LastX128), position.Liquidity, Q128)

	newLiquidity, err := addDelta(position.Liquidity, params.liquidityDelta)
	if err != nil {
		return feesAccrued, err
	}
	position.Liquidity = newLiquidity
	position.FeeGrowthInside0LastX128 = feeGrowthInside0
	position.FeeGrowthInside1LastX128 = feeGrowthInside1
	position.TokensOwed0 = new(big.Int).Add(position.TokensOwed0, fees0)
	position.TokensOwed1 = new(big.Int).Add(position.TokensOwed1, fees1)

	// Reclaim tick storage when removal empties a boundary.
	if params.liquidityDelta.Sign() < 0 {
		if flippedLower {
			p.clearTick(params.tickLower)
		}
		if flippedUpper {
			p.clearTick(params.tickUpper)
		}
	}

	feesAccrued = BalanceDelta{Amount0: fees0, Amount1: fees1}
	return feesAccrued, nil
}

// CollectFees transfers up to the requested amounts of uncollected fees out
// of a position. Fees accrued since the last touch are settled against the
// position's fee growth snapshots first, so no separate poke is needed.
// Zero-value amount pointers collect nothing for that side; amounts above
// what is owed collect everything owed. Idempotent once owed balances reach
// zero.
func (p *Pool) CollectFees(owner common.Address, tickLower, tickUpper int24, salt [32]byte, amount0Requested, amount1Requested *big.Int) (BalanceDelta, error) {
	position := p.GetPosition(owner, tickLower, tickUpper, salt)
	if position == nil {
		return ZeroBalanceDelta(), nil
	}

	// Zero-delta position update advances the snapshots into TokensOwed.
	if _, err := p.updatePosition(positionParams{
		owner:          owner,
		tickLower:      tickLower,
		tickUpper:      tickUpper,
		liquidityDelta: big.NewInt(0),
		salt:           salt,
	}); err != nil {
		return ZeroBalanceDelta(), err
	}

	collect0 := new(big.Int).Set(amount0Requested)
	if collect0.Cmp(position.TokensOwed0) > 0 {
		collect0.Set(position.TokensOwed0)
	}
	collect1 := new(big.Int).Set(amount1Requested)
	if collect1.Cmp(position.TokensOwed1) > 0 {
		collect1.Set(position.TokensOwed1)
	}

	position.TokensOwed0 = new(big.Int).Sub(position.TokensOwed0, collect0)
	position.TokensOwed1 = new(big.Int).Sub(position.TokensOwed1, collect1)

	return BalanceDelta{Amount0: collect0, Amount1: collect1}, nil
}
