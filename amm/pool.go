// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"
)

// Slot0 is the pool's hot state.
type Slot0 struct {
	SqrtPriceX96 *big.Int
	Tick         int24
	Initialized  bool
}

// Pool is the full state of a single concentrated-liquidity pool.
type Pool struct {
	Key PoolKey

	Slot0     Slot0
	Liquidity *big.Int // Active in-range liquidity

	FeeGrowthGlobal0X128 *big.Int
	FeeGrowthGlobal1X128 *big.Int

	ticks     map[int24]*TickInfo
	bitmap    tickBitmap
	positions map[[32]byte]*Position

	maxLiquidityPerTick *big.Int
}

// NewPool creates an uninitialized pool for a key.
func NewPool(key PoolKey) *Pool {
	return &Pool{
		Key:                  key,
		Liquidity:            big.NewInt(0),
		FeeGrowthGlobal0X128: big.NewInt(0),
		FeeGrowthGlobal1X128: big.NewInt(0),
		ticks:                make(map[int24]*TickInfo),
		bitmap:               make(tickBitmap),
		positions:            make(map[[32]byte]*Position),
		maxLiquidityPerTick:  tickSpacingToMaxLiquidityPerTick(key.TickSpacing),
	}
}

// Initialize sets the pool's starting price. One-shot per pool.
func (p *Pool) Initialize(sqrtPriceX96 *big.Int) (int24, error) {
	if p.Slot0.Initialized {
		return 0, ErrPoolAlreadyInitialized
	}
	if sqrtPriceX96.Cmp(MinSqrtRatio) < 0 || sqrtPriceX96.Cmp(MaxSqrtRatio) >= 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidSqrtPrice, sqrtPriceX96)
	}
	tick, err := GetTickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return 0, err
	}
	p.Slot0 = Slot0{
		SqrtPriceX96: new(big.Int).Set(sqrtPriceX96),
		Tick:         tick,
		Initialized:  true,
	}
	return tick, nil
}

func (p *Pool) checkTicks(tickLower, tickUpper int24) error {
	if tickLower >= tickUpper {
		return fmt.Errorf("%w: lower %d >= upper %d", ErrInvalidTickRange, tickLower, tickUpper)
	}
	if tickLower < MinTick || tickUpper > MaxTick {
		return fmt.Errorf("%w: [%d, %d]", ErrTickOutOfRange, tickLower, tickUpper)
	}
	if tickLower%p.Key.TickSpacing != 0 || tickUpper%p.Key.TickSpacing != 0 {
		return fmt.Errorf("%w: ticks [%d, %d] not multiples of %d",
			ErrInvalidTickRange, tickLower, tickUpper, p.Key.TickSpacing)
	}
	return nil
}

// ModifyPosition applies a liquidity delta to a position and returns the
// token amounts it moves. Positive amounts are owed to the pool, negative
// to the owner. feesOwed carries the fees accrued since the last touch.
func (p *Pool) ModifyPosition(params positionParams) (delta BalanceDelta, feesOwed BalanceDelta, err error) {
	if !p.Slot0.Initialized {
		return delta, feesOwed, ErrPoolNotInitialized
	}
	if err := p.checkTicks(params.tickLower, params.tickUpper); err != nil {
		return delta, feesOwed, err
	}

	feesOwed, err = p.updatePosition(params)
	if err != nil {
		return delta, feesOwed, err
	}

	delta = ZeroBalanceDelta()
	if params.liquidityDelta.Sign() != 0 {
		sqrtLower, err := GetSqrtRatioAtTick(params.tickLower)
		if err != nil {
			return delta, feesOwed, err
		}
		sqrtUpper, err := GetSqrtRatioAtTick(params.tickUpper)
		if err != nil {
			return delta, feesOwed, err
		}

		adding := params.liquidityDelta.Sign() > 0
		liqAbs := new(big.Int).Abs(params.liquidityDelta)

		switch {
		case p.Slot0.Tick < params.tickLower:
			// Entirely above the current price: all currency0.
			amount0 := getAmount0Delta(sqrtLower, sqrtUpper, liqAbs, adding)
			delta.Amount0 = signAmount(amount0, adding)

		case p.Slot0.Tick < params.tickUpper:
			// Straddles the current price: both currencies, and the
			// active liquidity changes.
			amount0 := getAmount0Delta(p.Slot0.SqrtPriceX96, sqrtUpper, liqAbs, adding)
			amount1 := getAmount1Delta(sqrtLower, p.Slot0.SqrtPriceX96, liqAbs, adding)
			delta.Amount0 = signAmount(amount0, adding)
			delta.Amount1 = signAmount(amount1, adding)

			newLiquidity, err := addDelta(p.Liquidity, params.liquidityDelta)
			if err != nil {
				return delta, feesOwed, err
			}
			p.Liquidity = newLiquidity

		default:
			// Entirely below the current price: all currency1.
			amount1 := getAmount1Delta(sqrtLower, sqrtUpper, liqAbs, adding)
			delta.Amount1 = signAmount(amount1, adding)
		}
	}
	return delta, feesOwed, nil
}

// ModifyLiquidity is the owner-addressed form of ModifyPosition. A nil
// liquidity delta is a poke.
func (p *Pool) ModifyLiquidity(owner common.Address, params ModifyLiquidityParams) (delta BalanceDelta, feesOwed BalanceDelta, err error) {
	liquidityDelta := params.LiquidityDelta
	if liquidityDelta == nil {
		liquidityDelta = big.NewInt(0)
	}
	return p.ModifyPosition(positionParams{
		owner:          owner,
		tickLower:      params.TickLower,
		tickUpper:      params.TickUpper,
		liquidityDelta: liquidityDelta,
		salt:           params.Salt,
	})
}

// signAmount returns amount for deposits, -amount for withdrawals.
func signAmount(amount *big.Int, adding bool) *big.Int {
	if adding {
		return amount
	}
	return amount.Neg(amount)
}

type swapState struct {
	amountSpecifiedRemaining *big.Int
	amountCalculated         *big.Int
	sqrtPriceX96             *big.Int
	tick                     int24
	liquidity                *big.Int
	feeGrowthGlobalX128      *big.Int
}

// Swap executes a swap against the pool. Positive amountSpecified is exact
// input, negative is exact output. Returns the pool-centric balance delta:
// input amounts positive, output amounts negative.
func (p *Pool) Swap(params SwapParams) (BalanceDelta, error) {
	if !p.Slot0.Initialized {
		return BalanceDelta{}, ErrPoolNotInitialized
	}
	if params.AmountSpecified == nil || params.AmountSpecified.Sign() == 0 {
		return ZeroBalanceDelta(), nil
	}

	sqrtPriceLimit := params.SqrtPriceLimitX96
	if sqrtPriceLimit == nil {
		if params.ZeroForOne {
			sqrtPriceLimit = new(big.Int).Add(MinSqrtRatio, big.NewInt(1))
		} else {
			sqrtPriceLimit = new(big.Int).Sub(MaxSqrtRatio, big.NewInt(1))
		}
	}
	if params.ZeroForOne {
		if sqrtPriceLimit.Cmp(p.Slot0.SqrtPriceX96) >= 0 || sqrtPriceLimit.Cmp(MinSqrtRatio) <= 0 {
			return BalanceDelta{}, fmt.Errorf("%w: %s", ErrInvalidPriceLimit, sqrtPriceLimit)
		}
	} else {
		if sqrtPriceLimit.Cmp(p.Slot0.SqrtPriceX96) <= 0 || sqrtPriceLimit.Cmp(MaxSqrtRatio) >= 0 {
			return BalanceDelta{}, fmt.Errorf("%w: %s", ErrInvalidPriceLimit, sqrtPriceLimit)
		}
	}

	exactInput := params.AmountSpecified.Sign() > 0

	var feeGrowthGlobal *big.Int
	if params.ZeroForOne {
		feeGrowthGlobal = p.FeeGrowthGlobal0X128
	} else {
		feeGrowthGlobal = p.FeeGrowthGlobal1X128
	}

	state := swapState{
		amountSpecifiedRemaining: new(big.Int).Set(params.AmountSpecified),
		amountCalculated:         big.NewInt(0),
		sqrtPriceX96:             new(big.Int).Set(p.Slot0.SqrtPriceX96),
		tick:                     p.Slot0.Tick,
		liquidity:                new(big.Int).Set(p.Liquidity),
		feeGrowthGlobalX128:      new(big.Int).Set(feeGrowthGlobal),
	}

	for state.amountSpecifiedRemaining.Sign() != 0 && state.sqrtPriceX96.Cmp(sqrtPriceLimit) != 0 {
		sqrtPriceStart := new(big.Int).Set(state.sqrtPriceX96)

		tickNext, initialized := p.bitmap.nextInitializedTickWithinOneWord(
			state.tick, p.Key.TickSpacing, params.ZeroForOne)
		if tickNext < MinTick {
			tickNext = MinTick
		} else if tickNext > MaxTick {
			tickNext = MaxTick
		}

		sqrtPriceNext, err := GetSqrtRatioAtTick(tickNext)
		if err != nil {
			return BalanceDelta{}, err
		}

		// The step target is the nearer of the next tick and the limit.
		target := sqrtPriceNext
		if params.ZeroForOne {
			if sqrtPriceNext.Cmp(sqrtPriceLimit) < 0 {
				target = sqrtPriceLimit
			}
		} else {
			if sqrtPriceNext.Cmp(sqrtPriceLimit) > 0 {
				target = sqrtPriceLimit
			}
		}

		if state.liquidity.Sign() == 0 {
			// No liquidity here: jump to the target without exchange.
			state.sqrtPriceX96 = new(big.Int).Set(target)
		} else {
			sqrtPriceAfter, amountIn, amountOut, feeAmount, err := computeSwapStep(
				state.sqrtPriceX96, target, state.liquidity,
				state.amountSpecifiedRemaining, p.Key.Fee)
			if err != nil {
				return BalanceDelta{}, err
			}
			state.sqrtPriceX96 = sqrtPriceAfter

			if exactInput {
				consumed := new(big.Int).Add(amountIn, feeAmount)
				state.amountSpecifiedRemaining.Sub(state.amountSpecifiedRemaining, consumed)
				state.amountCalculated.Sub(state.amountCalculated, amountOut)
			} else {
				state.amountSpecifiedRemaining.Add(state.amountSpecifiedRemaining, amountOut)
				state.amountCalculated.Add(state.amountCalculated, new(big.Int).Add(amountIn, feeAmount))
			}

			if feeAmount.Sign() > 0 {
				growth := mulDiv(feeAmount, Q128, state.liquidity)
				state.feeGrowthGlobalX128 = wrapUint256(
					new(big.Int).Add(state.feeGrowthGlobalX128, growth))
			}
		}

		if state.sqrtPriceX96.Cmp(sqrtPriceNext) == 0 {
			if initialized {
				var liquidityNet *big.Int
				if params.ZeroForOne {
					liquidityNet = p.crossTick(tickNext, state.feeGrowthGlobalX128, p.FeeGrowthGlobal1X128)
					liquidityNet = new(big.Int).Neg(liquidityNet)
				} else {
					liquidityNet = p.crossTick(tickNext, p.FeeGrowthGlobal0X128, state.feeGrowthGlobalX128)
				}
				newLiquidity, err := addDelta(state.liquidity, liquidityNet)
				if err != nil {
					return BalanceDelta{}, err
				}
				state.liquidity = newLiquidity
			}
			if params.ZeroForOne {
				state.tick = tickNext - 1
				if state.tick < MinTick {
					state.tick = MinTick
				}
			} else {
				state.tick = tickNext
			}
		} else if state.sqrtPriceX96.Cmp(sqrtPriceStart) != 0 {
			tick, err := GetTickAtSqrtRatio(state.sqrtPriceX96)
			if err != nil {
				return BalanceDelta{}, err
			}
			state.tick = tick
		}
	}

	p.Slot0.SqrtPriceX96 = state.sqrtPriceX96
	p.Slot0.Tick = state.tick
	p.Liquidity = state.liquidity
	if params.ZeroForOne {
		p.FeeGrowthGlobal0X128 = state.feeGrowthGlobalX128
	} else {
		p.FeeGrowthGlobal1X128 = state.feeGrowthGlobalX128
	}

	var amount0, amount1 *big.Int
	if params.ZeroForOne == exactInput {
		amount0 = new(big.Int).Sub(params.AmountSpecified, state.amountSpecifiedRemaining)
		amount1 = state.amountCalculated
	} else {
		amount0 = state.amountCalculated
		amount1 = new(big.Int).Sub(params.AmountSpecified, state.amountSpecifiedRemaining)
	}
	return BalanceDelta{Amount0: amount0, Amount1: amount1}, nil
}
