// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import "math/big"

var feeDenominator = big.NewInt(1_000_000)

// computeSwapStep executes one step of a swap within a single tick range.
// It returns the next sqrt price, the input and output amounts for the step,
// and the fee charged on the input. amountRemaining is signed: positive is
// exact input (fee-inclusive), negative is exact output.
func computeSwapStep(
	sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, amountRemaining *big.Int,
	feePips uint24,
) (sqrtRatioNextX96, amountIn, amountOut, feeAmount *big.Int, err error) {
	zeroForOne := sqrtRatioCurrentX96.Cmp(sqrtRatioTargetX96) >= 0
	exactIn := amountRemaining.Sign() >= 0

	feePipsBig := new(big.Int).SetUint64(uint64(feePips))
	feeComplement := new(big.Int).Sub(feeDenominator, feePipsBig)

	amountIn = big.NewInt(0)
	amountOut = big.NewInt(0)
	feeAmount = big.NewInt(0)

	var amountRemainingAbs *big.Int
	if exactIn {
		amountRemainingLessFee := mulDiv(amountRemaining, feeComplement, feeDenominator)

		if zeroForOne {
			amountIn = getAmount0Delta(sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, true)
		} else {
			amountIn = getAmount1Delta(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, true)
		}

		if amountRemainingLessFee.Cmp(amountIn) >= 0 {
			sqrtRatioNextX96 = new(big.Int).Set(sqrtRatioTargetX96)
		} else {
			sqrtRatioNextX96, err = getNextSqrtPriceFromInput(sqrtRatioCurrentX96, liquidity, amountRemainingLessFee, zeroForOne)
			if err != nil {
				return nil, nil, nil, nil, err
			}
		}
	} else {
		amountRemainingAbs = new(big.Int).Neg(amountRemaining)

		if zeroForOne {
			amountOut = getAmount1Delta(sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, false)
		} else {
			amountOut = getAmount0Delta(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, false)
		}

		if amountRemainingAbs.Cmp(amountOut) >= 0 {
			sqrtRatioNextX96 = new(big.Int).Set(sqrtRatioTargetX96)
		} else {
			sqrtRatioNextX96, err = getNextSqrtPriceFromOutput(sqrtRatioCurrentX96, liquidity, amountRemainingAbs, zeroForOne)
			if err != nil {
				return nil, nil, nil, nil, err
			}
		}
	}

	max := sqrtRatioTargetX96.Cmp(sqrtRatioNextX96) == 0

	// Recalculate amounts against the actual price reached.
	if zeroForOne {
		if !(max && exactIn) {
			amountIn = getAmount0Delta(sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, true)
		}
		if !(max && !exactIn) {
			amountOut = getAmount1Delta(sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, false)
		}
	} else {
		if !(max && exactIn) {
			amountIn = getAmount1Delta(sqrtRatioCurrentX96, sqrtRatioNextX96, liquidity, true)
		}
		if !(max && !exactIn) {
			amountOut = getAmount0Delta(sqrtRatioCurrentX96, sqrtRatioNextX96, liquidity, false)
		}
	}

	// Exact output never produces more than requested.
	if !exactIn && amountOut.Cmp(amountRemainingAbs) > 0 {
		amountOut.Set(amountRemainingAbs)
	}

	if exactIn && sqrtRatioNextX96.Cmp(sqrtRatioTargetX96) != 0 {
		// Target not reached: the whole remainder beyond amountIn is fee.
		feeAmount = new(big.Int).Sub(amountRemaining, amountIn)
	} else {
		feeAmount = mulDivRoundingUp(amountIn, feePipsBig, feeComplement)
	}

	return sqrtRatioNextX96, amountIn, amountOut, feeAmount, nil
}
