// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import "math/big"

// getNextSqrtPriceFromAmount0RoundingUp returns the price after adding or
// removing amount of currency0. Rounds up so the pool never undercharges.
func getNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amount *big.Int, add bool) (*big.Int, error) {
	if amount.Sign() == 0 {
		return new(big.Int).Set(sqrtPX96), nil
	}
	numerator1 := new(big.Int).Lsh(liquidity, 96)
	product := new(big.Int).Mul(amount, sqrtPX96)

	if add {
		denominator := new(big.Int).Add(numerator1, product)
		return mulDivRoundingUp(numerator1, sqrtPX96, denominator), nil
	}

	if numerator1.Cmp(product) <= 0 {
		return nil, ErrPriceOverflow
	}
	denominator := new(big.Int).Sub(numerator1, product)
	next := mulDivRoundingUp(numerator1, sqrtPX96, denominator)
	if next.Cmp(MaxUint160) > 0 {
		return nil, ErrPriceOverflow
	}
	return next, nil
}

// getNextSqrtPriceFromAmount1RoundingDown returns the price after adding or
// removing amount of currency1. Rounds down so the pool never undercharges.
func getNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amount *big.Int, add bool) (*big.Int, error) {
	if add {
		quotient := mulDiv(amount, Q96, liquidity)
		next := new(big.Int).Add(sqrtPX96, quotient)
		if next.Cmp(MaxUint160) > 0 {
			return nil, ErrPriceOverflow
		}
		return next, nil
	}
	quotient := mulDivRoundingUp(amount, Q96, liquidity)
	if sqrtPX96.Cmp(quotient) <= 0 {
		return nil, ErrPriceOverflow
	}
	return new(big.Int).Sub(sqrtPX96, quotient), nil
}

// getNextSqrtPriceFromInput returns the price after consuming amountIn.
func getNextSqrtPriceFromInput(sqrtPX96, liquidity, amountIn *big.Int, zeroForOne bool) (*big.Int, error) {
	if sqrtPX96.Sign() <= 0 {
		return nil, ErrInvalidSqrtPrice
	}
	if liquidity.Sign() <= 0 {
		return nil, ErrNoLiquidity
	}
	if zeroForOne {
		return getNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amountIn, true)
	}
	return getNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amountIn, true)
}

// getNextSqrtPriceFromOutput returns the price after producing amountOut.
func getNextSqrtPriceFromOutput(sqrtPX96, liquidity, amountOut *big.Int, zeroForOne bool) (*big.Int, error) {
	if sqrtPX96.Sign() <= 0 {
		return nil, ErrInvalidSqrtPrice
	}
	if liquidity.Sign() <= 0 {
		return nil, ErrNoLiquidity
	}
	if zeroForOne {
		return getNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amountOut, false)
	}
	return getNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amountOut, false)
}

// getAmount0Delta returns the currency0 amount covered by liquidity between
// two sqrt prices: L * 2^96 * (sqrtB - sqrtA) / (sqrtB * sqrtA).
func getAmount0Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int, roundUp bool) *big.Int {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	numerator1 := new(big.Int).Lsh(liquidity, 96)
	numerator2 := new(big.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)

	if roundUp {
		return divRoundingUp(mulDivRoundingUp(numerator1, numerator2, sqrtRatioBX96), sqrtRatioAX96)
	}
	term := mulDiv(numerator1, numerator2, sqrtRatioBX96)
	return term.Div(term, sqrtRatioAX96)
}

// getAmount1Delta returns the currency1 amount covered by liquidity between
// two sqrt prices: L * (sqrtB - sqrtA) / 2^96.
func getAmount1Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int, roundUp bool) *big.Int {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	diff := new(big.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)
	if roundUp {
		return mulDivRoundingUp(liquidity, diff, Q96)
	}
	return mulDiv(liquidity, diff, Q96)
}
