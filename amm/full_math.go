// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import "math/big"

// mulDiv computes floor(a * b / denominator) with a 512-bit intermediate.
func mulDiv(a, b, denominator *big.Int) *big.Int {
	product := new(big.Int).Mul(a, b)
	return product.Div(product, denominator)
}

// mulDivRoundingUp computes ceil(a * b / denominator).
func mulDivRoundingUp(a, b, denominator *big.Int) *big.Int {
	product := new(big.Int).Mul(a, b)
	quotient, remainder := product.DivMod(product, denominator, new(big.Int))
	if remainder.Sign() != 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	return quotient
}

// divRoundingUp computes ceil(a / denominator).
func divRoundingUp(a, denominator *big.Int) *big.Int {
	quotient, remainder := new(big.Int).DivMod(a, denominator, new(big.Int))
	if remainder.Sign() != 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	return quotient
}

// addDelta applies a signed liquidity delta to an unsigned liquidity value,
// checking the uint128 bounds.
func addDelta(x, y *big.Int) (*big.Int, error) {
	z := new(big.Int).Add(x, y)
	if z.Sign() < 0 {
		return nil, ErrLiquidityUnderflow
	}
	if z.Cmp(MaxUint128) > 0 {
		return nil, ErrLiquidityOverflow
	}
	return z, nil
}

// wrapUint256 reduces a value modulo 2^256. Fee growth accumulators wrap on
// overflow rather than erroring; consumers only ever difference them.
func wrapUint256(x *big.Int) *big.Int {
	return x.And(x, maxUint256)
}

// subWrapping computes (a - b) mod 2^256 for accumulator differencing.
func subWrapping(a, b *big.Int) *big.Int {
	diff := new(big.Int).Sub(a, b)
	if diff.Sign() < 0 {
		diff.Add(diff, twoPow256)
	}
	return diff
}

var (
	twoPow256  = new(big.Int).Lsh(big.NewInt(1), 256)
	maxUint256 = new(big.Int).Sub(twoPow256, big.NewInt(1))
)
