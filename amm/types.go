// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package amm implements a singleton concentrated-liquidity AMM engine with
// flash accounting. All pools live in a single PoolManager, token movements
// inside a session are tracked as signed per-currency debts, and a session
// may only close once every debt nets to exactly zero.
package amm

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Pool fee tiers (hundredths of a basis point, ppm denominator)
const (
	Fee001 uint24 = 100    // 0.01% - stablecoins
	Fee005 uint24 = 500    // 0.05% - stable pairs
	Fee030 uint24 = 3000   // 0.30% - standard
	Fee100 uint24 = 10000  // 1.00% - exotic pairs
	FeeMax uint24 = 100000 // 10% max fee
)

// Tick spacing for the standard fee tiers
const (
	TickSpacing001 int24 = 1
	TickSpacing005 int24 = 10
	TickSpacing030 int24 = 60
	TickSpacing100 int24 = 200
)

// uint24 type alias for fees
type uint24 = uint32

// int24 type alias for ticks
type int24 = int32

// Currency represents a token. Address(0) is the native token.
type Currency struct {
	Address common.Address
}

// NativeCurrency is the native token (no wrapping needed).
var NativeCurrency = Currency{Address: common.Address{}}

// IsNative returns true if this currency is the native token.
func (c Currency) IsNative() bool {
	return c.Address == common.Address{}
}

// ToBytes serializes the currency for hashing and storage.
func (c Currency) ToBytes() []byte {
	return c.Address.Bytes()
}

// CurrencyFromBytes deserializes a currency.
func CurrencyFromBytes(data []byte) Currency {
	return Currency{Address: common.BytesToAddress(data)}
}

// PoolKey uniquely identifies a pool.
// Currencies must be sorted by address (currency0 < currency1); the key is
// immutable once the pool exists.
type PoolKey struct {
	Currency0   Currency       // Lower address token
	Currency1   Currency       // Higher address token
	Fee         uint24         // Fee in ppm
	TickSpacing int24          // Tick spacing for concentrated liquidity
	Hooks       common.Address // Hook contract address (zero = no hooks)
}

// ID computes the deterministic pool identifier.
func (pk PoolKey) ID() [32]byte {
	h := blake3.New()
	h.Write(pk.Currency0.ToBytes())
	h.Write(pk.Currency1.ToBytes())

	var feeBytes [4]byte
	binary.BigEndian.PutUint32(feeBytes[:], uint32(pk.Fee))
	h.Write(feeBytes[1:]) // uint24

	var tickBytes [4]byte
	binary.BigEndian.PutUint32(tickBytes[:], uint32(pk.TickSpacing))
	h.Write(tickBytes[1:]) // int24

	h.Write(pk.Hooks.Bytes())

	var id [32]byte
	h.Digest().Read(id[:])
	return id
}

// PositionID computes the deterministic position identifier for a
// (pool, owner, range, salt) tuple. There is no secondary index; all
// position lookups are direct content-addressed access.
func PositionID(poolID [32]byte, owner common.Address, tickLower, tickUpper int24, salt [32]byte) [32]byte {
	h := blake3.New()
	h.Write(poolID[:])
	h.Write(owner.Bytes())

	var tickBytes [8]byte
	binary.BigEndian.PutUint32(tickBytes[:4], uint32(tickLower))
	binary.BigEndian.PutUint32(tickBytes[4:], uint32(tickUpper))
	h.Write(tickBytes[:])
	h.Write(salt[:])

	var id [32]byte
	h.Digest().Read(id[:])
	return id
}

// BalanceDelta is the net token change of an operation.
// Positive = owed to the pool, negative = owed to the caller.
type BalanceDelta struct {
	Amount0 *big.Int
	Amount1 *big.Int
}

// NewBalanceDelta creates a balance delta from copies of the amounts.
func NewBalanceDelta(amount0, amount1 *big.Int) BalanceDelta {
	return BalanceDelta{
		Amount0: new(big.Int).Set(amount0),
		Amount1: new(big.Int).Set(amount1),
	}
}

// ZeroBalanceDelta returns a zero balance delta.
func ZeroBalanceDelta() BalanceDelta {
	return BalanceDelta{
		Amount0: big.NewInt(0),
		Amount1: big.NewInt(0),
	}
}

// Add combines two balance deltas.
func (bd BalanceDelta) Add(other BalanceDelta) BalanceDelta {
	return BalanceDelta{
		Amount0: new(big.Int).Add(bd.Amount0, other.Amount0),
		Amount1: new(big.Int).Add(bd.Amount1, other.Amount1),
	}
}

// Negate inverts the balance delta signs.
func (bd BalanceDelta) Negate() BalanceDelta {
	return BalanceDelta{
		Amount0: new(big.Int).Neg(bd.Amount0),
		Amount1: new(big.Int).Neg(bd.Amount1),
	}
}

// IsZero returns true if both amounts are zero.
func (bd BalanceDelta) IsZero() bool {
	return bd.Amount0.Sign() == 0 && bd.Amount1.Sign() == 0
}

// SwapParams contains the parameters for a swap.
type SwapParams struct {
	ZeroForOne        bool     // true = swap currency0 for currency1
	AmountSpecified   *big.Int // Positive = exact input, negative = exact output
	SqrtPriceLimitX96 *big.Int // Price limit (sqrt(price) * 2^96); nil = direction default
}

// ModifyLiquidityParams contains the parameters for adding/removing liquidity.
type ModifyLiquidityParams struct {
	TickLower      int24
	TickUpper      int24
	LiquidityDelta *big.Int // Positive = add, negative = remove
	Salt           [32]byte // Position salt for uniqueness
}

// Errors - input preconditions
var (
	ErrPoolNotInitialized     = errors.New("pool not initialized")
	ErrPoolAlreadyInitialized = errors.New("pool already initialized")
	ErrCurrencyNotSorted      = errors.New("currencies not sorted")
	ErrInvalidFee             = errors.New("invalid fee")
	ErrInvalidTickSpacing     = errors.New("invalid tick spacing")
	ErrInvalidTickRange       = errors.New("invalid tick range")
	ErrTickOutOfRange         = errors.New("tick out of range")
	ErrInvalidSqrtPrice       = errors.New("invalid sqrt price")
	ErrInvalidPriceLimit      = errors.New("invalid price limit")
	ErrNoLiquidity            = errors.New("no liquidity in pool")
)

// Errors - arithmetic bounds. These tag a request as fundamentally too
// large, as opposed to a transient failure.
var (
	ErrAmountOverflow     = errors.New("amount overflow")
	ErrPriceOverflow      = errors.New("sqrt price overflow")
	ErrLiquidityOverflow  = errors.New("liquidity overflow")
	ErrLiquidityUnderflow = errors.New("liquidity underflow")
	ErrTickLiquidityCap   = errors.New("per-tick liquidity cap exceeded")
	ErrDebtOverflow       = errors.New("session debt overflow")
)

// Errors - invariants and sessions
var (
	ErrNoActiveSession    = errors.New("no active session")
	ErrDebtsNotSettled    = errors.New("session debts not settled")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInsufficientEscrow = errors.New("insufficient escrowed balance")
)

// Math constants
var (
	Q96  = new(big.Int).Lsh(big.NewInt(1), 96)
	Q128 = new(big.Int).Lsh(big.NewInt(1), 128)

	// MaxUint128 bounds every liquidity quantity; liquidity is a 128-bit
	// field even though it is carried in a big.Int.
	MaxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

	// MaxUint160 bounds sqrt prices (Q64.96 in a 160-bit field).
	MaxUint160 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 160), big.NewInt(1))

	// MaxInt128/MinInt128 bound signed per-session debts.
	MaxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	MinInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// Tick bounds. price = 1.0001^tick, sqrtPrice in [MinSqrtRatio, MaxSqrtRatio].
const (
	MinTick int24 = -887272
	MaxTick int24 = 887272
)

var (
	MinSqrtRatio    = new(big.Int).SetUint64(4295128739)
	MaxSqrtRatio, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)
)
