// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// HookFlags is a bitmap of extension call points.
type HookFlags uint16

const (
	HookBeforeInitialize HookFlags = 1 << iota
	HookAfterInitialize
	HookBeforeModifyPosition
	HookAfterModifyPosition
	HookBeforeSwap
	HookAfterSwap
	HookBeforeDonate
	HookAfterDonate
	HookBeforeCollect
	HookAfterCollect
)

// Hook errors
var (
	ErrHookNotRegistered  = errors.New("hook not registered")
	ErrHookInvalidAddress = errors.New("hook address does not match capabilities")
	ErrHookRejected       = errors.New("operation rejected by hook")
)

// Extension receives callbacks around pool operations. An error return
// aborts the operation before state changes; after-hooks observe the
// outcome and may veto it. Extensions run inside the caller's session and
// may accumulate debts of their own through the session they are handed.
type Extension interface {
	// Permissions declares which call points this extension uses. The
	// extension's address prefix must encode the same flags.
	Permissions() HookFlags

	BeforeInitialize(s *Session, key PoolKey, sqrtPriceX96 *big.Int) error
	AfterInitialize(s *Session, key PoolKey, sqrtPriceX96 *big.Int, tick int24) error

	BeforeModifyPosition(s *Session, key PoolKey, params ModifyLiquidityParams) error
	AfterModifyPosition(s *Session, key PoolKey, params ModifyLiquidityParams, delta BalanceDelta) error

	BeforeSwap(s *Session, key PoolKey, params SwapParams) error
	AfterSwap(s *Session, key PoolKey, params SwapParams, delta BalanceDelta) error

	BeforeDonate(s *Session, key PoolKey, amount0, amount1 *big.Int) error
	AfterDonate(s *Session, key PoolKey, amount0, amount1 *big.Int) error

	BeforeCollect(s *Session, key PoolKey, tickLower, tickUpper int24) error
	AfterCollect(s *Session, key PoolKey, tickLower, tickUpper int24, collected BalanceDelta) error
}

// BaseExtension is a no-op Extension for embedding. Override the call
// points you declared; Permissions must still be provided by the embedder.
type BaseExtension struct{}

func (BaseExtension) BeforeInitialize(*Session, PoolKey, *big.Int) error       { return nil }
func (BaseExtension) AfterInitialize(*Session, PoolKey, *big.Int, int24) error { return nil }
func (BaseExtension) BeforeModifyPosition(*Session, PoolKey, ModifyLiquidityParams) error {
	return nil
}
func (BaseExtension) AfterModifyPosition(*Session, PoolKey, ModifyLiquidityParams, BalanceDelta) error {
	return nil
}
func (BaseExtension) BeforeSwap(*Session, PoolKey, SwapParams) error              { return nil }
func (BaseExtension) AfterSwap(*Session, PoolKey, SwapParams, BalanceDelta) error { return nil }
func (BaseExtension) BeforeDonate(*Session, PoolKey, *big.Int, *big.Int) error    { return nil }
func (BaseExtension) AfterDonate(*Session, PoolKey, *big.Int, *big.Int) error     { return nil }
func (BaseExtension) BeforeCollect(*Session, PoolKey, int24, int24) error         { return nil }
func (BaseExtension) AfterCollect(*Session, PoolKey, int24, int24, BalanceDelta) error {
	return nil
}

// HookRegistry maps hook addresses to registered extensions. The leading
// two bytes of a hook address encode its permission flags, so the set of
// call points is visible from the pool key alone.
type HookRegistry struct {
	registered map[common.Address]Extension
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{
		registered: make(map[common.Address]Extension),
	}
}

// AddressFlags extracts the permission flags encoded in a hook address.
func AddressFlags(addr common.Address) HookFlags {
	return HookFlags(binary.BigEndian.Uint16(addr[0:2]))
}

// Register binds an extension to its address. The address prefix must
// encode exactly the extension's declared permissions.
func (hr *HookRegistry) Register(addr common.Address, ext Extension) error {
	if AddressFlags(addr) != ext.Permissions() {
		return ErrHookInvalidAddress
	}
	hr.registered[addr] = ext
	return nil
}

// Get returns the extension registered at an address.
func (hr *HookRegistry) Get(addr common.Address) (Extension, bool) {
	ext, ok := hr.registered[addr]
	return ext, ok
}

// Enabled reports whether a call point is active for a hook address. The
// zero address has no hooks.
func (hr *HookRegistry) Enabled(addr common.Address, flag HookFlags) bool {
	if addr == (common.Address{}) {
		return false
	}
	if _, ok := hr.registered[addr]; !ok {
		return false
	}
	return AddressFlags(addr)&flag != 0
}

// GenerateHookAddress derives a hook address whose prefix encodes the given
// flags. The rest of the address comes from the deployer and salt.
func GenerateHookAddress(deployer common.Address, salt [32]byte, flags HookFlags) common.Address {
	h := blake3.New()
	h.Write(deployer.Bytes())
	h.Write(salt[:])

	var hash [32]byte
	h.Digest().Read(hash[:])

	var addr common.Address
	copy(addr[:], hash[12:32])
	binary.BigEndian.PutUint16(addr[0:2], uint16(flags))
	return addr
}
