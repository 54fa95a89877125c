// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"bytes"
	"fmt"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
)

// Config holds pool manager construction parameters.
type Config struct {
	// Logger receives lifecycle events. Defaults to an info-level logger.
	Logger log.Logger

	// MaxFee caps the fee of created pools, in pips. Zero means FeeMax.
	MaxFee uint24

	// TrustedExtensions may rebook session debt directly through the
	// accountant's UpdateDebt.
	TrustedExtensions []common.Address
}

// PoolManager is the singleton engine. All pools live here, every state
// mutating operation runs inside an accountant session, and token movements
// settle as net debts when the session closes.
type PoolManager struct {
	mu sync.RWMutex

	pools map[[32]byte]*Pool

	accountant *Accountant
	hooks      *HookRegistry
	maxFee     uint24
	log        log.Logger
}

// NewPoolManager creates a pool manager over a token backend.
func NewPoolManager(backend TokenBackend, cfg Config) *PoolManager {
	if cfg.Logger == nil {
		cfg.Logger = log.NewTestLogger(log.InfoLevel)
	}
	if cfg.MaxFee == 0 {
		cfg.MaxFee = FeeMax
	}
	acc := NewAccountant(backend)
	for _, addr := range cfg.TrustedExtensions {
		acc.Trust(addr)
	}
	return &PoolManager{
		pools:      make(map[[32]byte]*Pool),
		accountant: acc,
		hooks:      NewHookRegistry(),
		maxFee:     cfg.MaxFee,
		log:        cfg.Logger,
	}
}

// Accountant exposes the flash-accounting ledger.
func (pm *PoolManager) Accountant() *Accountant {
	return pm.accountant
}

// Hooks exposes the extension registry.
func (pm *PoolManager) Hooks() *HookRegistry {
	return pm.hooks
}

// Lock opens a session and runs fn inside it. All pool operations require
// the session; the session must settle every debt before fn returns.
func (pm *PoolManager) Lock(caller common.Address, fn func(*Session) error) error {
	return pm.accountant.Lock(caller, fn)
}

func (pm *PoolManager) areCurrenciesSorted(c0, c1 Currency) bool {
	return bytes.Compare(c0.Address.Bytes(), c1.Address.Bytes()) < 0
}

func (pm *PoolManager) validateKey(key PoolKey) error {
	if !pm.areCurrenciesSorted(key.Currency0, key.Currency1) {
		return ErrCurrencyNotSorted
	}
	if key.Fee > pm.maxFee {
		return fmt.Errorf("%w: %d", ErrInvalidFee, key.Fee)
	}
	if key.TickSpacing <= 0 || key.TickSpacing > MaxTick {
		return fmt.Errorf("%w: %d", ErrInvalidTickSpacing, key.TickSpacing)
	}
	return nil
}

// Initialize creates a pool at a starting price. Does not require a
// session; no tokens move.
func (pm *PoolManager) Initialize(s *Session, key PoolKey, sqrtPriceX96 *big.Int) (int24, error) {
	if err := pm.validateKey(key); err != nil {
		return 0, err
	}

	poolID := key.ID()

	pm.mu.RLock()
	pool, ok := pm.pools[poolID]
	exists := ok && pool.Slot0.Initialized
	pm.mu.RUnlock()
	if exists {
		return 0, ErrPoolAlreadyInitialized
	}

	// Hooks run outside the pool lock so they may reenter the manager.
	if pm.hooks.Enabled(key.Hooks, HookBeforeInitialize) {
		ext, _ := pm.hooks.Get(key.Hooks)
		if err := ext.BeforeInitialize(s, key, sqrtPriceX96); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrHookRejected, err)
		}
	}

	pm.mu.Lock()
	if pool, ok := pm.pools[poolID]; ok && pool.Slot0.Initialized {
		pm.mu.Unlock()
		return 0, ErrPoolAlreadyInitialized
	}
	created := NewPool(key)
	tick, err := created.Initialize(sqrtPriceX96)
	if err != nil {
		pm.mu.Unlock()
		return 0, err
	}
	pm.pools[poolID] = created
	pm.mu.Unlock()

	if pm.hooks.Enabled(key.Hooks, HookAfterInitialize) {
		ext, _ := pm.hooks.Get(key.Hooks)
		if err := ext.AfterInitialize(s, key, sqrtPriceX96, tick); err != nil {
			pm.mu.Lock()
			delete(pm.pools, poolID)
			pm.mu.Unlock()
			return 0, fmt.Errorf("%w: %v", ErrHookRejected, err)
		}
	}

	pm.log.Info("pool initialized")
	return tick, nil
}

func (pm *PoolManager) getPool(key PoolKey) (*Pool, error) {
	pool, ok := pm.pools[key.ID()]
	if !ok || !pool.Slot0.Initialized {
		return nil, ErrPoolNotInitialized
	}
	return pool, nil
}

// accountDelta books a pool-centric balance delta as session debt.
func (pm *PoolManager) accountDelta(s *Session, key PoolKey, delta BalanceDelta) error {
	if err := pm.accountant.AccountDebt(s, key.Currency0, delta.Amount0); err != nil {
		return err
	}
	return pm.accountant.AccountDebt(s, key.Currency1, delta.Amount1)
}

// Swap executes a swap inside a session. The returned delta is pool
// centric: input owed to the pool positive, output owed to the caller
// negative. Both sides book as session debt.
func (pm *PoolManager) Swap(s *Session, key PoolKey, params SwapParams) (BalanceDelta, error) {
	if _, err := pm.GetPool(key); err != nil {
		return BalanceDelta{}, err
	}

	if pm.hooks.Enabled(key.Hooks, HookBeforeSwap) {
		ext, _ := pm.hooks.Get(key.Hooks)
		if err := ext.BeforeSwap(s, key, params); err != nil {
			return BalanceDelta{}, fmt.Errorf("%w: %v", ErrHookRejected, err)
		}
	}

	pm.mu.Lock()
	pool, err := pm.getPool(key)
	var delta BalanceDelta
	if err == nil {
		delta, err = pool.Swap(params)
	}
	if err == nil {
		err = pm.accountDelta(s, key, delta)
	}
	pm.mu.Unlock()
	if err != nil {
		return BalanceDelta{}, err
	}

	if pm.hooks.Enabled(key.Hooks, HookAfterSwap) {
		ext, _ := pm.hooks.Get(key.Hooks)
		if err := ext.AfterSwap(s, key, params, delta); err != nil {
			return BalanceDelta{}, fmt.Errorf("%w: %v", ErrHookRejected, err)
		}
	}

	pm.log.Debug("swap executed")
	return delta, nil
}

// ModifyLiquidity changes a position's liquidity inside a session. The
// position owner is the session's current authority. Principal amounts book
// as session debt; accrued fees stay on the position until collected.
func (pm *PoolManager) ModifyLiquidity(s *Session, key PoolKey, params ModifyLiquidityParams) (BalanceDelta, error) {
	if _, err := pm.GetPool(key); err != nil {
		return BalanceDelta{}, err
	}

	if pm.hooks.Enabled(key.Hooks, HookBeforeModifyPosition) {
		ext, _ := pm.hooks.Get(key.Hooks)
		if err := ext.BeforeModifyPosition(s, key, params); err != nil {
			return BalanceDelta{}, fmt.Errorf("%w: %v", ErrHookRejected, err)
		}
	}

	pm.mu.Lock()
	pool, err := pm.getPool(key)
	var delta BalanceDelta
	if err == nil {
		delta, _, err = pool.ModifyLiquidity(s.Authorized, params)
	}
	if err == nil {
		err = pm.accountDelta(s, key, delta)
	}
	pm.mu.Unlock()
	if err != nil {
		return BalanceDelta{}, err
	}

	if pm.hooks.Enabled(key.Hooks, HookAfterModifyPosition) {
		ext, _ := pm.hooks.Get(key.Hooks)
		if err := ext.AfterModifyPosition(s, key, params, delta); err != nil {
			return BalanceDelta{}, fmt.Errorf("%w: %v", ErrHookRejected, err)
		}
	}

	pm.log.Debug("liquidity modified")
	return delta, nil
}

// Collect moves up to the requested uncollected fees off a position and
// credits them to the session. Idempotent once the owed balances are empty.
func (pm *PoolManager) Collect(s *Session, key PoolKey, tickLower, tickUpper int24, salt [32]byte, amount0Requested, amount1Requested *big.Int) (BalanceDelta, error) {
	if _, err := pm.GetPool(key); err != nil {
		return BalanceDelta{}, err
	}

	if pm.hooks.Enabled(key.Hooks, HookBeforeCollect) {
		ext, _ := pm.hooks.Get(key.Hooks)
		if err := ext.BeforeCollect(s, key, tickLower, tickUpper); err != nil {
			return BalanceDelta{}, fmt.Errorf("%w: %v", ErrHookRejected, err)
		}
	}

	pm.mu.Lock()
	pool, err := pm.getPool(key)
	var collected BalanceDelta
	if err == nil {
		collected, err = pool.CollectFees(s.Authorized, tickLower, tickUpper, salt, amount0Requested, amount1Requested)
	}
	if err == nil {
		// Collected fees are owed to the caller.
		err = pm.accountDelta(s, key, collected.Negate())
	}
	pm.mu.Unlock()
	if err != nil {
		return BalanceDelta{}, err
	}

	if pm.hooks.Enabled(key.Hooks, HookAfterCollect) {
		ext, _ := pm.hooks.Get(key.Hooks)
		if err := ext.AfterCollect(s, key, tickLower, tickUpper, collected); err != nil {
			return BalanceDelta{}, fmt.Errorf("%w: %v", ErrHookRejected, err)
		}
	}
	return collected, nil
}

// Donate pays tokens directly to a pool's in-range liquidity providers by
// advancing the fee growth accumulators. Requires active liquidity.
func (pm *PoolManager) Donate(s *Session, key PoolKey, amount0, amount1 *big.Int) (BalanceDelta, error) {
	if amount0.Sign() < 0 || amount1.Sign() < 0 {
		return BalanceDelta{}, fmt.Errorf("%w: negative donation", ErrAmountOverflow)
	}

	if _, err := pm.GetPool(key); err != nil {
		return BalanceDelta{}, err
	}

	if pm.hooks.Enabled(key.Hooks, HookBeforeDonate) {
		ext, _ := pm.hooks.Get(key.Hooks)
		if err := ext.BeforeDonate(s, key, amount0, amount1); err != nil {
			return BalanceDelta{}, fmt.Errorf("%w: %v", ErrHookRejected, err)
		}
	}

	pm.mu.Lock()
	pool, err := pm.getPool(key)
	if err != nil {
		pm.mu.Unlock()
		return BalanceDelta{}, err
	}
	if pool.Liquidity.Sign() == 0 {
		pm.mu.Unlock()
		return BalanceDelta{}, ErrNoLiquidity
	}

	if amount0.Sign() > 0 {
		growth := mulDiv(amount0, Q128, pool.Liquidity)
		pool.FeeGrowthGlobal0X128 = wrapUint256(new(big.Int).Add(pool.FeeGrowthGlobal0X128, growth))
	}
	if amount1.Sign() > 0 {
		growth := mulDiv(amount1, Q128, pool.Liquidity)
		pool.FeeGrowthGlobal1X128 = wrapUint256(new(big.Int).Add(pool.FeeGrowthGlobal1X128, growth))
	}

	delta := NewBalanceDelta(amount0, amount1)
	err = pm.accountDelta(s, key, delta)
	pm.mu.Unlock()
	if err != nil {
		return BalanceDelta{}, err
	}

	if pm.hooks.Enabled(key.Hooks, HookAfterDonate) {
		ext, _ := pm.hooks.Get(key.Hooks)
		if err := ext.AfterDonate(s, key, amount0, amount1); err != nil {
			return BalanceDelta{}, fmt.Errorf("%w: %v", ErrHookRejected, err)
		}
	}
	return delta, nil
}

// GetPool returns a pool's state for inspection.
func (pm *PoolManager) GetPool(key PoolKey) (*Pool, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.getPool(key)
}

// GetPosition returns a position for inspection, or nil.
func (pm *PoolManager) GetPosition(key PoolKey, owner common.Address, tickLower, tickUpper int24, salt [32]byte) (*Position, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	pool, err := pm.getPool(key)
	if err != nil {
		return nil, err
	}
	return pool.GetPosition(owner, tickLower, tickUpper, salt), nil
}
