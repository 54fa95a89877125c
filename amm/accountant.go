// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
)

// TokenBackend moves and reports real token balances for the accountant's
// escrow. Engine debts are virtual until settled against the backend.
type TokenBackend interface {
	// BalanceOf returns the escrowed balance of a currency.
	BalanceOf(currency Currency) *big.Int

	// Transfer sends escrowed tokens to a recipient.
	Transfer(currency Currency, to common.Address, amount *big.Int) error
}

// Session is an open flash-accounting context. Holding the session grants
// the right to accumulate debts against it; the session can only close once
// every debt is zero.
type Session struct {
	ID         uint64
	Authorized common.Address

	acc *Accountant
}

// Accountant tracks signed per-session, per-currency debts. Positive debt
// is owed to the core, negative is owed to the session holder. Sessions
// nest as a stack; each session's debts are isolated.
type Accountant struct {
	mu sync.Mutex

	backend TokenBackend

	// sessions is the active session stack, innermost last.
	sessions []*Session
	nextID   uint64

	// debts[sessionID][currency] is the signed outstanding debt.
	debts map[uint64]map[Currency]*big.Int

	// nonzero[sessionID] counts currencies with nonzero debt, so the
	// zero-debt close check is constant time.
	nonzero map[uint64]int

	// savedBalances is the last recorded escrow balance per currency,
	// used to measure payments.
	savedBalances map[Currency]*big.Int

	// trusted holds authorities allowed to rebook debt directly via
	// UpdateDebt.
	trusted map[common.Address]bool
}

// NewAccountant creates an accountant over a token backend.
func NewAccountant(backend TokenBackend) *Accountant {
	return &Accountant{
		backend:       backend,
		debts:         make(map[uint64]map[Currency]*big.Int),
		nonzero:       make(map[uint64]int),
		savedBalances: make(map[Currency]*big.Int),
		trusted:       make(map[common.Address]bool),
	}
}

// Trust registers an authority that may rebook debt via UpdateDebt.
func (a *Accountant) Trust(addr common.Address) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.trusted[addr] = true
}

// Lock opens a session for caller and runs fn inside it. The session closes
// when fn returns; if any debt is nonzero at that point, Lock fails with
// ErrDebtsNotSettled. Sessions nest: fn may call Lock again and the inner
// session must settle before the outer one resumes.
func (a *Accountant) Lock(caller common.Address, fn func(*Session) error) error {
	a.mu.Lock()
	a.nextID++
	session := &Session{ID: a.nextID, Authorized: caller, acc: a}
	a.sessions = append(a.sessions, session)
	a.debts[session.ID] = make(map[Currency]*big.Int)
	a.nonzero[session.ID] = 0
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.sessions = a.sessions[:len(a.sessions)-1]
		delete(a.debts, session.ID)
		delete(a.nonzero, session.ID)
		a.mu.Unlock()
	}()

	if err := fn(session); err != nil {
		return err
	}

	a.mu.Lock()
	outstanding := a.nonzero[session.ID]
	a.mu.Unlock()
	if outstanding != 0 {
		return fmt.Errorf("%w: %d currencies outstanding", ErrDebtsNotSettled, outstanding)
	}
	return nil
}

// current returns the innermost active session.
func (a *Accountant) current() *Session {
	if len(a.sessions) == 0 {
		return nil
	}
	return a.sessions[len(a.sessions)-1]
}

// checkSession validates that s is the innermost active session.
func (a *Accountant) checkSession(s *Session) error {
	cur := a.current()
	if cur == nil {
		return ErrNoActiveSession
	}
	if cur.ID != s.ID {
		return fmt.Errorf("%w: session %d is not innermost", ErrUnauthorized, s.ID)
	}
	return nil
}

// AccountDebt applies a signed delta to a session's debt in a currency.
// Maintains the nonzero-debt count and enforces int128 debt bounds.
func (a *Accountant) AccountDebt(s *Session, currency Currency, delta *big.Int) error {
	if delta.Sign() == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkSession(s); err != nil {
		return err
	}
	return a.accountDebtLocked(s.ID, currency, delta)
}

func (a *Accountant) accountDebtLocked(sessionID uint64, currency Currency, delta *big.Int) error {
	debts := a.debts[sessionID]
	current, ok := debts[currency]
	if !ok {
		current = big.NewInt(0)
	}
	next := new(big.Int).Add(current, delta)
	if next.Cmp(MaxInt128) > 0 || next.Cmp(MinInt128) < 0 {
		return fmt.Errorf("%w: currency=%s debt=%s", ErrDebtOverflow, currency.Address.Hex(), next)
	}

	wasZero := current.Sign() == 0
	isZero := next.Sign() == 0
	if wasZero && !isZero {
		a.nonzero[sessionID]++
	} else if !wasZero && isZero {
		a.nonzero[sessionID]--
	}
	debts[currency] = next
	return nil
}

// Debt returns a copy of the session's outstanding debt in a currency.
func (a *Accountant) Debt(s *Session, currency Currency) *big.Int {
	a.mu.Lock()
	defer a.mu.Unlock()
	debts, ok := a.debts[s.ID]
	if !ok {
		return big.NewInt(0)
	}
	debt, ok := debts[currency]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(debt)
}

// Pay credits the session for tokens transferred into escrow since the last
// recorded balance. The credit is the measured balance increase; a payment
// that moved no tokens silently credits zero. Returns the credited amount.
func (a *Accountant) Pay(s *Session, currency Currency) (*big.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkSession(s); err != nil {
		return nil, err
	}

	balance := a.backend.BalanceOf(currency)
	saved, ok := a.savedBalances[currency]
	if !ok {
		saved = big.NewInt(0)
	}

	credit := new(big.Int).Sub(balance, saved)
	if credit.Sign() < 0 {
		credit.SetInt64(0)
	}
	a.savedBalances[currency] = new(big.Int).Set(balance)

	if credit.Sign() > 0 {
		if err := a.accountDebtLocked(s.ID, currency, new(big.Int).Neg(credit)); err != nil {
			return nil, err
		}
	}
	return credit, nil
}

// Withdraw sends escrowed tokens to a recipient and records the amount as
// session debt. Flash borrowing is Withdraw followed by Pay in the same
// session.
func (a *Accountant) Withdraw(s *Session, currency Currency, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: negative withdraw %s", ErrAmountOverflow, amount)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkSession(s); err != nil {
		return err
	}

	saved, ok := a.savedBalances[currency]
	if !ok {
		saved = big.NewInt(0)
	}
	if saved.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, want %s", ErrInsufficientEscrow, saved, amount)
	}

	if err := a.accountDebtLocked(s.ID, currency, amount); err != nil {
		return err
	}
	if err := a.backend.Transfer(currency, to, amount); err != nil {
		// Roll back the debt on transfer failure.
		_ = a.accountDebtLocked(s.ID, currency, new(big.Int).Neg(amount))
		return err
	}
	a.savedBalances[currency] = new(big.Int).Sub(saved, amount)
	return nil
}

// Forward runs fn with the session's authority substituted to target. The
// original authority is restored when fn returns, error or not. Used by
// routers and extensions acting on behalf of another address.
func (a *Accountant) Forward(s *Session, target common.Address, fn func(*Session) error) error {
	a.mu.Lock()
	if err := a.checkSession(s); err != nil {
		a.mu.Unlock()
		return err
	}
	original := s.Authorized
	s.Authorized = target
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		s.Authorized = original
		a.mu.Unlock()
	}()
	return fn(s)
}

// UpdateDebt rebooks debt against the session without moving tokens. Only
// authorities registered with Trust may call it; plain callers settle
// through Pay and Withdraw.
func (a *Accountant) UpdateDebt(s *Session, currency Currency, delta *big.Int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkSession(s); err != nil {
		return err
	}
	if !a.trusted[s.Authorized] {
		return fmt.Errorf("%w: %s may not rebook debt", ErrUnauthorized, s.Authorized.Hex())
	}
	return a.accountDebtLocked(s.ID, currency, delta)
}

// SyncBalance re-reads the escrow balance for a currency without crediting
// anyone. Used after external transfers that are not payments.
func (a *Accountant) SyncBalance(currency Currency) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.savedBalances[currency] = new(big.Int).Set(a.backend.BalanceOf(currency))
}
