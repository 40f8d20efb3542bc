// Package ledger provides the in-process asset ledger the engine
// settles against. One Memory instance tracks one asset.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance   = errors.New("ledger: insufficient balance")
	ErrInsufficientAllowance = errors.New("ledger: insufficient allowance")
)

// TransferHook observes completed transfers. It runs after the
// balances moved, so a hook that calls back into the engine sees a
// consistent snapshot.
type TransferHook func(from, to uint64, amount decimal.Decimal)

// Memory is a balance-and-allowance ledger keyed by registry account
// id. All methods are safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	symbol     string
	balances   map[uint64]decimal.Decimal
	allowances map[uint64]map[uint64]decimal.Decimal
	hook       TransferHook
}

// NewMemory returns an empty ledger for the named asset.
func NewMemory(symbol string) *Memory {
	return &Memory{
		symbol:     symbol,
		balances:   make(map[uint64]decimal.Decimal),
		allowances: make(map[uint64]map[uint64]decimal.Decimal),
	}
}

// Symbol returns the asset name this ledger tracks.
func (m *Memory) Symbol() string { return m.symbol }

// SetTransferHook installs the post-transfer observer. Pass nil to
// remove it.
func (m *Memory) SetTransferHook(h TransferHook) {
	m.mu.Lock()
	m.hook = h
	m.mu.Unlock()
}

// Mint credits amount to account out of thin air. Used for genesis
// balances and tests.
func (m *Memory) Mint(account uint64, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("ledger: mint amount %s must be positive", amount)
	}
	m.mu.Lock()
	m.balances[account] = m.balances[account].Add(amount)
	m.mu.Unlock()
	return nil
}

// BalanceOf returns the account's balance, zero for unknown accounts.
func (m *Memory) BalanceOf(account uint64) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[account]
}

// Approve lets spender move up to amount from owner's balance.
func (m *Memory) Approve(owner, spender uint64, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.allowances[owner]
	if row == nil {
		row = make(map[uint64]decimal.Decimal)
		m.allowances[owner] = row
	}
	row[spender] = amount
}

// Allowance returns how much spender may still draw from owner.
func (m *Memory) Allowance(owner, spender uint64) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allowances[owner][spender]
}

// Transfer moves amount from one account to another.
func (m *Memory) Transfer(from, to uint64, amount decimal.Decimal) error {
	m.mu.Lock()
	hook, err := m.move(from, to, amount)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(from, to, amount)
	}
	return nil
}

// TransferFrom moves amount from one account to another on behalf of
// spender, consuming spender's allowance.
func (m *Memory) TransferFrom(spender, from, to uint64, amount decimal.Decimal) error {
	m.mu.Lock()
	if from != spender {
		allowed := m.allowances[from][spender]
		if allowed.Cmp(amount) < 0 {
			m.mu.Unlock()
			return fmt.Errorf("%w: %s of %s from account %d", ErrInsufficientAllowance, amount, m.symbol, from)
		}
		m.allowances[from][spender] = allowed.Sub(amount)
	}
	hook, err := m.move(from, to, amount)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(from, to, amount)
	}
	return nil
}

// move performs the balance update under the caller's lock and hands
// back the hook to run once the lock is released.
func (m *Memory) move(from, to uint64, amount decimal.Decimal) (TransferHook, error) {
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("ledger: transfer amount %s must not be negative", amount)
	}
	bal := m.balances[from]
	if bal.Cmp(amount) < 0 {
		return nil, fmt.Errorf("%w: account %d holds %s %s, needs %s", ErrInsufficientBalance, from, bal, m.symbol, amount)
	}
	m.balances[from] = bal.Sub(amount)
	m.balances[to] = m.balances[to].Add(amount)
	return m.hook, nil
}
