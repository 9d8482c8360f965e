// Package ledger provides in-memory reference implementations of the two
// external collaborators the boards settle against: a fungible settlement
// token with ERC20-style allowances and a unique-asset registry with
// ERC721-style approvals. The node binary and the tests run against these;
// production deployments substitute real ledger backends behind the same
// interfaces. Both implementations optionally write through to a store so a
// restarted node resumes with the balances and ownership its restored order
// records reference.
package ledger

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmarket-labs/boards/pkg/market"
)

// AllowanceKey identifies one owner → spender approval.
type AllowanceKey struct {
	Owner   common.Address
	Spender common.Address
}

// TokenStore persists token state. Each call carries the entries one
// operation touched and must commit them atomically.
type TokenStore interface {
	PutTokenEntries(balances map[common.Address]int64, allowances map[AllowanceKey]int64) error
}

// Token is an in-memory fungible ledger. Balances are integer token units;
// spending on behalf of another account requires a prior Approve.
type Token struct {
	mu         sync.RWMutex
	balances   map[common.Address]int64
	allowances map[common.Address]map[common.Address]int64 // owner → spender → amount
	store      TokenStore
}

// TokenOption configures optional collaborators at construction.
type TokenOption func(*Token)

// WithTokenStore attaches a persistence layer; every committed mutation is
// written through before it applies in memory.
func WithTokenStore(store TokenStore) TokenOption {
	return func(t *Token) { t.store = store }
}

// NewToken creates a ledger and mints the initial supply to the treasury
// account. A node resuming from persisted state passes zero supply and calls
// Restore instead.
func NewToken(treasury common.Address, initialSupply int64, opts ...TokenOption) *Token {
	t := &Token{
		balances:   make(map[common.Address]int64),
		allowances: make(map[common.Address]map[common.Address]int64),
	}
	for _, opt := range opts {
		opt(t)
	}
	if initialSupply > 0 {
		t.balances[treasury] = initialSupply
	}
	return t
}

// Restore loads previously persisted state into the ledger. Called once at
// startup before the ledger serves transfers.
func (t *Token) Restore(balances map[common.Address]int64, allowances map[AllowanceKey]int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for acct, bal := range balances {
		t.balances[acct] = bal
	}
	for k, amount := range allowances {
		m, ok := t.allowances[k.Owner]
		if !ok {
			m = make(map[common.Address]int64)
			t.allowances[k.Owner] = m
		}
		m[k.Spender] = amount
	}
}

// BalanceOf returns the account's current balance.
func (t *Token) BalanceOf(account common.Address) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balances[account]
}

// Allowance returns how much spender may currently move on owner's behalf.
func (t *Token) Allowance(owner, spender common.Address) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allowances[owner][spender]
}

// Mint credits new supply to an account. Dev/test convenience.
func (t *Token) Mint(to common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("mint amount must be positive: %d", amount)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	newBal := t.balances[to] + amount
	if err := t.persist(map[common.Address]int64{to: newBal}, nil); err != nil {
		return err
	}
	t.balances[to] = newBal
	return nil
}

// Approve grants spender the right to move up to amount of owner's funds.
// Overwrites any prior approval.
func (t *Token) Approve(owner, spender common.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("approval cannot be negative: %d", amount)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.persist(nil, map[AllowanceKey]int64{{Owner: owner, Spender: spender}: amount}); err != nil {
		return err
	}
	m, ok := t.allowances[owner]
	if !ok {
		m = make(map[common.Address]int64)
		t.allowances[owner] = m
	}
	m[spender] = amount
	return nil
}

// Transfer moves funds directly from the caller's own account.
func (t *Token) Transfer(from, to common.Address, amount int64) error {
	return t.TransferFrom(from, from, to, amount)
}

// TransferFrom moves funds from one account to another. When spender differs
// from the source account it consumes allowance; the transfer fails without
// touching any state if either balance or allowance is short.
func (t *Token) TransferFrom(spender, from, to common.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("transfer amount cannot be negative: %d", amount)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.balances[from] < amount {
		return fmt.Errorf("transfer %d from %s (have %d): %w",
			amount, from.Hex(), t.balances[from], market.ErrInsufficientBalance)
	}

	balances := map[common.Address]int64{from: t.balances[from] - amount}
	balances[to] = t.balances[to] + amount
	if from == to {
		balances[from] = t.balances[from]
	}

	var allowances map[AllowanceKey]int64
	consumed := false
	if spender != from {
		if t.allowances[from][spender] < amount {
			return fmt.Errorf("spend %d of %s by %s (approved %d): %w",
				amount, from.Hex(), spender.Hex(), t.allowances[from][spender], market.ErrInsufficientAllowance)
		}
		allowances = map[AllowanceKey]int64{
			{Owner: from, Spender: spender}: t.allowances[from][spender] - amount,
		}
		consumed = true
	}

	if err := t.persist(balances, allowances); err != nil {
		return err
	}

	if consumed {
		t.allowances[from][spender] -= amount
	}
	t.balances[from] = balances[from]
	t.balances[to] = balances[to]
	return nil
}

// TotalSupply sums all balances. Used by conservation checks.
func (t *Token) TotalSupply() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := int64(0)
	for _, bal := range t.balances {
		total += bal
	}
	return total
}

func (t *Token) persist(balances map[common.Address]int64, allowances map[AllowanceKey]int64) error {
	if t.store == nil {
		return nil
	}
	if err := t.store.PutTokenEntries(balances, allowances); err != nil {
		return fmt.Errorf("persist token state: %w", err)
	}
	return nil
}
