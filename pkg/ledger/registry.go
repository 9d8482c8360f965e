package ledger

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmarket-labs/boards/pkg/market"
)

// OperatorKey identifies one owner → operator grant.
type OperatorKey struct {
	Owner    common.Address
	Operator common.Address
}

// RegistryStore persists registry state. A zero approval address means the
// per-asset approval is cleared. Each call carries the entries one operation
// touched and must commit them atomically.
type RegistryStore interface {
	PutRegistryEntries(owners, approvals map[market.OrderKey]common.Address, operators map[OperatorKey]bool) error
}

// Registry is an in-memory unique-asset registry. Ownership is per
// (collection, id); transfers by a non-owner require either a per-asset
// approval or an operator (approval-for-all) grant from the current owner.
type Registry struct {
	mu        sync.RWMutex
	owners    map[market.OrderKey]common.Address
	approved  map[market.OrderKey]common.Address          // per-asset, cleared on transfer
	operators map[common.Address]map[common.Address]bool // owner → operator → approved
	store     RegistryStore
}

// RegistryOption configures optional collaborators at construction.
type RegistryOption func(*Registry)

// WithRegistryStore attaches a persistence layer; every committed mutation is
// written through before it applies in memory.
func WithRegistryStore(store RegistryStore) RegistryOption {
	return func(r *Registry) { r.store = store }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		owners:    make(map[market.OrderKey]common.Address),
		approved:  make(map[market.OrderKey]common.Address),
		operators: make(map[common.Address]map[common.Address]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Restore loads previously persisted state into the registry. Called once at
// startup before the registry serves transfers.
func (r *Registry) Restore(owners, approvals map[market.OrderKey]common.Address, operators map[OperatorKey]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, owner := range owners {
		r.owners[key] = owner
	}
	for key, to := range approvals {
		if to != (common.Address{}) {
			r.approved[key] = to
		}
	}
	for k, approved := range operators {
		m, ok := r.operators[k.Owner]
		if !ok {
			m = make(map[common.Address]bool)
			r.operators[k.Owner] = m
		}
		m[k.Operator] = approved
	}
}

// Mint assigns a fresh asset to an owner. Fails if the id already exists.
func (r *Registry) Mint(to common.Address, collection common.Address, assetID uint64) error {
	key := market.OrderKey{Collection: collection, AssetID: assetID}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.owners[key]; exists {
		return fmt.Errorf("asset %s already minted", key)
	}
	if err := r.persist(map[market.OrderKey]common.Address{key: to}, nil, nil); err != nil {
		return err
	}
	r.owners[key] = to
	return nil
}

// OwnerOf returns the current owner of an asset.
func (r *Registry) OwnerOf(key market.OrderKey) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, exists := r.owners[key]
	if !exists {
		return common.Address{}, fmt.Errorf("asset %s does not exist", key)
	}
	return owner, nil
}

// Approve grants a per-asset transfer approval. Only the owner or one of its
// operators may grant it; the approval clears when the asset moves.
func (r *Registry) Approve(caller, to common.Address, collection common.Address, assetID uint64) error {
	key := market.OrderKey{Collection: collection, AssetID: assetID}
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, exists := r.owners[key]
	if !exists {
		return fmt.Errorf("asset %s does not exist", key)
	}
	if caller != owner && !r.operators[owner][caller] {
		return fmt.Errorf("approve %s by %s: %w", key, caller.Hex(), market.ErrRegistryNotAuthorized)
	}
	if err := r.persist(nil, map[market.OrderKey]common.Address{key: to}, nil); err != nil {
		return err
	}
	r.approved[key] = to
	return nil
}

// SetApprovalForAll grants or revokes operator rights over every asset the
// owner holds, now and in the future.
func (r *Registry) SetApprovalForAll(owner, operator common.Address, approved bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.persist(nil, nil, map[OperatorKey]bool{{Owner: owner, Operator: operator}: approved}); err != nil {
		return err
	}
	m, ok := r.operators[owner]
	if !ok {
		m = make(map[common.Address]bool)
		r.operators[owner] = m
	}
	m[operator] = approved
	return nil
}

// IsApprovedForAll reports whether operator may move all of owner's assets.
func (r *Registry) IsApprovedForAll(owner, operator common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.operators[owner][operator]
}

// TransferFrom moves an asset between accounts. The operator must be the
// owner, hold a per-asset approval, or hold the owner's operator grant; the
// from account must be the current owner. Fails without touching state
// otherwise.
func (r *Registry) TransferFrom(operator common.Address, key market.OrderKey, from, to common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, exists := r.owners[key]
	if !exists {
		return fmt.Errorf("asset %s does not exist", key)
	}
	if owner != from {
		return fmt.Errorf("transfer %s: %s is not the owner: %w", key, from.Hex(), market.ErrRegistryNotAuthorized)
	}
	if operator != owner && r.approved[key] != operator && !r.operators[owner][operator] {
		return fmt.Errorf("transfer %s by %s: %w", key, operator.Hex(), market.ErrRegistryNotAuthorized)
	}

	if err := r.persist(
		map[market.OrderKey]common.Address{key: to},
		map[market.OrderKey]common.Address{key: {}}, // approval does not survive a transfer
		nil,
	); err != nil {
		return err
	}
	r.owners[key] = to
	delete(r.approved, key)
	return nil
}

func (r *Registry) persist(owners, approvals map[market.OrderKey]common.Address, operators map[OperatorKey]bool) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.PutRegistryEntries(owners, approvals, operators); err != nil {
		return fmt.Errorf("persist registry state: %w", err)
	}
	return nil
}
