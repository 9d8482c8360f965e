package market

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// AskBoard manages seller-initiated fixed-price listings. The listed asset
// is held in board custody while the ask is live; settlement funds flow
// buyer → seller with the fee retained by the board.
//
// Operations are serialized by a mutex: the execution model is a strictly
// ordered state machine, no two operations ever interleave. Boards sharing a
// ledger must share the lock (WithAskLock/WithBidLock) so that serialization
// spans every operation touching the common custody accounts.
type AskBoard struct {
	mu *sync.Mutex

	addr   common.Address // custody address on both ledgers
	feeBps int64          // immutable, set at construction
	escrow *escrowAccount
	asks   map[OrderKey]Ask
	store  AskStore // optional persistence; nil = memory only
	sink   EventSink
	log    *zap.SugaredLogger
}

// NewAskBoard creates an ask board with an immutable fee rate in basis
// points. Returns an error if the rate is outside [0, 10000].
func NewAskBoard(addr common.Address, feeBps int64, token FungibleLedger, registry AssetRegistry, opts ...AskBoardOption) (*AskBoard, error) {
	if feeBps < 0 || feeBps > MaxFeeRateBps {
		return nil, ErrInvalidFeeRate
	}
	b := &AskBoard{
		mu:     &sync.Mutex{},
		addr:   addr,
		feeBps: feeBps,
		asks:   make(map[OrderKey]Ask),
		log:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.escrow = &escrowAccount{owner: addr, token: token, registry: registry, log: b.log}
	return b, nil
}

// AskBoardOption configures optional collaborators at construction.
type AskBoardOption func(*AskBoard)

// WithAskStore attaches a persistence layer; every committed mutation is
// written through and the operation rolls back if the write fails.
func WithAskStore(store AskStore) AskBoardOption {
	return func(b *AskBoard) { b.store = store }
}

// WithAskSink attaches an event sink for committed operations.
func WithAskSink(sink EventSink) AskBoardOption {
	return func(b *AskBoard) { b.sink = sink }
}

// WithAskLogger attaches a structured logger.
func WithAskLogger(log *zap.SugaredLogger) AskBoardOption {
	return func(b *AskBoard) { b.log = log }
}

// WithAskLock shares an operation mutex with other boards. Boards settling
// against the same ledgers must serialize globally, not just per board.
func WithAskLock(mu *sync.Mutex) AskBoardOption {
	return func(b *AskBoard) { b.mu = mu }
}

// Restore loads previously persisted asks into the board map. Called once at
// startup before the board serves operations; the records are trusted to
// match registry custody (they were only written after custody transfers).
func (b *AskBoard) Restore(asks map[OrderKey]Ask) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, ask := range asks {
		b.asks[key] = ask
	}
}

// AskFeeBps returns the board's immutable fee rate.
func (b *AskBoard) AskFeeBps() int64 { return b.feeBps }

// GetAsk returns the live ask for a key, if any.
func (b *AskBoard) GetAsk(collection common.Address, assetID uint64) (Ask, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ask, ok := b.asks[OrderKey{Collection: collection, AssetID: assetID}]
	return ask, ok
}

// Asks returns a snapshot of all live asks.
func (b *AskBoard) Asks() map[OrderKey]Ask {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[OrderKey]Ask, len(b.asks))
	for k, v := range b.asks {
		out[k] = v
	}
	return out
}

// PlaceAsk lists an asset at a fixed price. The caller must own the asset at
// the registry and have approved the board to move it; custody transfers to
// the board for the lifetime of the ask. Re-listing over a live ask is
// rejected with ErrDuplicateOrder, not overwritten.
func (b *AskBoard) PlaceAsk(caller common.Address, collection common.Address, assetID uint64, price int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := OrderKey{Collection: collection, AssetID: assetID}
	if price <= 0 {
		return ErrInvalidAmount
	}
	if _, exists := b.asks[key]; exists {
		return ErrDuplicateOrder
	}

	owner, err := b.escrow.registry.OwnerOf(key)
	if err != nil {
		return fmt.Errorf("owner lookup %s: %w", key, err)
	}
	if owner != caller {
		return ErrNotOwner
	}

	// Settlement fee is fixed now; acceptance never recomputes it.
	fee, err := ComputeFee(price, b.feeBps)
	if err != nil {
		return err
	}
	ask := Ask{Seller: caller, Price: price, Fee: fee}

	j := &journal{}
	if err := b.putAsk(j, key, ask); err != nil {
		return err
	}
	if err := b.escrow.lockAsset(j, key, caller); err != nil {
		j.revert(b.log)
		return err
	}

	b.asks[key] = ask
	b.log.Infow("ask_placed", "key", key.String(), "seller", caller.Hex(), "price", price, "fee", fee)

	ev := newEvent(EventAskPlaced, key)
	ev.Maker = caller.Hex()
	ev.Price = price
	ev.Fee = fee
	publish(b.sink, ev)
	return nil
}

// CancelAsk removes a live ask and returns asset custody to the seller.
// Only the seller may cancel.
func (b *AskBoard) CancelAsk(caller common.Address, collection common.Address, assetID uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := OrderKey{Collection: collection, AssetID: assetID}
	ask, exists := b.asks[key]
	if !exists {
		return ErrNotFound
	}
	if ask.Seller != caller {
		return ErrUnauthorized
	}

	j := &journal{}
	if err := b.deleteAsk(j, key, ask); err != nil {
		return err
	}
	if err := b.escrow.releaseAsset(j, key, ask.Seller); err != nil {
		j.revert(b.log)
		return err
	}

	delete(b.asks, key)
	b.log.Infow("ask_cancelled", "key", key.String(), "seller", caller.Hex())

	ev := newEvent(EventAskCancelled, key)
	ev.Maker = ask.Seller.Hex()
	ev.Price = ask.Price
	publish(b.sink, ev)
	return nil
}

// AcceptAsk settles a live ask at its listed price. Callable by anyone with
// sufficient funds and allowance; expectedPrice must equal the stored price,
// guarding the buyer against stale or replaced listings. Effects: buyer pays
// price+fee, seller receives price, the board retains the fee, and asset
// custody moves from the board to the buyer.
func (b *AskBoard) AcceptAsk(caller common.Address, collection common.Address, assetID uint64, expectedPrice int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := OrderKey{Collection: collection, AssetID: assetID}
	ask, exists := b.asks[key]
	if !exists {
		return ErrNotFound
	}
	if ask.Price != expectedPrice {
		return ErrPriceMismatch
	}

	j := &journal{}
	if err := b.deleteAsk(j, key, ask); err != nil {
		return err
	}
	// The pull is the only step that can be refused. The release cannot be
	// (the board owns the asset), and the payout draws on the funds just
	// pulled, so the irreversible payout comes last.
	if err := b.escrow.pull(j, caller, ask.Price+ask.Fee); err != nil {
		j.revert(b.log)
		return err
	}
	if err := b.escrow.releaseAsset(j, key, caller); err != nil {
		j.revert(b.log)
		return err
	}
	if err := b.escrow.payout(ask.Seller, ask.Price); err != nil {
		j.revert(b.log)
		return err
	}

	delete(b.asks, key)
	b.log.Infow("ask_filled", "key", key.String(),
		"seller", ask.Seller.Hex(), "buyer", caller.Hex(), "price", ask.Price, "fee", ask.Fee)

	ev := newEvent(EventAskFilled, key)
	ev.Maker = ask.Seller.Hex()
	ev.Taker = caller.Hex()
	ev.Price = ask.Price
	ev.Fee = ask.Fee
	publish(b.sink, ev)
	return nil
}

// putAsk writes through to the store (if any) with a delete as its inverse.
func (b *AskBoard) putAsk(j *journal, key OrderKey, ask Ask) error {
	if b.store == nil {
		return nil
	}
	if err := b.store.PutAsk(key, ask); err != nil {
		return fmt.Errorf("persist ask %s: %w", key, err)
	}
	j.record(fmt.Sprintf("persist ask %s", key), func() error {
		return b.store.DeleteAsk(key)
	})
	return nil
}

// deleteAsk removes the persisted record with a put-back as its inverse.
func (b *AskBoard) deleteAsk(j *journal, key OrderKey, prev Ask) error {
	if b.store == nil {
		return nil
	}
	if err := b.store.DeleteAsk(key); err != nil {
		return fmt.Errorf("unpersist ask %s: %w", key, err)
	}
	j.record(fmt.Sprintf("unpersist ask %s", key), func() error {
		return b.store.PutAsk(key, prev)
	})
	return nil
}
