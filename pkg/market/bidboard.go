package market

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// BidBoard manages buyer-initiated standing offers. Bid funds (amount+fee)
// are held in board custody while the bid is live; the asset itself is never
// escrowed. A later bid for the same key replaces the current one
// unconditionally, refunding the previous bidder in full.
type BidBoard struct {
	mu *sync.Mutex

	addr   common.Address
	feeBps int64
	escrow *escrowAccount
	bids   map[OrderKey]Bid
	store  BidStore
	sink   EventSink
	log    *zap.SugaredLogger
}

// NewBidBoard creates a bid board with an immutable fee rate in basis points.
func NewBidBoard(addr common.Address, feeBps int64, token FungibleLedger, registry AssetRegistry, opts ...BidBoardOption) (*BidBoard, error) {
	if feeBps < 0 || feeBps > MaxFeeRateBps {
		return nil, ErrInvalidFeeRate
	}
	b := &BidBoard{
		mu:     &sync.Mutex{},
		addr:   addr,
		feeBps: feeBps,
		bids:   make(map[OrderKey]Bid),
		log:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.escrow = &escrowAccount{owner: addr, token: token, registry: registry, log: b.log}
	return b, nil
}

// BidBoardOption configures optional collaborators at construction.
type BidBoardOption func(*BidBoard)

// WithBidStore attaches a persistence layer.
func WithBidStore(store BidStore) BidBoardOption {
	return func(b *BidBoard) { b.store = store }
}

// WithBidSink attaches an event sink.
func WithBidSink(sink EventSink) BidBoardOption {
	return func(b *BidBoard) { b.sink = sink }
}

// WithBidLogger attaches a structured logger.
func WithBidLogger(log *zap.SugaredLogger) BidBoardOption {
	return func(b *BidBoard) { b.log = log }
}

// WithBidLock shares an operation mutex with other boards. Boards settling
// against the same ledgers must serialize globally, not just per board.
func WithBidLock(mu *sync.Mutex) BidBoardOption {
	return func(b *BidBoard) { b.mu = mu }
}

// Restore loads previously persisted bids into the board map.
func (b *BidBoard) Restore(bids map[OrderKey]Bid) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, bid := range bids {
		b.bids[key] = bid
	}
}

// BiddingFeeBps returns the board's immutable fee rate.
func (b *BidBoard) BiddingFeeBps() int64 { return b.feeBps }

// GetCurrentBid returns the live bid for a key, if any.
func (b *BidBoard) GetCurrentBid(collection common.Address, assetID uint64) (Bid, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bid, ok := b.bids[OrderKey{Collection: collection, AssetID: assetID}]
	return bid, ok
}

// Bids returns a snapshot of all live bids.
func (b *BidBoard) Bids() map[OrderKey]Bid {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[OrderKey]Bid, len(b.bids))
	for k, v := range b.bids {
		out[k] = v
	}
	return out
}

// EscrowedTotal returns the sum of amount+fee over all live bids. Equals the
// board's ledger balance minus retained fee revenue at all times.
func (b *BidBoard) EscrowedTotal() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := int64(0)
	for _, bid := range b.bids {
		total += bid.Amount + bid.Fee
	}
	return total
}

// PlaceBid places or replaces the standing offer for a key. The caller
// escrows amount+fee with the board. If a live bid exists it is refunded in
// full and overwritten as one atomic unit: either the old bidder is made
// whole and the new funds are escrowed, or the call fails and the old bid
// stays intact. The new amount need not exceed the old one, and the new
// bidder may be the previous bidder resizing their own offer.
func (b *BidBoard) PlaceBid(caller common.Address, collection common.Address, assetID uint64, amount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := OrderKey{Collection: collection, AssetID: assetID}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	fee, err := ComputeFee(amount, b.feeBps)
	if err != nil {
		return err
	}
	required := amount + fee

	prev, replacing := b.bids[key]
	bid := Bid{Bidder: caller, Amount: amount, Fee: fee}

	j := &journal{}
	if err := b.putBid(j, key, bid, prev, replacing); err != nil {
		return err
	}

	// The pull is the only step that can be refused, and it runs before the
	// previous bidder's refund: a bid that cannot be funded never touches the
	// escrow already held. The refund itself draws on board custody and comes
	// last. A bidder resizing their own offer settles the difference against
	// the escrow they already have in, so a downsize needs no fresh funds.
	switch {
	case replacing && prev.Bidder == caller:
		delta := required - (prev.Amount + prev.Fee)
		if delta > 0 {
			if err := b.escrow.pull(j, caller, delta); err != nil {
				j.revert(b.log)
				return err
			}
		} else if delta < 0 {
			if err := b.escrow.payout(caller, -delta); err != nil {
				j.revert(b.log)
				return err
			}
		}
	case replacing:
		if err := b.escrow.pull(j, caller, required); err != nil {
			j.revert(b.log)
			return err
		}
		if err := b.escrow.payout(prev.Bidder, prev.Amount+prev.Fee); err != nil {
			j.revert(b.log)
			return err
		}
	default:
		if err := b.escrow.pull(j, caller, required); err != nil {
			j.revert(b.log)
			return err
		}
	}

	b.bids[key] = bid

	if replacing {
		b.log.Infow("bid_replaced", "key", key.String(),
			"bidder", caller.Hex(), "amount", amount, "fee", fee,
			"prev_bidder", prev.Bidder.Hex(), "refunded", prev.Amount+prev.Fee)
		ev := newEvent(EventBidReplaced, key)
		ev.Maker = caller.Hex()
		ev.Refunded = prev.Bidder.Hex()
		ev.Amount = amount
		ev.Fee = fee
		publish(b.sink, ev)
		return nil
	}

	b.log.Infow("bid_placed", "key", key.String(), "bidder", caller.Hex(), "amount", amount, "fee", fee)
	ev := newEvent(EventBidPlaced, key)
	ev.Maker = caller.Hex()
	ev.Amount = amount
	ev.Fee = fee
	publish(b.sink, ev)
	return nil
}

// CancelBid removes a live bid and refunds amount+fee to the bidder. Only
// the bidder may cancel.
func (b *BidBoard) CancelBid(caller common.Address, collection common.Address, assetID uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := OrderKey{Collection: collection, AssetID: assetID}
	bid, exists := b.bids[key]
	if !exists {
		return ErrNotFound
	}
	if bid.Bidder != caller {
		return ErrUnauthorized
	}

	j := &journal{}
	if err := b.deleteBid(j, key, bid); err != nil {
		return err
	}
	if err := b.escrow.payout(bid.Bidder, bid.Amount+bid.Fee); err != nil {
		j.revert(b.log)
		return err
	}

	delete(b.bids, key)
	b.log.Infow("bid_cancelled", "key", key.String(), "bidder", caller.Hex(), "refunded", bid.Amount+bid.Fee)

	ev := newEvent(EventBidCancelled, key)
	ev.Maker = bid.Bidder.Hex()
	ev.Amount = bid.Amount
	ev.Fee = bid.Fee
	publish(b.sink, ev)
	return nil
}

// AcceptBid settles a live bid. The caller must currently own the asset at
// the registry — authorization is checked there, not against any board
// record — and must have approved the board to move it. expectedAmount must
// equal the stored bid amount. Effects: the asset moves caller → bidder
// directly, the caller receives the bid amount from escrow, and the board
// retains the fee.
func (b *BidBoard) AcceptBid(caller common.Address, collection common.Address, assetID uint64, expectedAmount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := OrderKey{Collection: collection, AssetID: assetID}
	bid, exists := b.bids[key]
	if !exists {
		return ErrNotFound
	}
	if bid.Amount != expectedAmount {
		return ErrAmountMismatch
	}

	owner, err := b.escrow.registry.OwnerOf(key)
	if err != nil {
		return fmt.Errorf("owner lookup %s: %w", key, err)
	}
	if owner != caller {
		return ErrNotOwner
	}

	j := &journal{}
	if err := b.deleteBid(j, key, bid); err != nil {
		return err
	}
	// The registry move is the last step that can be refused (the owner may
	// not have approved the board); the payout after it draws on escrow.
	if err := b.escrow.moveAsset(j, key, caller, bid.Bidder); err != nil {
		j.revert(b.log)
		return err
	}
	if err := b.escrow.payout(caller, bid.Amount); err != nil {
		j.revert(b.log)
		return err
	}

	delete(b.bids, key)
	b.log.Infow("bid_filled", "key", key.String(),
		"bidder", bid.Bidder.Hex(), "seller", caller.Hex(), "amount", bid.Amount, "fee", bid.Fee)

	ev := newEvent(EventBidFilled, key)
	ev.Maker = bid.Bidder.Hex()
	ev.Taker = caller.Hex()
	ev.Amount = bid.Amount
	ev.Fee = bid.Fee
	publish(b.sink, ev)
	return nil
}

// putBid writes through to the store. The inverse restores the replaced
// record on overwrites and deletes the key on fresh placements.
func (b *BidBoard) putBid(j *journal, key OrderKey, bid, prev Bid, replacing bool) error {
	if b.store == nil {
		return nil
	}
	if err := b.store.PutBid(key, bid); err != nil {
		return fmt.Errorf("persist bid %s: %w", key, err)
	}
	j.record(fmt.Sprintf("persist bid %s", key), func() error {
		if replacing {
			return b.store.PutBid(key, prev)
		}
		return b.store.DeleteBid(key)
	})
	return nil
}

func (b *BidBoard) deleteBid(j *journal, key OrderKey, prev Bid) error {
	if b.store == nil {
		return nil
	}
	if err := b.store.DeleteBid(key); err != nil {
		return fmt.Errorf("unpersist bid %s: %w", key, err)
	}
	j.record(fmt.Sprintf("unpersist bid %s", key), func() error {
		return b.store.PutBid(key, prev)
	})
	return nil
}
