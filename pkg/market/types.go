package market

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// OrderKey identifies the unique asset an order concerns.
// At most one live Ask and one live Bid exist per key at any time.
type OrderKey struct {
	Collection common.Address // asset collection (contract address)
	AssetID    uint64         // token id within the collection
}

func (k OrderKey) String() string {
	return fmt.Sprintf("%s/%d", k.Collection.Hex(), k.AssetID)
}

// Ask is a seller's fixed-price listing. The referenced asset is held in
// board custody for as long as the record exists.
type Ask struct {
	Seller common.Address `json:"seller"`
	Price  int64          `json:"price"` // integer token units
	Fee    int64          `json:"fee"`   // settlement fee, fixed at placement
}

// Bid is a buyer's standing offer. Amount+Fee is held in board custody for
// as long as the record exists; the asset itself is never escrowed.
type Bid struct {
	Bidder common.Address `json:"bidder"`
	Amount int64          `json:"amount"`
	Fee    int64          `json:"fee"` // fixed at placement, retained on settlement
}

// FungibleLedger is the external settlement-token ledger. The board moves
// funds only through TransferFrom: it passes itself as spender for
// buyer/bidder pulls (allowance enforced by the ledger) and as both spender
// and sender for payouts from its own custody.
type FungibleLedger interface {
	BalanceOf(account common.Address) int64
	Allowance(owner, spender common.Address) int64
	TransferFrom(spender, from, to common.Address, amount int64) error
}

// AssetRegistry is the external unique-asset registry. TransferFrom succeeds
// only if operator is the owner or holds the owner's approval.
type AssetRegistry interface {
	OwnerOf(key OrderKey) (common.Address, error)
	TransferFrom(operator common.Address, key OrderKey, from, to common.Address) error
}

// AskStore persists ask records. Put and Delete must be exact inverses so a
// failed operation can restore the previous record.
type AskStore interface {
	PutAsk(key OrderKey, ask Ask) error
	DeleteAsk(key OrderKey) error
}

// BidStore persists bid records.
type BidStore interface {
	PutBid(key OrderKey, bid Bid) error
	DeleteBid(key OrderKey) error
}
