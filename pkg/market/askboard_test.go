package market_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmarket-labs/boards/pkg/ledger"
	"github.com/openmarket-labs/boards/pkg/market"
)

var (
	owner = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	addr1 = common.HexToAddress("0xBB00000000000000000000000000000000000000")
	addr2 = common.HexToAddress("0xCC00000000000000000000000000000000000000")

	collection = common.HexToAddress("0x1100000000000000000000000000000000000000")

	askBoardAddr = common.HexToAddress("0x00000000000000000000000000000000000A5B0A")
	bidBoardAddr = common.HexToAddress("0x00000000000000000000000000000000000B1DB0")
)

const (
	feeBps        = 250
	initialSupply = int64(1_000_000_000_000_000)
	approvalCap   = int64(1_000_000_000_000_000)
)

// marketplace wires the boards against fresh in-memory ledgers with the
// standing approvals every participant grants up front.
type marketplace struct {
	token    *ledger.Token
	registry *ledger.Registry
	asks     *market.AskBoard
	bids     *market.BidBoard
	lock     *sync.Mutex
}

func newMarketplace(t *testing.T) *marketplace {
	t.Helper()

	token := ledger.NewToken(owner, initialSupply)
	registry := ledger.NewRegistry()
	opLock := &sync.Mutex{}

	asks, err := market.NewAskBoard(askBoardAddr, feeBps, token, registry,
		market.WithAskLock(opLock))
	if err != nil {
		t.Fatalf("new ask board: %v", err)
	}
	bids, err := market.NewBidBoard(bidBoardAddr, feeBps, token, registry,
		market.WithBidLock(opLock))
	if err != nil {
		t.Fatalf("new bid board: %v", err)
	}

	for _, acct := range []common.Address{owner, addr1, addr2} {
		for _, board := range []common.Address{askBoardAddr, bidBoardAddr} {
			if err := token.Approve(acct, board, approvalCap); err != nil {
				t.Fatalf("approve token: %v", err)
			}
			if err := registry.SetApprovalForAll(acct, board, true); err != nil {
				t.Fatalf("approve registry: %v", err)
			}
		}
	}

	return &marketplace{token: token, registry: registry, asks: asks, bids: bids, lock: opLock}
}

func (m *marketplace) mint(t *testing.T, to common.Address, assetID uint64) {
	t.Helper()
	if err := m.registry.Mint(to, collection, assetID); err != nil {
		t.Fatalf("mint asset %d: %v", assetID, err)
	}
}

func (m *marketplace) fund(t *testing.T, to common.Address, amount int64) {
	t.Helper()
	if err := m.token.Transfer(owner, to, amount); err != nil {
		t.Fatalf("fund %s: %v", to.Hex(), err)
	}
}

func (m *marketplace) ownerOf(t *testing.T, assetID uint64) common.Address {
	t.Helper()
	got, err := m.registry.OwnerOf(market.OrderKey{Collection: collection, AssetID: assetID})
	if err != nil {
		t.Fatalf("ownerOf %d: %v", assetID, err)
	}
	return got
}

func TestAskBoardFeeRate(t *testing.T) {
	m := newMarketplace(t)
	if got := m.asks.AskFeeBps(); got != feeBps {
		t.Errorf("AskFeeBps() = %d, want %d", got, feeBps)
	}

	if _, err := market.NewAskBoard(askBoardAddr, 10001, m.token, m.registry); !errors.Is(err, market.ErrInvalidFeeRate) {
		t.Errorf("fee rate above cap: err = %v, want ErrInvalidFeeRate", err)
	}
}

func TestPlaceAskEscrowsAsset(t *testing.T) {
	m := newMarketplace(t)
	m.mint(t, addr1, 0)

	if err := m.asks.PlaceAsk(addr1, collection, 0, 100000); err != nil {
		t.Fatalf("place ask: %v", err)
	}

	if got := m.ownerOf(t, 0); got != askBoardAddr {
		t.Errorf("asset owner = %s, want board custody", got.Hex())
	}

	ask, ok := m.asks.GetAsk(collection, 0)
	if !ok {
		t.Fatal("ask not found after placement")
	}
	if ask.Seller != addr1 || ask.Price != 100000 || ask.Fee != 2500 {
		t.Errorf("ask = %+v, want seller=%s price=100000 fee=2500", ask, addr1.Hex())
	}
}

func TestPlaceAskRejections(t *testing.T) {
	m := newMarketplace(t)
	m.mint(t, addr1, 0)

	// Not the asset owner.
	if err := m.asks.PlaceAsk(addr2, collection, 0, 100000); !errors.Is(err, market.ErrNotOwner) {
		t.Errorf("non-owner place: err = %v, want ErrNotOwner", err)
	}

	// Re-listing over a live ask is rejected, not overwritten.
	if err := m.asks.PlaceAsk(addr1, collection, 0, 100000); err != nil {
		t.Fatalf("place ask: %v", err)
	}
	if err := m.asks.PlaceAsk(addr1, collection, 0, 200000); !errors.Is(err, market.ErrDuplicateOrder) {
		t.Errorf("duplicate place: err = %v, want ErrDuplicateOrder", err)
	}
	if ask, _ := m.asks.GetAsk(collection, 0); ask.Price != 100000 {
		t.Errorf("original ask price changed to %d", ask.Price)
	}

	// Nonexistent asset.
	if err := m.asks.PlaceAsk(addr1, collection, 99, 100000); err == nil {
		t.Error("placing ask for unminted asset should fail")
	}

	// Non-positive price.
	m.mint(t, addr1, 1)
	if err := m.asks.PlaceAsk(addr1, collection, 1, 0); !errors.Is(err, market.ErrInvalidAmount) {
		t.Errorf("zero price: err = %v, want ErrInvalidAmount", err)
	}
}

func TestPlaceAskWithoutRegistryApproval(t *testing.T) {
	m := newMarketplace(t)
	m.mint(t, addr1, 0)
	m.registry.SetApprovalForAll(addr1, askBoardAddr, false)

	err := m.asks.PlaceAsk(addr1, collection, 0, 100000)
	if !errors.Is(err, market.ErrRegistryNotAuthorized) {
		t.Fatalf("err = %v, want ErrRegistryNotAuthorized", err)
	}
	if got := m.ownerOf(t, 0); got != addr1 {
		t.Errorf("asset owner = %s, want unchanged", got.Hex())
	}
	if _, ok := m.asks.GetAsk(collection, 0); ok {
		t.Error("failed placement left an ask behind")
	}
}

// Scenario: owner lists, then cancels. Asset returns, no funds move.
func TestCancelAskReturnsAsset(t *testing.T) {
	m := newMarketplace(t)
	m.mint(t, addr1, 0)

	boardBalance := m.token.BalanceOf(askBoardAddr)

	if err := m.asks.PlaceAsk(addr1, collection, 0, 100000); err != nil {
		t.Fatalf("place ask: %v", err)
	}
	if err := m.asks.CancelAsk(addr1, collection, 0); err != nil {
		t.Fatalf("cancel ask: %v", err)
	}

	if got := m.ownerOf(t, 0); got != addr1 {
		t.Errorf("asset owner = %s, want %s", got.Hex(), addr1.Hex())
	}
	if got := m.token.BalanceOf(askBoardAddr); got != boardBalance {
		t.Errorf("board balance = %d, want unchanged %d", got, boardBalance)
	}
	if _, ok := m.asks.GetAsk(collection, 0); ok {
		t.Error("ask still live after cancel")
	}
}

func TestCancelAskAuthorization(t *testing.T) {
	m := newMarketplace(t)
	m.mint(t, addr1, 0)

	if err := m.asks.CancelAsk(addr1, collection, 0); !errors.Is(err, market.ErrNotFound) {
		t.Errorf("cancel missing: err = %v, want ErrNotFound", err)
	}

	if err := m.asks.PlaceAsk(addr1, collection, 0, 100000); err != nil {
		t.Fatalf("place ask: %v", err)
	}
	if err := m.asks.CancelAsk(addr2, collection, 0); !errors.Is(err, market.ErrUnauthorized) {
		t.Errorf("cancel by stranger: err = %v, want ErrUnauthorized", err)
	}
	if _, ok := m.asks.GetAsk(collection, 0); !ok {
		t.Error("failed cancel removed the ask")
	}
	if got := m.ownerOf(t, 0); got != askBoardAddr {
		t.Errorf("asset owner = %s, want board custody", got.Hex())
	}
}

// Scenario: seller lists asset 0 at 100000, buyer accepts at 100000 with
// 250 bps → seller +100000, buyer −102500, board +2500, buyer owns asset.
func TestAcceptAskSettlement(t *testing.T) {
	m := newMarketplace(t)
	m.mint(t, addr1, 0)
	m.fund(t, addr2, 200000)

	sellerBefore := m.token.BalanceOf(addr1)
	buyerBefore := m.token.BalanceOf(addr2)

	if err := m.asks.PlaceAsk(addr1, collection, 0, 100000); err != nil {
		t.Fatalf("place ask: %v", err)
	}
	if err := m.asks.AcceptAsk(addr2, collection, 0, 100000); err != nil {
		t.Fatalf("accept ask: %v", err)
	}

	if got := m.token.BalanceOf(addr1); got != sellerBefore+100000 {
		t.Errorf("seller balance = %d, want %d", got, sellerBefore+100000)
	}
	if got := m.token.BalanceOf(addr2); got != buyerBefore-102500 {
		t.Errorf("buyer balance = %d, want %d", got, buyerBefore-102500)
	}
	if got := m.token.BalanceOf(askBoardAddr); got != 2500 {
		t.Errorf("board fee revenue = %d, want 2500", got)
	}
	if got := m.ownerOf(t, 0); got != addr2 {
		t.Errorf("asset owner = %s, want buyer", got.Hex())
	}
	if _, ok := m.asks.GetAsk(collection, 0); ok {
		t.Error("ask still live after fill")
	}
}

func TestAcceptAskPriceConfirmation(t *testing.T) {
	m := newMarketplace(t)
	m.mint(t, addr1, 0)
	m.fund(t, addr2, 200000)

	if err := m.asks.PlaceAsk(addr1, collection, 0, 100000); err != nil {
		t.Fatalf("place ask: %v", err)
	}

	buyerBefore := m.token.BalanceOf(addr2)
	if err := m.asks.AcceptAsk(addr2, collection, 0, 99999); !errors.Is(err, market.ErrPriceMismatch) {
		t.Fatalf("err = %v, want ErrPriceMismatch", err)
	}
	if got := m.token.BalanceOf(addr2); got != buyerBefore {
		t.Errorf("buyer balance moved on rejected accept: %d != %d", got, buyerBefore)
	}
	if got := m.ownerOf(t, 0); got != askBoardAddr {
		t.Errorf("asset left custody on rejected accept")
	}
}

func TestAcceptAskInsufficientFunds(t *testing.T) {
	m := newMarketplace(t)
	m.mint(t, addr1, 0)
	m.fund(t, addr2, 100000) // covers price but not price+fee

	if err := m.asks.PlaceAsk(addr1, collection, 0, 100000); err != nil {
		t.Fatalf("place ask: %v", err)
	}

	sellerBefore := m.token.BalanceOf(addr1)
	err := m.asks.AcceptAsk(addr2, collection, 0, 100000)
	if !errors.Is(err, market.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	// Full rollback: no transfer happened, ask still live.
	if got := m.token.BalanceOf(addr1); got != sellerBefore {
		t.Errorf("seller balance moved on failed accept")
	}
	if got := m.token.BalanceOf(addr2); got != 100000 {
		t.Errorf("buyer balance = %d, want 100000", got)
	}
	if _, ok := m.asks.GetAsk(collection, 0); !ok {
		t.Error("failed accept removed the ask")
	}
}

func TestAcceptAskMissing(t *testing.T) {
	m := newMarketplace(t)
	if err := m.asks.AcceptAsk(addr2, collection, 7, 100000); !errors.Is(err, market.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// Fee revenue accumulates across fills and equals the board balance.
func TestAskBoardFeeConservation(t *testing.T) {
	m := newMarketplace(t)
	m.fund(t, addr2, 500000)

	prices := []int64{100000, 40000, 99}
	wantRevenue := int64(0)
	for i, price := range prices {
		m.mint(t, addr1, uint64(i))
		if err := m.asks.PlaceAsk(addr1, collection, uint64(i), price); err != nil {
			t.Fatalf("place ask %d: %v", i, err)
		}
		if err := m.asks.AcceptAsk(addr2, collection, uint64(i), price); err != nil {
			t.Fatalf("accept ask %d: %v", i, err)
		}
		fee, _ := market.ComputeFee(price, feeBps)
		wantRevenue += fee
	}

	if got := m.token.BalanceOf(askBoardAddr); got != wantRevenue {
		t.Errorf("board balance = %d, want accumulated fees %d", got, wantRevenue)
	}
}
