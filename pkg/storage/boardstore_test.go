package storage

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmarket-labs/boards/pkg/market"
)

var (
	testCollection = common.HexToAddress("0x1100000000000000000000000000000000000000")
	testSeller     = common.HexToAddress("0xBB00000000000000000000000000000000000000")
	testBidder     = common.HexToAddress("0xCC00000000000000000000000000000000000000")
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir() + "/boards.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func TestStoreAskRoundtrip(t *testing.T) {
	store := openTestStore(t)

	key := market.OrderKey{Collection: testCollection, AssetID: 7}
	ask := market.Ask{Seller: testSeller, Price: 100000, Fee: 2500}

	if err := store.PutAsk(key, ask); err != nil {
		t.Fatalf("put ask: %v", err)
	}

	asks, err := store.LoadAsks()
	if err != nil {
		t.Fatalf("load asks: %v", err)
	}
	if len(asks) != 1 {
		t.Fatalf("loaded %d asks, want 1", len(asks))
	}
	if got := asks[key]; got != ask {
		t.Errorf("loaded ask = %+v, want %+v", got, ask)
	}

	if err := store.DeleteAsk(key); err != nil {
		t.Fatalf("delete ask: %v", err)
	}
	asks, err = store.LoadAsks()
	if err != nil {
		t.Fatalf("load after delete: %v", err)
	}
	if len(asks) != 0 {
		t.Errorf("loaded %d asks after delete, want 0", len(asks))
	}

	// Deleting a missing key is a no-op.
	if err := store.DeleteAsk(key); err != nil {
		t.Errorf("delete missing: %v", err)
	}
}

func TestStoreBidOverwrite(t *testing.T) {
	store := openTestStore(t)

	key := market.OrderKey{Collection: testCollection, AssetID: 0}
	first := market.Bid{Bidder: testBidder, Amount: 10000, Fee: 250}
	second := market.Bid{Bidder: testSeller, Amount: 100000, Fee: 2500}

	if err := store.PutBid(key, first); err != nil {
		t.Fatalf("put first bid: %v", err)
	}
	if err := store.PutBid(key, second); err != nil {
		t.Fatalf("put second bid: %v", err)
	}

	bids, err := store.LoadBids()
	if err != nil {
		t.Fatalf("load bids: %v", err)
	}
	if len(bids) != 1 {
		t.Fatalf("loaded %d bids, want 1", len(bids))
	}
	if got := bids[key]; got != second {
		t.Errorf("loaded bid = %+v, want overwritten %+v", got, second)
	}
}

// Records survive a close/reopen cycle, and the two boards' prefixes do not
// bleed into each other's scans.
func TestStoreRecovery(t *testing.T) {
	dir := t.TempDir() + "/boards.db"

	store, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	askKey1 := market.OrderKey{Collection: testCollection, AssetID: 1}
	askKey2 := market.OrderKey{Collection: testCollection, AssetID: 2}
	bidKey1 := market.OrderKey{Collection: testCollection, AssetID: 1}

	if err := store.PutAsk(askKey1, market.Ask{Seller: testSeller, Price: 100, Fee: 2}); err != nil {
		t.Fatal(err)
	}
	if err := store.PutAsk(askKey2, market.Ask{Seller: testSeller, Price: 200, Fee: 5}); err != nil {
		t.Fatal(err)
	}
	if err := store.PutBid(bidKey1, market.Bid{Bidder: testBidder, Amount: 50, Fee: 1}); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	store, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	asks, err := store.LoadAsks()
	if err != nil {
		t.Fatalf("load asks: %v", err)
	}
	bids, err := store.LoadBids()
	if err != nil {
		t.Fatalf("load bids: %v", err)
	}
	if len(asks) != 2 || len(bids) != 1 {
		t.Fatalf("recovered %d asks / %d bids, want 2 / 1", len(asks), len(bids))
	}
	if asks[askKey2].Price != 200 {
		t.Errorf("ask 2 price = %d, want 200", asks[askKey2].Price)
	}
	if bids[bidKey1].Amount != 50 {
		t.Errorf("bid 1 amount = %d, want 50", bids[bidKey1].Amount)
	}
}

func TestOrderKeyBytesRoundtrip(t *testing.T) {
	key := market.OrderKey{Collection: testCollection, AssetID: 1234567890}

	for _, tc := range []struct {
		prefix string
		raw    []byte
	}{
		{prefixAsk, askKey(key)},
		{prefixBid, bidKey(key)},
	} {
		got, err := orderKeyFromBytes(tc.raw, tc.prefix)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.raw, err)
		}
		if got != key {
			t.Errorf("parsed %+v, want %+v", got, key)
		}
	}

	if _, err := orderKeyFromBytes([]byte("bid:junk"), prefixAsk); err == nil {
		t.Error("wrong prefix accepted")
	}
	if _, err := orderKeyFromBytes([]byte("ask:notanaddress:00000000000000000001"), prefixAsk); err == nil {
		t.Error("invalid collection accepted")
	}
	if _, err := orderKeyFromBytes([]byte("ask:"+testCollection.Hex()), prefixAsk); err == nil {
		t.Error("missing asset id accepted")
	}
}

func TestKeyOrdering(t *testing.T) {
	// Zero padding keeps scan order numeric.
	k9 := askKey(market.OrderKey{Collection: testCollection, AssetID: 9})
	k10 := askKey(market.OrderKey{Collection: testCollection, AssetID: 10})
	if bytes.Compare(k9, k10) >= 0 {
		t.Errorf("key for id 9 not ordered before id 10: %q >= %q", k9, k10)
	}

	if got := keyUpperBound([]byte(prefixAsk)); !bytes.Equal(got, []byte("ask;")) {
		t.Errorf("upper bound = %q, want %q", got, "ask;")
	}
}
