// Package storage persists board order records and dev-ledger state in
// Pebble so a restarted node resumes with the same live asks and bids, and
// with the balances and ownership that back them.
package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/openmarket-labs/boards/pkg/market"
)

// Store holds both boards' records and the ledgers' state in one Pebble
// database, separated by key prefix. All writes are synced: a record only
// exists on disk if the custody transfer behind it committed.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the store at the given path.
func Open(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(32 << 20), // order records are tiny
		MemTableSize: 16 << 20,
		MaxOpenFiles: 500,
	}
	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutAsk persists an ask record, overwriting any previous one.
func (s *Store) PutAsk(key market.OrderKey, ask market.Ask) error {
	data, err := json.Marshal(ask)
	if err != nil {
		return fmt.Errorf("marshal ask %s: %w", key, err)
	}
	if err := s.db.Set(askKey(key), data, pebble.Sync); err != nil {
		return fmt.Errorf("put ask %s: %w", key, err)
	}
	return nil
}

// DeleteAsk removes an ask record. Deleting a missing key is not an error.
func (s *Store) DeleteAsk(key market.OrderKey) error {
	if err := s.db.Delete(askKey(key), pebble.Sync); err != nil {
		return fmt.Errorf("delete ask %s: %w", key, err)
	}
	return nil
}

// PutBid persists a bid record, overwriting any previous one.
func (s *Store) PutBid(key market.OrderKey, bid market.Bid) error {
	data, err := json.Marshal(bid)
	if err != nil {
		return fmt.Errorf("marshal bid %s: %w", key, err)
	}
	if err := s.db.Set(bidKey(key), data, pebble.Sync); err != nil {
		return fmt.Errorf("put bid %s: %w", key, err)
	}
	return nil
}

// DeleteBid removes a bid record.
func (s *Store) DeleteBid(key market.OrderKey) error {
	if err := s.db.Delete(bidKey(key), pebble.Sync); err != nil {
		return fmt.Errorf("delete bid %s: %w", key, err)
	}
	return nil
}

// LoadAsks scans all persisted ask records. Called once at startup.
func (s *Store) LoadAsks() (map[market.OrderKey]market.Ask, error) {
	asks := make(map[market.OrderKey]market.Ask)
	err := s.scan(prefixAsk, func(rawKey, value []byte) error {
		key, err := orderKeyFromBytes(rawKey, prefixAsk)
		if err != nil {
			return err
		}
		var ask market.Ask
		if err := json.Unmarshal(value, &ask); err != nil {
			return fmt.Errorf("unmarshal ask %s: %w", key, err)
		}
		asks[key] = ask
		return nil
	})
	if err != nil {
		return nil, err
	}
	return asks, nil
}

// LoadBids scans all persisted bid records.
func (s *Store) LoadBids() (map[market.OrderKey]market.Bid, error) {
	bids := make(map[market.OrderKey]market.Bid)
	err := s.scan(prefixBid, func(rawKey, value []byte) error {
		key, err := orderKeyFromBytes(rawKey, prefixBid)
		if err != nil {
			return err
		}
		var bid market.Bid
		if err := json.Unmarshal(value, &bid); err != nil {
			return fmt.Errorf("unmarshal bid %s: %w", key, err)
		}
		bids[key] = bid
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bids, nil
}

// scan iterates every record under a prefix. A corrupt record aborts the
// scan: recovering with a silently incomplete order map would break the
// custody invariants.
func (s *Store) scan(prefix string, fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: keyUpperBound([]byte(prefix)),
	})
	if err != nil {
		return fmt.Errorf("iterator for %q: %w", prefix, err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}
