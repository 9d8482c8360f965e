package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/openmarket-labs/boards/pkg/ledger"
	"github.com/openmarket-labs/boards/pkg/market"
)

// Ledger state lives in the same database as the order records, so restored
// orders always reference balances and ownership the ledgers still hold.
// Each Put covers the entries one ledger operation touched and commits them
// as a single synced batch.

// PutTokenEntries persists balance and allowance entries atomically.
func (s *Store) PutTokenEntries(balances map[common.Address]int64, allowances map[ledger.AllowanceKey]int64) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for acct, bal := range balances {
		v, err := json.Marshal(bal)
		if err != nil {
			return fmt.Errorf("marshal balance %s: %w", acct.Hex(), err)
		}
		if err := batch.Set(balanceKey(acct), v, nil); err != nil {
			return fmt.Errorf("put balance %s: %w", acct.Hex(), err)
		}
	}
	for k, amount := range allowances {
		v, err := json.Marshal(amount)
		if err != nil {
			return fmt.Errorf("marshal allowance %s/%s: %w", k.Owner.Hex(), k.Spender.Hex(), err)
		}
		if err := batch.Set(allowanceKey(k.Owner, k.Spender), v, nil); err != nil {
			return fmt.Errorf("put allowance %s/%s: %w", k.Owner.Hex(), k.Spender.Hex(), err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit token entries: %w", err)
	}
	return nil
}

// PutRegistryEntries persists ownership, approval and operator entries
// atomically. A zero approval address deletes the record.
func (s *Store) PutRegistryEntries(owners, approvals map[market.OrderKey]common.Address, operators map[ledger.OperatorKey]bool) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for key, owner := range owners {
		v, err := json.Marshal(owner)
		if err != nil {
			return fmt.Errorf("marshal owner %s: %w", key, err)
		}
		if err := batch.Set(ownerKey(key), v, nil); err != nil {
			return fmt.Errorf("put owner %s: %w", key, err)
		}
	}
	for key, to := range approvals {
		if to == (common.Address{}) {
			if err := batch.Delete(approvalKey(key), nil); err != nil {
				return fmt.Errorf("clear approval %s: %w", key, err)
			}
			continue
		}
		v, err := json.Marshal(to)
		if err != nil {
			return fmt.Errorf("marshal approval %s: %w", key, err)
		}
		if err := batch.Set(approvalKey(key), v, nil); err != nil {
			return fmt.Errorf("put approval %s: %w", key, err)
		}
	}
	for k, approved := range operators {
		v, err := json.Marshal(approved)
		if err != nil {
			return fmt.Errorf("marshal operator %s/%s: %w", k.Owner.Hex(), k.Operator.Hex(), err)
		}
		if err := batch.Set(operatorKey(k.Owner, k.Operator), v, nil); err != nil {
			return fmt.Errorf("put operator %s/%s: %w", k.Owner.Hex(), k.Operator.Hex(), err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit registry entries: %w", err)
	}
	return nil
}

// LoadTokenState scans all persisted balances and allowances. Called once at
// startup.
func (s *Store) LoadTokenState() (map[common.Address]int64, map[ledger.AllowanceKey]int64, error) {
	balances := make(map[common.Address]int64)
	err := s.scan(prefixBalance, func(rawKey, value []byte) error {
		acct, err := addressFromBytes(rawKey, prefixBalance)
		if err != nil {
			return err
		}
		var bal int64
		if err := json.Unmarshal(value, &bal); err != nil {
			return fmt.Errorf("unmarshal balance %s: %w", acct.Hex(), err)
		}
		balances[acct] = bal
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	allowances := make(map[ledger.AllowanceKey]int64)
	err = s.scan(prefixAllowance, func(rawKey, value []byte) error {
		owner, spender, err := addressPairFromBytes(rawKey, prefixAllowance)
		if err != nil {
			return err
		}
		var amount int64
		if err := json.Unmarshal(value, &amount); err != nil {
			return fmt.Errorf("unmarshal allowance %s/%s: %w", owner.Hex(), spender.Hex(), err)
		}
		allowances[ledger.AllowanceKey{Owner: owner, Spender: spender}] = amount
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return balances, allowances, nil
}

// LoadRegistryState scans all persisted ownership, approval and operator
// records. Called once at startup.
func (s *Store) LoadRegistryState() (map[market.OrderKey]common.Address, map[market.OrderKey]common.Address, map[ledger.OperatorKey]bool, error) {
	owners := make(map[market.OrderKey]common.Address)
	err := s.scan(prefixOwner, func(rawKey, value []byte) error {
		key, err := orderKeyFromBytes(rawKey, prefixOwner)
		if err != nil {
			return err
		}
		var owner common.Address
		if err := json.Unmarshal(value, &owner); err != nil {
			return fmt.Errorf("unmarshal owner %s: %w", key, err)
		}
		owners[key] = owner
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}

	approvals := make(map[market.OrderKey]common.Address)
	err = s.scan(prefixApproval, func(rawKey, value []byte) error {
		key, err := orderKeyFromBytes(rawKey, prefixApproval)
		if err != nil {
			return err
		}
		var to common.Address
		if err := json.Unmarshal(value, &to); err != nil {
			return fmt.Errorf("unmarshal approval %s: %w", key, err)
		}
		approvals[key] = to
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}

	operators := make(map[ledger.OperatorKey]bool)
	err = s.scan(prefixOperator, func(rawKey, value []byte) error {
		owner, operator, err := addressPairFromBytes(rawKey, prefixOperator)
		if err != nil {
			return err
		}
		var approved bool
		if err := json.Unmarshal(value, &approved); err != nil {
			return fmt.Errorf("unmarshal operator %s/%s: %w", owner.Hex(), operator.Hex(), err)
		}
		operators[ledger.OperatorKey{Owner: owner, Operator: operator}] = approved
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return owners, approvals, operators, nil
}
