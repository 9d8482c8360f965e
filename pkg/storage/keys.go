package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmarket-labs/boards/pkg/market"
)

// Pebble key schema. Prefix-based so each board's records sit in one
// contiguous range and startup recovery is a single prefix scan.

const (
	prefixAsk = "ask:" // ask records
	prefixBid = "bid:" // bid records

	prefixBalance   = "bal:" // token balances
	prefixAllowance = "alw:" // token allowances
	prefixOwner     = "own:" // asset ownership
	prefixApproval  = "apv:" // per-asset approvals
	prefixOperator  = "opr:" // operator grants
)

// askKey returns the key for an ask record.
// Format: "ask:{collection}:{assetID}" with the id zero-padded (20 digits)
// for stable lexicographic ordering.
func askKey(key market.OrderKey) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixAsk, key.Collection.Hex(), key.AssetID))
}

// bidKey returns the key for a bid record.
// Format: "bid:{collection}:{assetID}"
func bidKey(key market.OrderKey) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixBid, key.Collection.Hex(), key.AssetID))
}

// orderKeyFromBytes parses a record key back into its OrderKey.
// Inverse of askKey/bidKey, used when scanning at startup.
func orderKeyFromBytes(raw []byte, prefix string) (market.OrderKey, error) {
	s := string(raw)
	if !strings.HasPrefix(s, prefix) {
		return market.OrderKey{}, fmt.Errorf("key %q lacks prefix %q", s, prefix)
	}
	parts := strings.SplitN(s[len(prefix):], ":", 2)
	if len(parts) != 2 {
		return market.OrderKey{}, fmt.Errorf("malformed record key: %q", s)
	}
	if !common.IsHexAddress(parts[0]) {
		return market.OrderKey{}, fmt.Errorf("invalid collection in key: %q", parts[0])
	}
	id, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return market.OrderKey{}, fmt.Errorf("invalid asset id in key %q: %w", s, err)
	}
	return market.OrderKey{Collection: common.HexToAddress(parts[0]), AssetID: id}, nil
}

// balanceKey returns the key for a token balance record.
// Format: "bal:{account}"
func balanceKey(account common.Address) []byte {
	return []byte(prefixBalance + account.Hex())
}

// allowanceKey returns the key for a token allowance record.
// Format: "alw:{owner}:{spender}"
func allowanceKey(owner, spender common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixAllowance, owner.Hex(), spender.Hex()))
}

// ownerKey returns the key for an asset ownership record, same layout as the
// order keys.
func ownerKey(key market.OrderKey) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixOwner, key.Collection.Hex(), key.AssetID))
}

// approvalKey returns the key for a per-asset approval record.
func approvalKey(key market.OrderKey) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixApproval, key.Collection.Hex(), key.AssetID))
}

// operatorKey returns the key for an operator grant record.
// Format: "opr:{owner}:{operator}"
func operatorKey(owner, operator common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixOperator, owner.Hex(), operator.Hex()))
}

// addressFromBytes parses a single-address record key.
func addressFromBytes(raw []byte, prefix string) (common.Address, error) {
	s := string(raw)
	if !strings.HasPrefix(s, prefix) {
		return common.Address{}, fmt.Errorf("key %q lacks prefix %q", s, prefix)
	}
	if !common.IsHexAddress(s[len(prefix):]) {
		return common.Address{}, fmt.Errorf("invalid address in key: %q", s)
	}
	return common.HexToAddress(s[len(prefix):]), nil
}

// addressPairFromBytes parses a two-address record key.
func addressPairFromBytes(raw []byte, prefix string) (common.Address, common.Address, error) {
	s := string(raw)
	if !strings.HasPrefix(s, prefix) {
		return common.Address{}, common.Address{}, fmt.Errorf("key %q lacks prefix %q", s, prefix)
	}
	parts := strings.SplitN(s[len(prefix):], ":", 2)
	if len(parts) != 2 || !common.IsHexAddress(parts[0]) || !common.IsHexAddress(parts[1]) {
		return common.Address{}, common.Address{}, fmt.Errorf("malformed record key: %q", s)
	}
	return common.HexToAddress(parts[0]), common.HexToAddress(parts[1]), nil
}

// keyUpperBound returns the exclusive upper bound for a prefix scan: the
// prefix with its last byte incremented.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
