package crypto

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Operation is the canonical payload a caller signs to invoke a board
// operation. Value carries the price (asks) or amount (bids); for accepts it
// is the caller's expected-value confirmation. Nonce is strictly increasing
// per caller for replay protection.
type Operation struct {
	Board      string `json:"board"`  // "ask" or "bid"
	Action     string `json:"action"` // "place", "cancel", "accept"
	Collection string `json:"collection"`
	AssetID    uint64 `json:"assetId"`
	Value      int64  `json:"value,omitempty"`
	Nonce      uint64 `json:"nonce"`
}

// Envelope wraps an operation with its signature for transport.
type Envelope struct {
	Op        Operation `json:"op"`
	Signature string    `json:"signature"` // 0x-prefixed, 65 bytes
}

// CanonicalBytes returns the stable byte encoding callers sign. Field order
// is fixed by the struct; encoding/json preserves declaration order.
func (op Operation) CanonicalBytes() ([]byte, error) {
	data, err := json.Marshal(op)
	if err != nil {
		return nil, fmt.Errorf("encode operation: %w", err)
	}
	return data, nil
}

// SignOperation signs the operation and returns a transport-ready envelope.
func SignOperation(signer *Signer, op Operation) (*Envelope, error) {
	msg, err := op.CanonicalBytes()
	if err != nil {
		return nil, err
	}
	sig, err := signer.SignMessage(msg)
	if err != nil {
		return nil, err
	}
	return &Envelope{Op: op, Signature: hexutil.Encode(sig)}, nil
}

// VerifyEnvelope checks the signature and returns the recovered caller.
func VerifyEnvelope(env *Envelope) (common.Address, error) {
	msg, err := env.Op.CanonicalBytes()
	if err != nil {
		return common.Address{}, err
	}
	sig, err := hexutil.Decode(env.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("decode signature: %w", err)
	}
	return RecoverSigner(msg, sig)
}
