// sign-op builds and signs a board operation envelope for manual testing
// against a running node:
//
//	sign-op -board ask -action place -collection 0xabc... -id 0 -value 100000 -nonce 1
//
// With no -key a fresh keypair is generated and printed.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/openmarket-labs/boards/pkg/crypto"
)

func main() {
	var (
		board      = flag.String("board", "ask", `"ask" or "bid"`)
		action     = flag.String("action", "place", `"place", "cancel" or "accept"`)
		collection = flag.String("collection", "", "collection address (0x...)")
		assetID    = flag.Uint64("id", 0, "asset id")
		value      = flag.Int64("value", 0, "price/amount (place, accept)")
		nonce      = flag.Uint64("nonce", 1, "strictly increasing per signer")
		keyHex     = flag.String("key", "", "private key hex (optional)")
	)
	flag.Parse()

	var signer *crypto.Signer
	var err error
	if *keyHex != "" {
		signer, err = crypto.FromPrivateKeyHex(*keyHex)
	} else {
		signer, err = crypto.GenerateKey()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Signer: %s\n", signer.Address().Hex())
	if *keyHex == "" {
		fmt.Printf("Private key: %s (keep secret)\n", signer.PrivateKeyHex())
	}

	env, err := crypto.SignOperation(signer, crypto.Operation{
		Board:      *board,
		Action:     *action,
		Collection: *collection,
		AssetID:    *assetID,
		Value:      *value,
		Nonce:      *nonce,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nSigned envelope (POST to /api/v1/operations):")
	fmt.Println(string(out))
}
