package main

import (
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmarket-labs/boards/params"
	"github.com/openmarket-labs/boards/pkg/api"
	"github.com/openmarket-labs/boards/pkg/ledger"
	"github.com/openmarket-labs/boards/pkg/market"
	"github.com/openmarket-labs/boards/pkg/storage"
	"github.com/openmarket-labs/boards/pkg/util"
)

// Custody addresses the boards act under on both ledgers. Fixed for a node
// lifetime; persisted order records reference escrow held by these accounts.
var (
	askBoardAddr = common.HexToAddress("0x00000000000000000000000000000000000A5B0A")
	bidBoardAddr = common.HexToAddress("0x00000000000000000000000000000000000B1DB0")
)

func main() {
	cfg := params.LoadFromEnv("") // "" means load .env from current directory

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	// ---- Persistence ----
	store, err := storage.Open(cfg.Node.DataDir)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.Node.DataDir, "err", err)
	}
	defer store.Close()

	// ---- Ledgers (write-through dev collaborators) ----
	treasury := common.HexToAddress("0x00000000000000000000000000000000000000A1")
	if v := os.Getenv("DEV_TREASURY"); common.IsHexAddress(v) {
		treasury = common.HexToAddress(v)
	}
	token := ledger.NewToken(treasury, 0, ledger.WithTokenStore(store))
	registry := ledger.NewRegistry(ledger.WithRegistryStore(store))

	balances, allowances, err := store.LoadTokenState()
	if err != nil {
		sugar.Fatalw("token_recovery_failed", "err", err)
	}
	owners, approvals, operators, err := store.LoadRegistryState()
	if err != nil {
		sugar.Fatalw("registry_recovery_failed", "err", err)
	}
	if len(balances) == 0 && len(owners) == 0 {
		if cfg.Node.DevSupply > 0 {
			if err := token.Mint(treasury, cfg.Node.DevSupply); err != nil {
				sugar.Fatalw("treasury_mint_failed", "err", err)
			}
		}
		sugar.Infow("ledgers_initialized", "treasury", treasury.Hex(), "supply", cfg.Node.DevSupply)
	} else {
		token.Restore(balances, allowances)
		registry.Restore(owners, approvals, operators)
		sugar.Infow("ledgers_restored", "accounts", len(balances), "assets", len(owners))
	}

	// ---- Boards ----
	hub := api.NewHub(sugar)

	// Both boards settle against the same ledgers, so every operation
	// serializes behind one lock.
	opLock := &sync.Mutex{}

	askBoard, err := market.NewAskBoard(askBoardAddr, cfg.Boards.AskFeeBps, token, registry,
		market.WithAskStore(store),
		market.WithAskSink(hub),
		market.WithAskLogger(sugar),
		market.WithAskLock(opLock),
	)
	if err != nil {
		sugar.Fatalw("ask_board_init_failed", "err", err)
	}

	bidBoard, err := market.NewBidBoard(bidBoardAddr, cfg.Boards.BiddingFeeBps, token, registry,
		market.WithBidStore(store),
		market.WithBidSink(hub),
		market.WithBidLogger(sugar),
		market.WithBidLock(opLock),
	)
	if err != nil {
		sugar.Fatalw("bid_board_init_failed", "err", err)
	}

	// Resume live orders from the previous run.
	asks, err := store.LoadAsks()
	if err != nil {
		sugar.Fatalw("ask_recovery_failed", "err", err)
	}
	askBoard.Restore(asks)

	bids, err := store.LoadBids()
	if err != nil {
		sugar.Fatalw("bid_recovery_failed", "err", err)
	}
	bidBoard.Restore(bids)
	sugar.Infow("boards_restored", "asks", len(asks), "bids", len(bids),
		"ask_fee_bps", cfg.Boards.AskFeeBps, "bidding_fee_bps", cfg.Boards.BiddingFeeBps)

	// ---- API ----
	server := api.NewServer(askBoard, bidBoard, token, hub, sugar)
	go func() {
		if err := server.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	sugar.Info("shutting down")
}
