package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/openmarket-labs/boards/pkg/crypto"
	"github.com/openmarket-labs/boards/pkg/market"
)

// Server exposes the boards over REST and streams their events over
// WebSocket. State-changing requests are signed envelopes; the recovered
// signer is the caller for every authorization check.
type Server struct {
	asks   *market.AskBoard
	bids   *market.BidBoard
	token  market.FungibleLedger
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger

	// Replay protection: last accepted nonce per caller.
	nonceMu sync.Mutex
	nonces  map[common.Address]uint64
}

// NewServer creates an API server over the two boards. The hub is passed in
// because the boards publish into it and are constructed first.
func NewServer(asks *market.AskBoard, bids *market.BidBoard, token market.FungibleLedger, hub *Hub, log *zap.SugaredLogger) *Server {
	s := &Server{
		asks:   asks,
		bids:   bids,
		token:  token,
		router: mux.NewRouter(),
		hub:    hub,
		log:    log,
		nonces: make(map[common.Address]uint64),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/boards", s.handleGetBoards).Methods("GET")
	api.HandleFunc("/asks", s.handleListAsks).Methods("GET")
	api.HandleFunc("/asks/{collection}/{id}", s.handleGetAsk).Methods("GET")
	api.HandleFunc("/bids", s.handleListBids).Methods("GET")
	api.HandleFunc("/bids/{collection}/{id}", s.handleGetBid).Methods("GET")
	api.HandleFunc("/accounts/{address}", s.handleGetAccount).Methods("GET")

	// Signed operation submission; the envelope names board and action.
	api.HandleFunc("/operations", s.handleOperation).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the WebSocket hub and serves HTTP until the listener fails.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// Handler returns the router wrapped with middleware. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ==============================
// REST handlers
// ==============================

func (s *Server) handleGetBoards(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, BoardsInfo{
		AskFeeBps:     s.asks.AskFeeBps(),
		BiddingFeeBps: s.bids.BiddingFeeBps(),
	})
}

func (s *Server) handleListAsks(w http.ResponseWriter, r *http.Request) {
	asks := s.asks.Asks()
	response := make([]AskInfo, 0, len(asks))
	for key, ask := range asks {
		response = append(response, AskInfo{
			Collection: key.Collection.Hex(),
			AssetID:    key.AssetID,
			Seller:     ask.Seller.Hex(),
			Price:      ask.Price,
			Fee:        ask.Fee,
		})
	}
	respondJSON(w, response)
}

func (s *Server) handleGetAsk(w http.ResponseWriter, r *http.Request) {
	key, ok := orderKeyFromRequest(w, r)
	if !ok {
		return
	}
	ask, exists := s.asks.GetAsk(key.Collection, key.AssetID)
	if !exists {
		respondError(w, http.StatusNotFound, "ask not found", "")
		return
	}
	respondJSON(w, AskInfo{
		Collection: key.Collection.Hex(),
		AssetID:    key.AssetID,
		Seller:     ask.Seller.Hex(),
		Price:      ask.Price,
		Fee:        ask.Fee,
	})
}

func (s *Server) handleListBids(w http.ResponseWriter, r *http.Request) {
	bids := s.bids.Bids()
	response := make([]BidInfo, 0, len(bids))
	for key, bid := range bids {
		response = append(response, BidInfo{
			Collection: key.Collection.Hex(),
			AssetID:    key.AssetID,
			Bidder:     bid.Bidder.Hex(),
			Amount:     bid.Amount,
			Fee:        bid.Fee,
		})
	}
	respondJSON(w, response)
}

func (s *Server) handleGetBid(w http.ResponseWriter, r *http.Request) {
	key, ok := orderKeyFromRequest(w, r)
	if !ok {
		return
	}
	bid, exists := s.bids.GetCurrentBid(key.Collection, key.AssetID)
	if !exists {
		respondError(w, http.StatusNotFound, "bid not found", "")
		return
	}
	respondJSON(w, BidInfo{
		Collection: key.Collection.Hex(),
		AssetID:    key.AssetID,
		Bidder:     bid.Bidder.Hex(),
		Amount:     bid.Amount,
		Fee:        bid.Fee,
	})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addressStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addressStr) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	addr := common.HexToAddress(addressStr)
	respondJSON(w, AccountInfo{
		Address: addr.Hex(),
		Balance: s.token.BalanceOf(addr),
	})
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	var env crypto.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, err := crypto.VerifyEnvelope(&env)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid signature", err.Error())
		return
	}

	if !s.checkAndAdvanceNonce(caller, env.Op.Nonce) {
		respondError(w, http.StatusConflict, "nonce too low", "")
		return
	}

	if !common.IsHexAddress(env.Op.Collection) {
		respondError(w, http.StatusBadRequest, "invalid collection address", "")
		return
	}
	collection := common.HexToAddress(env.Op.Collection)

	if err := s.dispatch(caller, collection, env.Op); err != nil {
		respondBoardError(w, err)
		return
	}

	respondJSON(w, OperationResult{Status: "applied", Caller: caller.Hex()})
}

// dispatch routes a verified operation to the right board method.
func (s *Server) dispatch(caller, collection common.Address, op crypto.Operation) error {
	switch op.Board + "/" + op.Action {
	case "ask/place":
		return s.asks.PlaceAsk(caller, collection, op.AssetID, op.Value)
	case "ask/cancel":
		return s.asks.CancelAsk(caller, collection, op.AssetID)
	case "ask/accept":
		return s.asks.AcceptAsk(caller, collection, op.AssetID, op.Value)
	case "bid/place":
		return s.bids.PlaceBid(caller, collection, op.AssetID, op.Value)
	case "bid/cancel":
		return s.bids.CancelBid(caller, collection, op.AssetID)
	case "bid/accept":
		return s.bids.AcceptBid(caller, collection, op.AssetID, op.Value)
	default:
		return errUnknownOperation
	}
}

var errUnknownOperation = errors.New("unknown board/action")

// checkAndAdvanceNonce accepts strictly increasing nonces per caller.
func (s *Server) checkAndAdvanceNonce(caller common.Address, nonce uint64) bool {
	s.nonceMu.Lock()
	defer s.nonceMu.Unlock()
	if nonce <= s.nonces[caller] {
		return false
	}
	s.nonces[caller] = nonce
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

func orderKeyFromRequest(w http.ResponseWriter, r *http.Request) (market.OrderKey, bool) {
	vars := mux.Vars(r)
	if !common.IsHexAddress(vars["collection"]) {
		respondError(w, http.StatusBadRequest, "invalid collection address", "")
		return market.OrderKey{}, false
	}
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid asset id", err.Error())
		return market.OrderKey{}, false
	}
	return market.OrderKey{
		Collection: common.HexToAddress(vars["collection"]),
		AssetID:    id,
	}, true
}

// respondBoardError maps the board error taxonomy onto HTTP statuses.
func respondBoardError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, market.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, market.ErrDuplicateOrder),
		errors.Is(err, market.ErrPriceMismatch),
		errors.Is(err, market.ErrAmountMismatch):
		status = http.StatusConflict
	case errors.Is(err, market.ErrUnauthorized),
		errors.Is(err, market.ErrNotOwner),
		errors.Is(err, market.ErrRegistryNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, market.ErrInsufficientBalance),
		errors.Is(err, market.ErrInsufficientAllowance):
		status = http.StatusPaymentRequired
	case errors.Is(err, market.ErrInvalidAmount),
		errors.Is(err, market.ErrInvalidFeeRate),
		errors.Is(err, market.ErrArithmeticOverflow),
		errors.Is(err, errUnknownOperation):
		status = http.StatusBadRequest
	}
	respondError(w, status, "operation rejected", err.Error())
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
