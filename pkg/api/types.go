package api

// API response types for REST endpoints and WebSocket messages

// BoardsInfo reports the immutable board configuration.
type BoardsInfo struct {
	AskFeeBps     int64 `json:"askFeeBps"`
	BiddingFeeBps int64 `json:"biddingFeeBps"`
}

// AskInfo represents a live ask.
type AskInfo struct {
	Collection string `json:"collection"`
	AssetID    uint64 `json:"assetId"`
	Seller     string `json:"seller"`
	Price      int64  `json:"price"`
	Fee        int64  `json:"fee"`
}

// BidInfo represents a live bid.
type BidInfo struct {
	Collection string `json:"collection"`
	AssetID    uint64 `json:"assetId"`
	Bidder     string `json:"bidder"`
	Amount     int64  `json:"amount"`
	Fee        int64  `json:"fee"`
}

// AccountInfo reports a settlement-token balance.
type AccountInfo struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}

// OperationResult acknowledges an accepted signed operation.
type OperationResult struct {
	Status string `json:"status"` // always "applied"
	Caller string `json:"caller"` // recovered signer
}

// ErrorResponse is the JSON body for non-2xx responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WSSubscribeRequest is the client → server WebSocket control message.
// Channels: "asks", "bids".
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}
