package api

// API response types for REST endpoints and WebSocket messages.
// Token amounts are base-10 strings; *Formatted fields apply the token's
// decimals.

// ==============================
// REST Response Types
// ==============================

// GatewayInfo is the current gateway configuration
type GatewayInfo struct {
	Address       string `json:"address"`
	Admin         string `json:"admin"`
	PendingAdmin  string `json:"pendingAdmin,omitempty"`
	Treasury      string `json:"treasury"`
	FeeBps        uint64 `json:"feeBps"`
	SwapMechanism string `json:"swapMechanism,omitempty"`
	NextOrderID   uint64 `json:"nextOrderId"`
	Seq           uint64 `json:"seq"`  // last committed call
	Root          string `json:"root"` // state root after that call
}

// AssetInfo reports whether an asset settles on the gateway
type AssetInfo struct {
	Address   string `json:"address"`
	Supported bool   `json:"supported"`
	Name      string `json:"name,omitempty"`
	Symbol    string `json:"symbol,omitempty"`
	Decimals  *uint8 `json:"decimals,omitempty"`
}

// OrderInfo is one ledger record
type OrderInfo struct {
	ID                string `json:"id"`
	Token             string `json:"token"`
	Amount            string `json:"amount"`
	AmountFormatted   string `json:"amountFormatted,omitempty"`
	Rate              string `json:"rate"`
	Creator           string `json:"creator"`
	RefundAddress     string `json:"refundAddress"`
	LiquidityProvider string `json:"liquidityProvider"`
	IsFulfilled       bool   `json:"isFulfilled"`
	IsRefunded        bool   `json:"isRefunded"`
	Timestamp         uint64 `json:"timestamp"` // unix seconds
}

// EstimateResponse is the expected swap output
type EstimateResponse struct {
	Path            []string `json:"path"`
	AmountIn        string   `json:"amountIn"`
	AmountOut       string   `json:"amountOut"`
	AmountFormatted string   `json:"amountOutFormatted,omitempty"`
}

// CallResponse is the outcome of a submitted signed call
type CallResponse struct {
	Status  string   `json:"status"` // "committed" or "reverted"
	Seq     uint64   `json:"seq,omitempty"`
	OrderID *uint64  `json:"orderId,omitempty"`
	Root    string   `json:"root,omitempty"`
	Logs    []LogMsg `json:"logs,omitempty"`
	Error   string   `json:"error,omitempty"`
	Kind    string   `json:"kind,omitempty"` // error kind, e.g. "token_not_supported"
}

// LogMsg is a contract log as clients see it
type LogMsg struct {
	Contract string            `json:"contract"`
	Name     string            `json:"name"`
	Fields   map[string]string `json:"fields"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// ==============================
// REST Request Types
// ==============================

// EstimateRequest is the payload for POST /api/v1/estimate
type EstimateRequest struct {
	Path   []string `json:"path"`
	Amount string   `json:"amount"`
}

// Signed calls use transaction.SignedCall as the body of POST /api/v1/calls.

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // "orders", "swaps", "config"
}

// WSMessage is pushed for every log of a committed call
type WSMessage struct {
	Channel string `json:"channel"`
	Seq     uint64 `json:"seq"`
	Time    uint64 `json:"time"`
	Log     LogMsg `json:"log"`
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status    string `json:"status"`
	Seq       uint64 `json:"seq"`
	WSClients int    `json:"wsClients"`
}
