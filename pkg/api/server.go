// Package api exposes the gateway over HTTP: read-only views of the
// configuration and ledger, swap estimates, signed call submission and a
// WebSocket feed of committed logs.
package api

import (
	"context"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/uhyunpark/hypergate/pkg/chain"
	"github.com/uhyunpark/hypergate/pkg/gateway"
	"github.com/uhyunpark/hypergate/pkg/transaction"
	"github.com/uhyunpark/hypergate/pkg/util"
)

const (
	maxBodyBytes    = 64 << 10
	shutdownTimeout = 10 * time.Second

	defaultListLimit = 50
	maxListLimit     = 500
)

// Config tunes the HTTP surface.
type Config struct {
	// RateLimit is the number of signed calls accepted per second across
	// all clients. Zero disables throttling.
	RateLimit      float64
	Burst          int
	AllowedOrigins []string
}

// Server handles REST API and WebSocket connections
type Server struct {
	chain   *chain.Chain
	gw      *gateway.Gateway
	exec    *transaction.Executor
	router  *mux.Router
	hub     *Hub
	limiter *rate.Limiter // nil when unthrottled
	cors    *cors.Cors
	logger  *zap.SugaredLogger
}

func NewServer(c *chain.Chain, gw *gateway.Gateway, exec *transaction.Executor, cfg Config, logger *zap.SugaredLogger) *Server {
	logger = util.OrNop(logger)
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:3001"}
	}

	s := &Server{
		chain:  c,
		gw:     gw,
		exec:   exec,
		router: mux.NewRouter(),
		hub:    NewHub(logger),
		logger: logger,
		cors: cors.New(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
		}),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/gateway", s.handleGetGateway).Methods("GET")
	api.HandleFunc("/assets/{address}", s.handleGetAsset).Methods("GET")
	api.HandleFunc("/orders", s.handleListOrders).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/estimate", s.handleEstimateQuery).Methods("GET")
	api.HandleFunc("/estimate", s.handleEstimatePath).Methods("POST")
	api.HandleFunc("/calls", s.handleSubmitCall).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the routed handler wrapped with CORS and request ids.
func (s *Server) Handler() http.Handler {
	return s.cors.Handler(requestID(s.router))
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Infow("api_server_starting", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info("api_server_stopped")
		return nil
	}
}

// RunFeed forwards logs of committed calls to WebSocket subscribers until
// ctx is done.
func (s *Server) RunFeed(ctx context.Context) {
	receipts, cancel := s.chain.Subscribe(256)
	defer cancel()
	s.forward(ctx, receipts)
}

func (s *Server) forward(ctx context.Context, receipts <-chan chain.Receipt) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-receipts:
			if !ok {
				return
			}
			if !r.Success {
				continue
			}
			for _, l := range r.Logs {
				channel := channelFor(s.gw.Address(), l)
				if channel == "" {
					continue
				}
				s.hub.BroadcastToChannel(channel, WSMessage{
					Channel: channel,
					Seq:     r.Seq,
					Time:    r.Time,
					Log:     toLogMsg(l),
				})
			}
		}
	}
}

// channelFor routes gateway logs to feed channels; other contracts' logs
// are not published.
func channelFor(gw common.Address, l chain.Log) string {
	if l.Contract != gw {
		return ""
	}
	switch l.Name {
	case gateway.EventOrderCreated, gateway.EventOrderFulfilled, gateway.EventOrderRefunded:
		return ChannelOrders
	case gateway.EventSwapExecuted:
		return ChannelSwaps
	default:
		return ChannelConfig
	}
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) view(r *http.Request, fn func(env *chain.Env) error) error {
	return s.chain.View(r.Context(), common.Address{}, fn)
}

func (s *Server) handleGetGateway(w http.ResponseWriter, r *http.Request) {
	var st gateway.Settings
	if err := s.view(r, func(env *chain.Env) error {
		st = s.gw.Settings(env)
		return nil
	}); err != nil {
		respondViewError(w, err)
		return
	}

	info := GatewayInfo{
		Address:     s.gw.Address().Hex(),
		Admin:       st.Admin.Hex(),
		Treasury:    st.Treasury.Hex(),
		FeeBps:      st.FeeBps,
		NextOrderID: st.NextOrderID,
		Seq:         s.chain.Seq(),
		Root:        s.chain.Root().Hex(),
	}
	if st.PendingAdmin != (common.Address{}) {
		info.PendingAdmin = st.PendingAdmin.Hex()
	}
	if st.SwapMechanism != (common.Address{}) {
		info.SwapMechanism = st.SwapMechanism.Hex()
	}
	respondJSON(w, info)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	addressStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addressStr) {
		respondError(w, http.StatusBadRequest, "invalid address", "invalid_address", "")
		return
	}
	addr := common.HexToAddress(addressStr)

	info := AssetInfo{Address: addr.Hex()}
	if err := s.view(r, func(env *chain.Env) error {
		info.Supported = s.gw.IsAssetSupported(env, addr)
		return nil
	}); err != nil {
		respondViewError(w, err)
		return
	}
	if meta, ok := s.metadata(addr); ok {
		d := meta.Decimals()
		info.Name, info.Symbol, info.Decimals = meta.Name(), meta.Symbol(), &d
	}
	respondJSON(w, info)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", "invalid_order_id", err.Error())
		return
	}

	var (
		o      gateway.Order
		exists bool
	)
	if err := s.view(r, func(env *chain.Env) error {
		exists = s.gw.OrderExists(env, id)
		o = s.gw.GetOrderInfo(env, id)
		return nil
	}); err != nil {
		respondViewError(w, err)
		return
	}
	if !exists {
		respondError(w, http.StatusNotFound, "order not found", "order_not_found", "")
		return
	}

	respondJSON(w, s.orderInfo(id, o))
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := gateway.OrderFilter{Limit: defaultListLimit}
	if v := q.Get("creator"); v != "" {
		if !common.IsHexAddress(v) {
			respondError(w, http.StatusBadRequest, "invalid creator", "invalid_address", v)
			return
		}
		f.Creator = common.HexToAddress(v)
	}
	if v := q.Get("from"); v != "" {
		from, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid from", "invalid_order_id", err.Error())
			return
		}
		f.FromID = from
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", "invalid_limit", v)
			return
		}
		f.Limit = min(limit, maxListLimit)
	}

	var records []gateway.OrderRecord
	if err := s.view(r, func(env *chain.Env) error {
		records = s.gw.ListOrders(env, f)
		return nil
	}); err != nil {
		respondViewError(w, err)
		return
	}
	out := make([]OrderInfo, 0, len(records))
	for _, rec := range records {
		out = append(out, s.orderInfo(rec.ID, rec.Order))
	}
	respondJSON(w, out)
}

func (s *Server) orderInfo(id uint64, o gateway.Order) OrderInfo {
	info := OrderInfo{
		ID:                strconv.FormatUint(id, 10),
		Token:             o.Token.Hex(),
		Amount:            o.Amount.String(),
		Rate:              o.Rate.String(),
		Creator:           o.Creator.Hex(),
		RefundAddress:     o.RefundAddress.Hex(),
		LiquidityProvider: o.LiquidityProvider.Hex(),
		IsFulfilled:       o.IsFulfilled,
		IsRefunded:        o.IsRefunded,
		Timestamp:         o.Timestamp,
	}
	if meta, ok := s.metadata(o.Token); ok {
		info.AmountFormatted = formatAmount(o.Amount, meta.Decimals())
	}
	return info
}

func (s *Server) handleEstimateQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.estimate(w, r, []string{q.Get("in"), q.Get("out")}, q.Get("amount"))
}

func (s *Server) handleEstimatePath(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "invalid_request", err.Error())
		return
	}
	s.estimate(w, r, req.Path, req.Amount)
}

func (s *Server) estimate(w http.ResponseWriter, r *http.Request, rawPath []string, rawAmount string) {
	path := make([]common.Address, len(rawPath))
	for i, p := range rawPath {
		if !common.IsHexAddress(p) {
			respondError(w, http.StatusBadRequest, "invalid address", "invalid_address", p)
			return
		}
		path[i] = common.HexToAddress(p)
	}
	amount, ok := new(big.Int).SetString(rawAmount, 10)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid amount", "invalid_amount", rawAmount)
		return
	}

	var out *big.Int
	err := s.view(r, func(env *chain.Env) error {
		var err error
		if len(path) == 2 {
			out, err = s.gw.EstimateSwapOutput(env, path[0], path[1], amount)
		} else {
			out, err = s.gw.EstimateSwapOutputWithPath(env, path, amount)
		}
		return err
	})
	if err != nil {
		kind, status := classify(err)
		respondError(w, status, "estimate failed", kind, err.Error())
		return
	}

	resp := EstimateResponse{Path: make([]string, len(path)), AmountIn: amount.String(), AmountOut: out.String()}
	for i, p := range path {
		resp.Path[i] = p.Hex()
	}
	if meta, ok := s.metadata(path[len(path)-1]); ok {
		resp.AmountFormatted = formatAmount(out, meta.Decimals())
	}
	respondJSON(w, resp)
}

func (s *Server) handleSubmitCall(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	if s.limiter != nil && !s.limiter.Allow() {
		respondError(w, http.StatusTooManyRequests, "rate limited", "rate_limited", "")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body", "invalid_request", err.Error())
		return
	}
	call, err := transaction.ParseCall(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid call", "invalid_call", err.Error())
		return
	}

	res, err := s.exec.Submit(r.Context(), call)
	if err != nil {
		kind, status := classify(err)
		s.logger.Infow("call_rejected", "request_id", reqID, "type", string(call.Type), "kind", kind, "error", err.Error())
		respondStatus(w, status, CallResponse{Status: "reverted", Error: err.Error(), Kind: kind})
		return
	}

	resp := CallResponse{
		Status:  "committed",
		Seq:     res.Receipt.Seq,
		OrderID: res.OrderID,
		Root:    res.Receipt.Root.Hex(),
		Logs:    make([]LogMsg, len(res.Receipt.Logs)),
	}
	for i, l := range res.Receipt.Logs {
		resp.Logs[i] = toLogMsg(l)
	}
	s.logger.Infow("call_accepted", "request_id", reqID, "type", string(call.Type), "seq", resp.Seq)
	respondJSON(w, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, HealthResponse{Status: "ok", Seq: s.chain.Seq(), WSClients: s.hub.ClientCount()})
}

// ==============================
// Helper Functions
// ==============================

type assetMetadata interface {
	Name() string
	Symbol() string
	Decimals() uint8
}

func (s *Server) metadata(addr common.Address) (assetMetadata, bool) {
	contract, err := s.chain.Contract(addr)
	if err != nil {
		return nil, false
	}
	meta, ok := contract.(assetMetadata)
	return meta, ok
}

// formatAmount renders amount with the token's decimals, e.g. 1500000 at
// 6 decimals is "1.5".
func formatAmount(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

func toLogMsg(l chain.Log) LogMsg {
	return LogMsg{Contract: l.Contract.Hex(), Name: l.Name, Fields: l.Fields}
}

// requestID tags every response with X-Request-ID, reusing the caller's
// id when it is a valid UUID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	respondStatus(w, http.StatusOK, data)
}

func respondStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondViewError reports a failed read. A cancelled or timed out request
// maps to its own status; anything else is a 500.
func respondViewError(w http.ResponseWriter, err error) {
	kind, status := classify(err)
	respondError(w, status, "state read failed", kind, err.Error())
}

func respondError(w http.ResponseWriter, status int, error string, kind string, message string) {
	respondStatus(w, status, ErrorResponse{
		Error:   error,
		Kind:    kind,
		Message: message,
	})
}
