package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/limitbook/pkg/app/core/market"
	"github.com/uhyunpark/limitbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/limitbook/pkg/app/core/price"
	"github.com/uhyunpark/limitbook/pkg/app/exchange"
)

// Server handles REST API and WebSocket connections
type Server struct {
	engine *exchange.Engine
	router *mux.Router
	hub    *Hub // WebSocket hub
	log    *zap.SugaredLogger

	corsOrigins []string
}

// NewServer creates a new API server backed by engine
func NewServer(engine *exchange.Engine, logger *zap.SugaredLogger, corsOrigins []string) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		engine:      engine,
		router:      mux.NewRouter(),
		hub:         NewHub(logger),
		log:         logger,
		corsOrigins: corsOrigins,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Market endpoints
	api.HandleFunc("/markets", s.handleGetMarkets).Methods("GET")
	api.HandleFunc("/markets", s.handleCreateMarket).Methods("POST")
	api.HandleFunc("/markets/{pair}/top", s.handleGetTop).Methods("GET")
	api.HandleFunc("/markets/{pair}/orderbook", s.handleGetOrderbook).Methods("GET")

	// Order submission
	api.HandleFunc("/markets/{pair}/orders", s.handlePlaceOrder).Methods("POST")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the router wrapped in the CORS policy
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start serves on addr until ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("api_listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	pairs := s.engine.Markets()

	response := make([]MarketInfo, len(pairs))
	for i, p := range pairs {
		response[i] = marketInfo(p)
	}

	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleCreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	pair := market.NewTradingPair(req.Base, req.Quote)
	if err := s.engine.AddMarket(r.Context(), pair); err != nil {
		s.respondEngineError(w, "create market failed", err)
		return
	}

	respondJSON(w, http.StatusCreated, marketInfo(pair))
}

func (s *Server) handleGetTop(w http.ResponseWriter, r *http.Request) {
	pair, ok := pairFromRequest(w, r)
	if !ok {
		return
	}

	top, err := s.engine.Top(pair)
	if err != nil {
		s.respondEngineError(w, "market not found", err)
		return
	}

	respondJSON(w, http.StatusOK, TopOfBook{
		Symbol:    pair.String(),
		BestBid:   top.BestBid,
		BestAsk:   top.BestAsk,
		StateHash: top.Hash.Hex(),
	})
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	pair, ok := pairFromRequest(w, r)
	if !ok {
		return
	}

	bidLevels, err := s.engine.Levels(pair, orderbook.Bid)
	if err != nil {
		s.respondEngineError(w, "orderbook not found", err)
		return
	}
	askLevels, err := s.engine.Levels(pair, orderbook.Ask)
	if err != nil {
		s.respondEngineError(w, "orderbook not found", err)
		return
	}

	respondJSON(w, http.StatusOK, OrderbookSnapshot{
		Symbol:    pair.String(),
		Bids:      priceLevels(bidLevels),
		Asks:      priceLevels(askLevels),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	pair, ok := pairFromRequest(w, r)
	if !ok {
		return
	}

	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !req.Side.Valid() {
		respondError(w, http.StatusBadRequest, "invalid side", "expected bid or ask")
		return
	}
	px, err := price.Parse(req.Price.String())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid price", err.Error())
		return
	}

	placed, err := s.engine.PlaceLimitOrderAt(r.Context(), pair, px, orderbook.NewOrder(req.Side, req.Size))
	if err != nil {
		s.respondEngineError(w, "order rejected", err)
		return
	}

	s.log.Debugw("order_submitted", "pair", pair.String(), "id", placed.ID, "price", px.String())

	respondJSON(w, http.StatusCreated, PlaceOrderResponse{
		Status: "accepted",
		Symbol: pair.String(),
		Price:  px,
		Order:  placed,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods (called from the engine)
// ==============================

// BroadcastTop pushes the new top of book for pair to WebSocket clients.
// It has the signature of exchange.Engine.OnOrder.
func (s *Server) BroadcastTop(pair market.TradingPair, p price.Price, o orderbook.Order) {
	bid, ask, err := s.engine.BestPrices(pair)
	if err != nil {
		s.log.Warnw("broadcast_skipped", "pair", pair.String(), "err", err)
		return
	}

	update := TopUpdate{
		Type:    "top",
		Symbol:  pair.String(),
		BestBid: bid,
		BestAsk: ask,
		Order: OrderEvent{
			ID:    o.ID,
			Side:  o.Side,
			Price: p,
			Size:  o.Size,
		},
		Timestamp: time.Now().UnixMilli(),
	}

	s.hub.BroadcastToChannel(bookChannel(pair), update)
}

// ==============================
// Helper Functions
// ==============================

func bookChannel(pair market.TradingPair) string {
	return "book:" + pair.String()
}

func marketInfo(p market.TradingPair) MarketInfo {
	return MarketInfo{Symbol: p.String(), BaseAsset: p.Base, QuoteAsset: p.Quote}
}

func priceLevels(levels []orderbook.Level) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = PriceLevel{Price: l.Price, Size: l.Size, Orders: l.Orders}
	}
	return out
}

func pairFromRequest(w http.ResponseWriter, r *http.Request) (market.TradingPair, bool) {
	pair, err := market.ParseTradingPair(mux.Vars(r)["pair"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid trading pair", err.Error())
		return market.TradingPair{}, false
	}
	return pair, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, market.ErrMarketNotFound):
		return http.StatusNotFound
	case errors.Is(err, market.ErrMarketExists):
		return http.StatusConflict
	case errors.Is(err, market.ErrInvalidPair),
		errors.Is(err, price.ErrInvalidPrice),
		errors.Is(err, orderbook.ErrInvalidSide):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondEngineError(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Errorw("request_failed", "msg", msg, "err", err)
	}
	respondError(w, status, msg, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   error,
		Message: message,
	})
}
