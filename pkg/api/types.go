package api

import (
	"encoding/json"

	"github.com/uhyunpark/limitbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/limitbook/pkg/app/core/price"
)

// API request/response types for REST endpoints and WebSocket messages

// ==============================
// REST Types
// ==============================

// MarketInfo describes one registered market
type MarketInfo struct {
	Symbol     string `json:"symbol"`     // e.g., "BTC_USD"
	BaseAsset  string `json:"baseAsset"`  // e.g., "BTC"
	QuoteAsset string `json:"quoteAsset"` // e.g., "USD"
}

// CreateMarketRequest registers a new market
type CreateMarketRequest struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

// PlaceOrderRequest rests a limit order.
// Price may be sent as a JSON number or a decimal string ("22.1").
type PlaceOrderRequest struct {
	Side  orderbook.Side `json:"side"` // "bid"/"buy" or "ask"/"sell"
	Price json.Number    `json:"price"`
	Size  float64        `json:"size"`
}

// PlaceOrderResponse echoes the accepted order
type PlaceOrderResponse struct {
	Status string          `json:"status"` // "accepted"
	Symbol string          `json:"symbol"`
	Price  price.Price     `json:"price"`
	Order  orderbook.Order `json:"order"`
}

// TopOfBook is the best price on each side; a nil price means the side is empty
type TopOfBook struct {
	Symbol    string       `json:"symbol"`
	BestBid   *price.Price `json:"bestBid"`
	BestAsk   *price.Price `json:"bestAsk"`
	StateHash string       `json:"stateHash"`
}

// OrderbookSnapshot represents current orderbook state
type OrderbookSnapshot struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`      // Sorted high to low
	Asks      []PriceLevel `json:"asks"`      // Sorted low to high
	Timestamp int64        `json:"timestamp"` // Unix milliseconds
}

// PriceLevel aggregates every order resting at one price
type PriceLevel struct {
	Price  price.Price `json:"price"`
	Size   float64     `json:"size"`
	Orders int         `json:"orders"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["book:BTC_USD"]
}

// TopUpdate is pushed on "book:<SYMBOL>" after every accepted order
type TopUpdate struct {
	Type      string       `json:"type"` // "top"
	Symbol    string       `json:"symbol"`
	BestBid   *price.Price `json:"bestBid"`
	BestAsk   *price.Price `json:"bestAsk"`
	Order     OrderEvent   `json:"order"`
	Timestamp int64        `json:"timestamp"`
}

// OrderEvent is the order that triggered an update
type OrderEvent struct {
	ID    string         `json:"id"`
	Side  orderbook.Side `json:"side"`
	Price price.Price    `json:"price"`
	Size  float64        `json:"size"`
}
