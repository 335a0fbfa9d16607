package storage

import (
	"github.com/uhyunpark/limitbook/pkg/app/core/market"
	"github.com/uhyunpark/limitbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/limitbook/pkg/app/core/price"
)

// MarketRecord is a journaled market registration.
type MarketRecord struct {
	Pair      market.TradingPair `json:"pair"`
	CreatedAt int64              `json:"createdAt"` // unix nanos
}

// OrderRecord is a journaled accepted order. Seq is assigned by the store and
// increases by one per appended order across all markets.
type OrderRecord struct {
	Seq   uint64             `json:"seq"`
	Pair  market.TradingPair `json:"pair"`
	Price price.Price        `json:"price"`
	Order orderbook.Order    `json:"order"`
}
