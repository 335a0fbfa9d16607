package storage

import (
	"sort"
	"sync"

	"github.com/uhyunpark/limitbook/pkg/app/core/market"
	"github.com/uhyunpark/limitbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/limitbook/pkg/app/core/price"
)

// MemStore is an in-memory journal with the same behaviour as PebbleStore.
type MemStore struct {
	mu      sync.Mutex
	markets map[market.TradingPair]MarketRecord
	orders  []OrderRecord
}

func NewMemStore() *MemStore {
	return &MemStore{markets: make(map[market.TradingPair]MarketRecord)}
}

func (s *MemStore) Close() error { return nil }

func (s *MemStore) SaveMarket(rec MarketRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets[rec.Pair] = rec
	return nil
}

func (s *MemStore) LoadMarkets() ([]MarketRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MarketRecord, 0, len(s.markets))
	for _, rec := range s.markets {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pair.String() < out[j].Pair.String() })
	return out, nil
}

func (s *MemStore) AppendOrder(pair market.TradingPair, p price.Price, o orderbook.Order) (OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := OrderRecord{Seq: uint64(len(s.orders)) + 1, Pair: pair, Price: p, Order: o}
	s.orders = append(s.orders, rec)
	return rec, nil
}

func (s *MemStore) ForEachOrder(fn func(OrderRecord) error) error {
	s.mu.Lock()
	orders := make([]OrderRecord, len(s.orders))
	copy(orders, s.orders)
	s.mu.Unlock()

	for _, rec := range orders {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemStore) LastSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(len(s.orders))
}
