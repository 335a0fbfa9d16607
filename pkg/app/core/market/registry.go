package market

import (
	"errors"
	"fmt"
	"sort"

	"github.com/uhyunpark/limitbook/pkg/app/core/orderbook"
)

var (
	ErrMarketNotFound = errors.New("market not found")
	ErrMarketExists   = errors.New("market already registered")
	ErrInvalidPair    = errors.New("invalid trading pair")
)

// MarketNotFoundError names the pair that has no book. It matches
// ErrMarketNotFound under errors.Is.
type MarketNotFoundError struct {
	Pair TradingPair
}

func (e *MarketNotFoundError) Error() string {
	return fmt.Sprintf("%s does not exist", e.Pair)
}

func (e *MarketNotFoundError) Is(target error) bool {
	return target == ErrMarketNotFound
}

// MarketRegistry maps each trading pair to its order book.
// It starts empty and holds no lock; the owner serialises access.
type MarketRegistry struct {
	books map[TradingPair]*orderbook.OrderBook
}

// NewMarketRegistry creates an empty market registry
func NewMarketRegistry() *MarketRegistry {
	return &MarketRegistry{
		books: make(map[TradingPair]*orderbook.OrderBook),
	}
}

// AddMarket creates an empty book for pair.
// Returns error if the pair is invalid or already registered.
func (mr *MarketRegistry) AddMarket(pair TradingPair) (*orderbook.OrderBook, error) {
	if err := pair.Validate(); err != nil {
		return nil, err
	}
	if _, exists := mr.books[pair]; exists {
		return nil, fmt.Errorf("%w: %s", ErrMarketExists, pair)
	}

	ob := orderbook.NewOrderBook()
	mr.books[pair] = ob
	return ob, nil
}

// Book returns the order book for pair or a *MarketNotFoundError.
func (mr *MarketRegistry) Book(pair TradingPair) (*orderbook.OrderBook, error) {
	ob, ok := mr.books[pair]
	if !ok {
		return nil, &MarketNotFoundError{Pair: pair}
	}
	return ob, nil
}

// PlaceLimitOrder rests o at p in pair's book. An unknown pair is reported
// before anything else is looked at, so it never touches any book.
func (mr *MarketRegistry) PlaceLimitOrder(pair TradingPair, p float64, o orderbook.Order) error {
	ob, err := mr.Book(pair)
	if err != nil {
		return err
	}
	return ob.AddOrder(p, o)
}

func (mr *MarketRegistry) Exists(pair TradingPair) bool {
	_, ok := mr.books[pair]
	return ok
}

// Pairs lists every registered pair sorted by name.
func (mr *MarketRegistry) Pairs() []TradingPair {
	pairs := make([]TradingPair, 0, len(mr.books))
	for p := range mr.books {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].String() < pairs[j].String() })
	return pairs
}

// Count returns the total number of registered markets
func (mr *MarketRegistry) Count() int {
	return len(mr.books)
}
