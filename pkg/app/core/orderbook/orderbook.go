package orderbook

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/uhyunpark/limitbook/pkg/app/core/price"
)

var (
	// ErrInvalidPrice is returned for negative or non-finite prices.
	ErrInvalidPrice = price.ErrInvalidPrice
	ErrInvalidSide  = errors.New("invalid order side")
	// ErrIndexDiverged means a side's price map and priority heap no longer
	// hold the same set of Limits.
	ErrIndexDiverged = errors.New("price index and priority heap diverged")
)

// bookSide holds two indices over one set of Limits: byPrice for exact
// lookup and heap for best-price access. Both hold the same *Limit.
type bookSide struct {
	byPrice map[price.Price]*Limit
	heap    *limitHeap
	orders  int
}

func newBookSide(h *limitHeap) *bookSide {
	heap.Init(h)
	return &bookSide{
		byPrice: make(map[price.Price]*Limit),
		heap:    h,
	}
}

// OrderBook aggregates resting orders for one market.
//
// The bid heap yields the lowest bid first and the ask heap the highest ask
// first. These are resting-side priority views; a crossing engine needs its
// own "best price to trade against" view.
//
// OrderBook is not safe for concurrent use. Callers serialise access per book.
type OrderBook struct {
	bids *bookSide
	asks *bookSide
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids: newBookSide(newMinLimitHeap()),
		asks: newBookSide(newMaxLimitHeap()),
	}
}

func (ob *OrderBook) side(s Side) (*bookSide, error) {
	switch s {
	case Bid:
		return ob.bids, nil
	case Ask:
		return ob.asks, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidSide, int8(s))
	}
}

// AddOrder rests o at price p. The book is left untouched when p is not a
// valid price or o has no valid side. Order size is not validated.
func (ob *OrderBook) AddOrder(p float64, o Order) error {
	px, err := price.FromFloat(p)
	if err != nil {
		return err
	}
	return ob.AddOrderAt(px, o)
}

// AddOrderAt is AddOrder for an already constructed Price.
func (ob *OrderBook) AddOrderAt(p price.Price, o Order) error {
	bs, err := ob.side(o.Side)
	if err != nil {
		return err
	}

	if l, ok := bs.byPrice[p]; ok {
		l.AddOrder(o)
		bs.orders++
		return nil
	}

	// New price level: index it in the map and the heap together.
	l := NewLimit(p)
	l.AddOrder(o)
	bs.byPrice[p] = l
	heap.Push(bs.heap, l)
	bs.orders++
	return nil
}

// BestBid returns the lowest bid price resting in the book.
func (ob *OrderBook) BestBid() (price.Price, bool) {
	return ob.bids.best()
}

// BestAsk returns the highest ask price resting in the book.
func (ob *OrderBook) BestAsk() (price.Price, bool) {
	return ob.asks.best()
}

// best peeks the heap top. An empty Limit found on top is dropped from both
// indices before looking again, so empty levels are never reported.
func (bs *bookSide) best() (price.Price, bool) {
	for {
		top := bs.heap.Peek()
		if top == nil {
			return price.Price{}, false
		}
		if !top.IsEmpty() {
			return top.Price(), true
		}
		heap.Pop(bs.heap)
		delete(bs.byPrice, top.Price())
	}
}

// Limit looks up the level at exactly p on side s.
func (ob *OrderBook) Limit(s Side, p price.Price) (*Limit, bool) {
	bs, err := ob.side(s)
	if err != nil {
		return nil, false
	}
	l, ok := bs.byPrice[p]
	return l, ok
}

// Depth returns the number of price levels on side s.
func (ob *OrderBook) Depth(s Side) int {
	bs, err := ob.side(s)
	if err != nil {
		return 0
	}
	return len(bs.byPrice)
}

// OrderCount returns the number of orders resting on side s.
func (ob *OrderBook) OrderCount(s Side) int {
	bs, err := ob.side(s)
	if err != nil {
		return 0
	}
	return bs.orders
}

// CheckIntegrity verifies that each side's price map and heap index the same
// Limits exactly once and that the heap ordering holds.
func (ob *OrderBook) CheckIntegrity() error {
	if err := ob.bids.check(); err != nil {
		return fmt.Errorf("bids: %w", err)
	}
	if err := ob.asks.check(); err != nil {
		return fmt.Errorf("asks: %w", err)
	}
	return nil
}

func (bs *bookSide) check() error {
	limits := bs.heap.limits
	if len(limits) != len(bs.byPrice) {
		return fmt.Errorf("%w: %d levels in map, %d in heap", ErrIndexDiverged, len(bs.byPrice), len(limits))
	}

	seen := make(map[price.Price]struct{}, len(limits))
	orders := 0
	for i, l := range limits {
		if _, dup := seen[l.price]; dup {
			return fmt.Errorf("%w: level %s appears twice in heap", ErrIndexDiverged, l.price)
		}
		seen[l.price] = struct{}{}

		if indexed, ok := bs.byPrice[l.price]; !ok || indexed != l {
			return fmt.Errorf("%w: heap level %s missing from map", ErrIndexDiverged, l.price)
		}
		if l.index != i {
			return fmt.Errorf("%w: level %s at slot %d records slot %d", ErrIndexDiverged, l.price, i, l.index)
		}
		if i > 0 && bs.heap.Less(i, (i-1)/2) {
			return fmt.Errorf("%w: heap order broken at level %s", ErrIndexDiverged, l.price)
		}
		orders += l.Len()
	}

	if orders != bs.orders {
		return fmt.Errorf("%w: %d orders in levels, %d counted", ErrIndexDiverged, orders, bs.orders)
	}
	return nil
}
