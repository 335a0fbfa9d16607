package orderbook

import "github.com/uhyunpark/limitbook/pkg/app/core/price"

// Limit is one price level: every order resting at exactly one price, in
// arrival order. The slice order is the time priority within the level.
type Limit struct {
	price  price.Price
	orders []Order
	// index is the Limit's slot in its side heap, maintained by the heap.
	index int
}

func NewLimit(p price.Price) *Limit {
	return &Limit{price: p, orders: make([]Order, 0, 4), index: -1}
}

func (l *Limit) Price() price.Price { return l.price }

// AddOrder appends o behind every order already at this level.
func (l *Limit) AddOrder(o Order) {
	l.orders = append(l.orders, o)
}

func (l *Limit) IsEmpty() bool { return len(l.orders) == 0 }

func (l *Limit) Len() int { return len(l.orders) }

// Orders returns a copy of the level's orders, oldest first.
func (l *Limit) Orders() []Order {
	out := make([]Order, len(l.orders))
	copy(out, l.orders)
	return out
}

// TotalSize sums the size of every order at the level.
func (l *Limit) TotalSize() float64 {
	var total float64
	for _, o := range l.orders {
		total += o.Size
	}
	return total
}

// Less orders Limits by price.
func (l *Limit) Less(other *Limit) bool {
	return l.price.Less(other.price)
}

// Equal reports whether both Limits sit at the same price, whatever they hold.
func (l *Limit) Equal(other *Limit) bool {
	return l.price == other.price
}
