package orderbook

// limitHeap implements heap.Interface over *Limit. The same pointers live in the
// side's price map, so appending to a Limit never needs a heap fix-up: its key
// (the price) is immutable.
// Use container/heap to manipulate it (Init, Push, Pop, Remove).
type limitHeap struct {
	limits []*Limit
	// before reports whether a should sit above b.
	before func(a, b *Limit) bool
}

// newMinLimitHeap keeps the lowest price on top (bid side).
func newMinLimitHeap() *limitHeap {
	return &limitHeap{before: func(a, b *Limit) bool { return a.Less(b) }}
}

// newMaxLimitHeap keeps the highest price on top (ask side).
func newMaxLimitHeap() *limitHeap {
	return &limitHeap{before: func(a, b *Limit) bool { return b.Less(a) }}
}

func (h *limitHeap) Len() int           { return len(h.limits) }
func (h *limitHeap) Less(i, j int) bool { return h.before(h.limits[i], h.limits[j]) }

func (h *limitHeap) Swap(i, j int) {
	h.limits[i], h.limits[j] = h.limits[j], h.limits[i]
	h.limits[i].index = i
	h.limits[j].index = j
}

func (h *limitHeap) Push(x interface{}) {
	l := x.(*Limit)
	l.index = len(h.limits)
	h.limits = append(h.limits, l)
}

func (h *limitHeap) Pop() interface{} {
	old := h.limits
	n := len(old)
	l := old[n-1]
	old[n-1] = nil
	l.index = -1
	h.limits = old[:n-1]
	return l
}

// Peek returns the top Limit without removing it, or nil when empty.
func (h *limitHeap) Peek() *Limit {
	if len(h.limits) == 0 {
		return nil
	}
	return h.limits[0]
}
