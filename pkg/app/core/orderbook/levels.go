package orderbook

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	"github.com/uhyunpark/limitbook/pkg/app/core/price"
)

// Level is an aggregated view of one Limit.
type Level struct {
	Price  price.Price `json:"price"`
	Size   float64     `json:"size"`
	Orders int         `json:"orders"`
}

// Levels returns side s in display order: bids high to low, asks low to high.
// This is independent of the resting-side priority heaps.
func (ob *OrderBook) Levels(s Side) []Level {
	bs, err := ob.side(s)
	if err != nil {
		return nil
	}

	levels := make([]Level, 0, len(bs.byPrice))
	for p, l := range bs.byPrice {
		if l.IsEmpty() {
			continue
		}
		levels = append(levels, Level{Price: p, Size: l.TotalSize(), Orders: l.Len()})
	}

	if s == Bid {
		sort.Slice(levels, func(i, j int) bool { return levels[j].Price.Less(levels[i].Price) })
	} else {
		sort.Slice(levels, func(i, j int) bool { return levels[i].Price.Less(levels[j].Price) })
	}
	return levels
}

// StateHash is a Keccak-256 digest of every resting order, walked side by side
// in display order and oldest first within a level. Two books hash equal iff
// they hold the same orders at the same prices in the same arrival order.
func (ob *OrderBook) StateHash() common.Hash {
	h := sha3.NewLegacyKeccak256()
	var buf [8]byte

	for _, s := range []Side{Bid, Ask} {
		h.Write([]byte(s.String()))
		bs, _ := ob.side(s)
		levels := ob.Levels(s)
		binary.BigEndian.PutUint64(buf[:], uint64(len(levels)))
		h.Write(buf[:])
		for _, lv := range levels {
			l := bs.byPrice[lv.Price]

			binary.BigEndian.PutUint64(buf[:], lv.Price.Integer())
			h.Write(buf[:])
			binary.BigEndian.PutUint64(buf[:], lv.Price.Fractional())
			h.Write(buf[:])
			binary.BigEndian.PutUint64(buf[:], uint64(l.Len()))
			h.Write(buf[:])

			for _, o := range l.orders {
				binary.BigEndian.PutUint64(buf[:], math.Float64bits(o.Size))
				h.Write(buf[:])
				// length prefix keeps the encoding injective across ids
				binary.BigEndian.PutUint64(buf[:], uint64(len(o.ID)))
				h.Write(buf[:])
				h.Write([]byte(o.ID))
			}
		}
	}

	return common.BytesToHash(h.Sum(nil))
}
