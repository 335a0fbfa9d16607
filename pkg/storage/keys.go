package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/uhyunpark/limitbook/pkg/app/core/market"
)

// Journal key schema for Pebble storage:
//
//   m:<PAIR>        → MarketRecord
//   o:<8-byte seq>  → OrderRecord (big-endian, so iteration is arrival order)
//   seq             → last assigned order sequence

const (
	prefixMarket = "m:"
	prefixOrder  = "o:"
)

// marketKey returns the key for a market
// Format: "m:{BASE}_{QUOTE}"
func marketKey(pair market.TradingPair) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixMarket, pair))
}

func orderKey(seq uint64) []byte {
	k := make([]byte, len(prefixOrder)+8)
	copy(k, prefixOrder)
	binary.BigEndian.PutUint64(k[len(prefixOrder):], seq)
	return k
}

func kSeq() []byte { return []byte("seq") }

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
