package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/limitbook/pkg/app/core/market"
	"github.com/uhyunpark/limitbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/limitbook/pkg/app/core/price"
)

// PebbleStore journals markets and accepted orders so books can be rebuilt
// after a restart.
type PebbleStore struct {
	db   *pebble.DB
	sync *pebble.WriteOptions

	mu  sync.Mutex
	seq uint64
}

// NewPebbleStore opens (or creates) the journal at path. When syncWrites is
// false, appends are not fsynced individually.
func NewPebbleStore(path string, syncWrites bool) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	s := &PebbleStore{db: db, sync: pebble.NoSync}
	if syncWrites {
		s.sync = pebble.Sync
	}

	val, closer, err := db.Get(kSeq())
	switch {
	case err == nil:
		if len(val) == 8 {
			s.seq = binary.BigEndian.Uint64(val)
		}
		closer.Close()
	case errors.Is(err, pebble.ErrNotFound):
	default:
		db.Close()
		return nil, fmt.Errorf("read journal sequence: %w", err)
	}

	return s, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// LastSeq returns the sequence of the most recently appended order.
func (s *PebbleStore) LastSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// SaveMarket persists a market registration
func (s *PebbleStore) SaveMarket(rec MarketRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal market: %w", err)
	}
	if err := s.db.Set(marketKey(rec.Pair), data, s.sync); err != nil {
		return fmt.Errorf("failed to save market: %w", err)
	}
	return nil
}

// LoadMarkets loads every journaled market, ordered by pair name.
func (s *PebbleStore) LoadMarkets() ([]MarketRecord, error) {
	prefix := []byte(prefixMarket)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate markets: %w", err)
	}
	defer iter.Close()

	var markets []MarketRecord
	for iter.First(); iter.Valid(); iter.Next() {
		var rec MarketRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal market %q: %w", iter.Key(), err)
		}
		markets = append(markets, rec)
	}
	return markets, iter.Error()
}

// AppendOrder assigns the next sequence number and persists the order and
// the new sequence in one batch.
func (s *PebbleStore) AppendOrder(pair market.TradingPair, p price.Price, o orderbook.Order) (OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := OrderRecord{Seq: s.seq + 1, Pair: pair, Price: p, Order: o}
	data, err := json.Marshal(rec)
	if err != nil {
		return OrderRecord{}, fmt.Errorf("failed to marshal order: %w", err)
	}

	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], rec.Seq)

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(orderKey(rec.Seq), data, nil); err != nil {
		return OrderRecord{}, fmt.Errorf("failed to save order: %w", err)
	}
	if err := b.Set(kSeq(), seqBuf[:], nil); err != nil {
		return OrderRecord{}, fmt.Errorf("failed to save sequence: %w", err)
	}
	if err := b.Commit(s.sync); err != nil {
		return OrderRecord{}, fmt.Errorf("failed to commit order: %w", err)
	}

	s.seq = rec.Seq
	return rec, nil
}

// ForEachOrder visits journaled orders in sequence order. It stops at the
// first error returned by fn and returns it.
func (s *PebbleStore) ForEachOrder(fn func(OrderRecord) error) error {
	prefix := []byte(prefixOrder)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to iterate orders: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var rec OrderRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return fmt.Errorf("failed to unmarshal order %x: %w", iter.Key(), err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}
