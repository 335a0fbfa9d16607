// Package exchange is the service layer around the order books: it owns the
// market registry, stamps and journals accepted orders, and rebuilds every
// book from the journal on start.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/uhyunpark/limitbook/pkg/app/core/market"
	"github.com/uhyunpark/limitbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/limitbook/pkg/app/core/price"
	"github.com/uhyunpark/limitbook/pkg/storage"
	"github.com/uhyunpark/limitbook/pkg/util"
)

// Journal persists markets and accepted orders.
type Journal interface {
	SaveMarket(rec storage.MarketRecord) error
	LoadMarkets() ([]storage.MarketRecord, error)
	AppendOrder(pair market.TradingPair, p price.Price, o orderbook.Order) (storage.OrderRecord, error)
	ForEachOrder(fn func(storage.OrderRecord) error) error
}

var ErrNotStarted = errors.New("engine not started")

// Top is the best price on each side of one market.
type Top struct {
	Pair    market.TradingPair `json:"pair"`
	BestBid *price.Price       `json:"bestBid"`
	BestAsk *price.Price       `json:"bestAsk"`
	Hash    common.Hash        `json:"hash"`
}

// Engine routes orders to the book of their market. Every method takes the
// engine lock, so each book only ever sees one caller at a time.
type Engine struct {
	mu       sync.Mutex
	registry *market.MarketRegistry
	journal  Journal
	started  bool

	log   *zap.SugaredLogger
	clock util.Clock
	newID func(time.Time) string

	// OnOrder is called after an order is accepted, outside the engine lock.
	// Set it before Start.
	OnOrder func(pair market.TradingPair, p price.Price, o orderbook.Order)
}

type Option func(*Engine)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) { e.log = l }
}

func WithClock(c util.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDSource replaces the ULID order id generator.
func WithIDSource(fn func(time.Time) string) Option {
	return func(e *Engine) { e.newID = fn }
}

func New(journal Journal, opts ...Option) *Engine {
	e := &Engine{
		registry: market.NewMarketRegistry(),
		journal:  journal,
		log:      zap.NewNop().Sugar(),
		clock:    util.RealClock{},
	}
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	e.newID = func(t time.Time) string {
		return ulid.MustNew(ulid.Timestamp(t), entropy).String()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start rebuilds every market and book from the journal. It must be called
// once before orders are placed.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil
	}

	markets, err := e.journal.LoadMarkets()
	if err != nil {
		return fmt.Errorf("load markets: %w", err)
	}
	for _, rec := range markets {
		if _, err := e.registry.AddMarket(rec.Pair); err != nil {
			return fmt.Errorf("replay market %s: %w", rec.Pair, err)
		}
	}

	replayed := 0
	err = e.journal.ForEachOrder(func(rec storage.OrderRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		ob, err := e.registry.Book(rec.Pair)
		if err != nil {
			return fmt.Errorf("replay order seq=%d: %w", rec.Seq, err)
		}
		if err := ob.AddOrderAt(rec.Price, rec.Order); err != nil {
			return fmt.Errorf("replay order seq=%d: %w", rec.Seq, err)
		}
		replayed++
		return nil
	})
	if err != nil {
		return err
	}

	for _, pair := range e.registry.Pairs() {
		ob, _ := e.registry.Book(pair)
		if err := ob.CheckIntegrity(); err != nil {
			return fmt.Errorf("replay %s: %w", pair, err)
		}
		e.log.Infow("market_restored",
			"pair", pair.String(),
			"bid_levels", ob.Depth(orderbook.Bid),
			"ask_levels", ob.Depth(orderbook.Ask),
			"state_hash", ob.StateHash().Hex())
	}

	e.started = true
	e.log.Infow("journal_replayed", "markets", len(markets), "orders", replayed)
	return nil
}

// AddMarket registers pair with an empty book and journals it.
func (e *Engine) AddMarket(ctx context.Context, pair market.TradingPair) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return ErrNotStarted
	}
	if err := pair.Validate(); err != nil {
		return err
	}
	if e.registry.Exists(pair) {
		return fmt.Errorf("%w: %s", market.ErrMarketExists, pair)
	}

	rec := storage.MarketRecord{Pair: pair, CreatedAt: e.clock.Now().UnixNano()}
	if err := e.journal.SaveMarket(rec); err != nil {
		return fmt.Errorf("journal market %s: %w", pair, err)
	}
	if _, err := e.registry.AddMarket(pair); err != nil {
		return err
	}

	e.log.Infow("market_added", "pair", pair.String())
	return nil
}

// PlaceLimitOrder rests o at price p in the book for pair. The returned order
// carries the id and timestamp the engine assigned.
func (e *Engine) PlaceLimitOrder(ctx context.Context, pair market.TradingPair, p float64, o orderbook.Order) (orderbook.Order, error) {
	px, err := price.FromFloat(p)
	if err != nil {
		// an unknown market is still reported as such
		e.mu.Lock()
		_, lookupErr := e.registry.Book(pair)
		e.mu.Unlock()
		if lookupErr != nil {
			return orderbook.Order{}, lookupErr
		}
		return orderbook.Order{}, err
	}
	return e.PlaceLimitOrderAt(ctx, pair, px, o)
}

// PlaceLimitOrderAt is PlaceLimitOrder for an already constructed Price.
// Unknown markets return a *market.MarketNotFoundError and touch nothing.
func (e *Engine) PlaceLimitOrderAt(ctx context.Context, pair market.TradingPair, p price.Price, o orderbook.Order) (orderbook.Order, error) {
	if err := ctx.Err(); err != nil {
		return orderbook.Order{}, err
	}

	e.mu.Lock()
	placed, err := e.place(pair, p, o)
	e.mu.Unlock()
	if err != nil {
		return orderbook.Order{}, err
	}

	if e.OnOrder != nil {
		e.OnOrder(pair, p, placed)
	}
	return placed, nil
}

func (e *Engine) place(pair market.TradingPair, p price.Price, o orderbook.Order) (orderbook.Order, error) {
	if !e.started {
		return orderbook.Order{}, ErrNotStarted
	}

	ob, err := e.registry.Book(pair)
	if err != nil {
		e.log.Warnw("order_rejected", "pair", pair.String(), "err", err)
		return orderbook.Order{}, err
	}
	if !o.Side.Valid() {
		return orderbook.Order{}, fmt.Errorf("%w: %d", orderbook.ErrInvalidSide, int8(o.Side))
	}

	now := e.clock.Now()
	o.ID = e.newID(now)
	o.Timestamp = now.UnixNano()

	// journal first: a book never holds an order the journal lost
	rec, err := e.journal.AppendOrder(pair, p, o)
	if err != nil {
		return orderbook.Order{}, fmt.Errorf("journal order: %w", err)
	}
	if err := ob.AddOrderAt(p, o); err != nil {
		return orderbook.Order{}, err
	}

	e.log.Debugw("order_placed",
		"pair", pair.String(),
		"seq", rec.Seq,
		"id", o.ID,
		"side", o.Side.String(),
		"price", p.String(),
		"size", o.Size)
	return o, nil
}

// Markets lists registered pairs sorted by name.
func (e *Engine) Markets() []market.TradingPair {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Pairs()
}

// BestBid returns the lowest resting bid of pair.
func (e *Engine) BestBid(pair market.TradingPair) (price.Price, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ob, err := e.registry.Book(pair)
	if err != nil {
		return price.Price{}, false, err
	}
	p, ok := ob.BestBid()
	return p, ok, nil
}

// BestAsk returns the highest resting ask of pair.
func (e *Engine) BestAsk(pair market.TradingPair) (price.Price, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ob, err := e.registry.Book(pair)
	if err != nil {
		return price.Price{}, false, err
	}
	p, ok := ob.BestAsk()
	return p, ok, nil
}

// BestPrices reads both best prices in one consistent step. A nil price means
// that side is empty. It costs two heap peeks, so it suits per-order paths.
func (e *Engine) BestPrices(pair market.TradingPair) (bid, ask *price.Price, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ob, err := e.registry.Book(pair)
	if err != nil {
		return nil, nil, err
	}
	bid, ask = bestPrices(ob)
	return bid, ask, nil
}

// Top is BestPrices plus the book digest. The digest walks every resting
// order, so keep it off per-order paths.
func (e *Engine) Top(pair market.TradingPair) (Top, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ob, err := e.registry.Book(pair)
	if err != nil {
		return Top{}, err
	}

	top := Top{Pair: pair, Hash: ob.StateHash()}
	top.BestBid, top.BestAsk = bestPrices(ob)
	return top, nil
}

func bestPrices(ob *orderbook.OrderBook) (bid, ask *price.Price) {
	if p, ok := ob.BestBid(); ok {
		bid = &p
	}
	if p, ok := ob.BestAsk(); ok {
		ask = &p
	}
	return bid, ask
}

// Levels returns the depth of one side of pair in display order.
func (e *Engine) Levels(pair market.TradingPair, s orderbook.Side) ([]orderbook.Level, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ob, err := e.registry.Book(pair)
	if err != nil {
		return nil, err
	}
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", orderbook.ErrInvalidSide, int8(s))
	}
	return ob.Levels(s), nil
}

func (e *Engine) StateHash(pair market.TradingPair) (common.Hash, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ob, err := e.registry.Book(pair)
	if err != nil {
		return common.Hash{}, err
	}
	return ob.StateHash(), nil
}
