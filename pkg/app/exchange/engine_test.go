package exchange

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/limitbook/pkg/app/core/market"
	"github.com/uhyunpark/limitbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/limitbook/pkg/app/core/price"
	"github.com/uhyunpark/limitbook/pkg/storage"
	"github.com/uhyunpark/limitbook/pkg/util"
)

var btcUSD = market.NewTradingPair("BTC", "USD")

func seqIDs() func(time.Time) string {
	n := 0
	return func(time.Time) string {
		n++
		return fmt.Sprintf("o-%d", n)
	}
}

func startedEngine(t *testing.T, j Journal, opts ...Option) *Engine {
	t.Helper()
	e := New(j, opts...)
	require.NoError(t, e.Start(context.Background()))
	return e
}

func TestEngine_RequiresStart(t *testing.T) {
	e := New(storage.NewMemStore())
	ctx := context.Background()

	assert.ErrorIs(t, e.AddMarket(ctx, btcUSD), ErrNotStarted)
	_, err := e.PlaceLimitOrderAt(ctx, btcUSD, price.MustFromFloat(1), orderbook.NewOrder(orderbook.Bid, 1))
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestEngine_PlaceLimitOrderStampsOrder(t *testing.T) {
	clock := util.NewManualClock(time.Unix(1700000000, 0))
	e := startedEngine(t, storage.NewMemStore(), WithClock(clock), WithIDSource(seqIDs()))
	ctx := context.Background()
	require.NoError(t, e.AddMarket(ctx, btcUSD))

	o, err := e.PlaceLimitOrder(ctx, btcUSD, 22.1, orderbook.NewOrder(orderbook.Bid, 20.5))
	require.NoError(t, err)
	assert.Equal(t, "o-1", o.ID)
	assert.Equal(t, clock.Now().UnixNano(), o.Timestamp)
	assert.Equal(t, orderbook.Bid, o.Side)
	assert.Equal(t, 20.5, o.Size)

	best, ok, err := e.BestBid(btcUSD)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, price.MustFromFloat(22.1), best)
}

func TestEngine_DefaultIDsAreUnique(t *testing.T) {
	e := startedEngine(t, storage.NewMemStore())
	ctx := context.Background()
	require.NoError(t, e.AddMarket(ctx, btcUSD))

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		o, err := e.PlaceLimitOrder(ctx, btcUSD, 10, orderbook.NewOrder(orderbook.Ask, 1))
		require.NoError(t, err)
		require.Len(t, o.ID, 26)
		require.False(t, seen[o.ID], "duplicate id %s", o.ID)
		seen[o.ID] = true
	}
}

func TestEngine_UnknownMarket(t *testing.T) {
	j := storage.NewMemStore()
	e := startedEngine(t, j)
	ctx := context.Background()
	require.NoError(t, e.AddMarket(ctx, btcUSD))
	before, err := e.StateHash(btcUSD)
	require.NoError(t, err)

	ethUSD := market.NewTradingPair("ETH", "USD")
	_, err = e.PlaceLimitOrder(ctx, ethUSD, 22.1, orderbook.NewOrder(orderbook.Bid, 20.5))
	require.Error(t, err)
	assert.EqualError(t, err, "ETH_USD does not exist")
	assert.ErrorIs(t, err, market.ErrMarketNotFound)

	var nf *market.MarketNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, ethUSD, nf.Pair)

	// an invalid price on an unknown market still reports the market
	_, err = e.PlaceLimitOrder(ctx, ethUSD, -1, orderbook.NewOrder(orderbook.Bid, 1))
	assert.ErrorIs(t, err, market.ErrMarketNotFound)

	after, err := e.StateHash(btcUSD)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, uint64(0), j.LastSeq())
	assert.Equal(t, []market.TradingPair{btcUSD}, e.Markets())
}

func TestEngine_RejectsInvalidOrderWithoutJournaling(t *testing.T) {
	j := storage.NewMemStore()
	e := startedEngine(t, j)
	ctx := context.Background()
	require.NoError(t, e.AddMarket(ctx, btcUSD))

	_, err := e.PlaceLimitOrder(ctx, btcUSD, -3, orderbook.NewOrder(orderbook.Bid, 1))
	assert.ErrorIs(t, err, price.ErrInvalidPrice)

	_, err = e.PlaceLimitOrder(ctx, btcUSD, 3, orderbook.Order{Side: 0, Size: 1})
	assert.ErrorIs(t, err, orderbook.ErrInvalidSide)

	assert.Equal(t, uint64(0), j.LastSeq())
	_, ok, err := e.BestBid(btcUSD)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngine_AddMarket(t *testing.T) {
	e := startedEngine(t, storage.NewMemStore())
	ctx := context.Background()

	require.NoError(t, e.AddMarket(ctx, btcUSD))
	assert.ErrorIs(t, e.AddMarket(ctx, btcUSD), market.ErrMarketExists)
	assert.ErrorIs(t, e.AddMarket(ctx, market.NewTradingPair("BTC", "")), market.ErrInvalidPair)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, e.AddMarket(cancelled, market.NewTradingPair("ETH", "USD")), context.Canceled)

	assert.Equal(t, []market.TradingPair{btcUSD}, e.Markets())
}

func TestEngine_TopAndLevels(t *testing.T) {
	e := startedEngine(t, storage.NewMemStore())
	ctx := context.Background()
	require.NoError(t, e.AddMarket(ctx, btcUSD))

	top, err := e.Top(btcUSD)
	require.NoError(t, err)
	assert.Nil(t, top.BestBid)
	assert.Nil(t, top.BestAsk)

	for _, p := range []float64{20.5, 22.1, 21} {
		_, err := e.PlaceLimitOrder(ctx, btcUSD, p, orderbook.NewOrder(orderbook.Bid, 1))
		require.NoError(t, err)
	}
	_, err = e.PlaceLimitOrder(ctx, btcUSD, 24.12, orderbook.NewOrder(orderbook.Ask, 2))
	require.NoError(t, err)
	_, err = e.PlaceLimitOrder(ctx, btcUSD, 24.12, orderbook.NewOrder(orderbook.Ask, 3))
	require.NoError(t, err)

	top, err = e.Top(btcUSD)
	require.NoError(t, err)
	require.NotNil(t, top.BestBid)
	require.NotNil(t, top.BestAsk)
	assert.Equal(t, price.MustFromFloat(20.5), *top.BestBid)
	assert.Equal(t, price.MustFromFloat(24.12), *top.BestAsk)

	asks, err := e.Levels(btcUSD, orderbook.Ask)
	require.NoError(t, err)
	assert.Equal(t, []orderbook.Level{{Price: price.MustFromFloat(24.12), Size: 5, Orders: 2}}, asks)

	bids, err := e.Levels(btcUSD, orderbook.Bid)
	require.NoError(t, err)
	require.Len(t, bids, 3)
	assert.Equal(t, price.MustFromFloat(22.1), bids[0].Price)

	_, err = e.Levels(btcUSD, orderbook.Side(3))
	assert.ErrorIs(t, err, orderbook.ErrInvalidSide)
}

func TestEngine_BestPrices(t *testing.T) {
	e := startedEngine(t, storage.NewMemStore())
	ctx := context.Background()
	require.NoError(t, e.AddMarket(ctx, btcUSD))

	bid, ask, err := e.BestPrices(btcUSD)
	require.NoError(t, err)
	assert.Nil(t, bid)
	assert.Nil(t, ask)

	_, err = e.PlaceLimitOrder(ctx, btcUSD, 20.5, orderbook.NewOrder(orderbook.Bid, 1))
	require.NoError(t, err)
	_, err = e.PlaceLimitOrder(ctx, btcUSD, 21, orderbook.NewOrder(orderbook.Bid, 1))
	require.NoError(t, err)

	bid, ask, err = e.BestPrices(btcUSD)
	require.NoError(t, err)
	require.NotNil(t, bid)
	assert.Equal(t, price.MustFromFloat(20.5), *bid)
	assert.Nil(t, ask)

	top, err := e.Top(btcUSD)
	require.NoError(t, err)
	assert.Equal(t, *top.BestBid, *bid)

	_, _, err = e.BestPrices(market.NewTradingPair("ETH", "USD"))
	assert.ErrorIs(t, err, market.ErrMarketNotFound)
}

func TestEngine_OnOrderHook(t *testing.T) {
	e := New(storage.NewMemStore(), WithIDSource(seqIDs()))
	var got []string
	e.OnOrder = func(pair market.TradingPair, p price.Price, o orderbook.Order) {
		// the hook runs outside the lock, so reading back is safe
		_, ask, err := e.BestPrices(pair)
		require.NoError(t, err)
		got = append(got, fmt.Sprintf("%s %s %s %s", pair, p, o.ID, ask))
	}
	require.NoError(t, e.Start(context.Background()))
	require.NoError(t, e.AddMarket(context.Background(), btcUSD))

	_, err := e.PlaceLimitOrder(context.Background(), btcUSD, 24.12, orderbook.NewOrder(orderbook.Ask, 1))
	require.NoError(t, err)
	_, err = e.PlaceLimitOrder(context.Background(), btcUSD, -1, orderbook.NewOrder(orderbook.Ask, 1))
	require.Error(t, err)

	assert.Equal(t, []string{"BTC_USD 24.12000 o-1 24.12000"}, got)
}

func TestEngine_ReplayRestoresBooks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")
	ethUSD := market.NewTradingPair("ETH", "USD")
	ctx := context.Background()

	j, err := storage.NewPebbleStore(path, false)
	require.NoError(t, err)
	e := startedEngine(t, j)
	require.NoError(t, e.AddMarket(ctx, btcUSD))
	require.NoError(t, e.AddMarket(ctx, ethUSD))

	orders := []struct {
		pair market.TradingPair
		p    float64
		side orderbook.Side
		size float64
	}{
		{btcUSD, 22.1, orderbook.Bid, 20.5},
		{btcUSD, 24.12, orderbook.Ask, 300.12},
		{ethUSD, 1800, orderbook.Bid, 2},
		{btcUSD, 22.1, orderbook.Bid, 1},
		{ethUSD, 1850.5, orderbook.Ask, 3},
		{btcUSD, 21.99999, orderbook.Bid, 4},
	}
	for _, o := range orders {
		_, err := e.PlaceLimitOrder(ctx, o.pair, o.p, orderbook.NewOrder(o.side, o.size))
		require.NoError(t, err)
	}

	wantBTC, err := e.StateHash(btcUSD)
	require.NoError(t, err)
	wantETH, err := e.StateHash(ethUSD)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = storage.NewPebbleStore(path, false)
	require.NoError(t, err)
	defer j.Close()

	restored := startedEngine(t, j)
	assert.Equal(t, []market.TradingPair{btcUSD, ethUSD}, restored.Markets())

	gotBTC, err := restored.StateHash(btcUSD)
	require.NoError(t, err)
	gotETH, err := restored.StateHash(ethUSD)
	require.NoError(t, err)
	assert.Equal(t, wantBTC, gotBTC)
	assert.Equal(t, wantETH, gotETH)

	bid, ok, err := restored.BestBid(btcUSD)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, price.MustFromFloat(21.99999), bid)
}

type failingJournal struct {
	*storage.MemStore
}

func (failingJournal) AppendOrder(market.TradingPair, price.Price, orderbook.Order) (storage.OrderRecord, error) {
	return storage.OrderRecord{}, errors.New("disk full")
}

func TestEngine_JournalFailureLeavesBookUntouched(t *testing.T) {
	e := startedEngine(t, failingJournal{storage.NewMemStore()})
	ctx := context.Background()
	require.NoError(t, e.AddMarket(ctx, btcUSD))

	_, err := e.PlaceLimitOrder(ctx, btcUSD, 10, orderbook.NewOrder(orderbook.Bid, 1))
	assert.ErrorContains(t, err, "disk full")

	_, ok, err := e.BestBid(btcUSD)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngine_ReplayRejectsOrderForUnknownMarket(t *testing.T) {
	j := storage.NewMemStore()
	_, err := j.AppendOrder(btcUSD, price.MustFromFloat(1), orderbook.NewOrder(orderbook.Bid, 1))
	require.NoError(t, err)

	err = New(j).Start(context.Background())
	assert.ErrorIs(t, err, market.ErrMarketNotFound)
}
