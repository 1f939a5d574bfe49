package engine_test

import (
	"sync"
	"sync/atomic"
	"testing"

	. "matchbook/internal/common"
	"matchbook/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_ConcurrentSubmission(t *testing.T) {
	const (
		submitters = 10
		perSide    = 100
	)
	eng := engine.New("TEST")

	var traded atomic.Uint64
	var mu sync.Mutex
	var lastSeq uint64
	eng.SetRecorder(engine.RecorderFunc(func(trade Trade) {
		// Calls are serialized by the engine lock.
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, lastSeq+1, trade.Sequence)
		lastSeq = trade.Sequence
		traded.Add(trade.Quantity)
	}))

	var wg sync.WaitGroup
	for range submitters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perSide {
				_, err := eng.PlaceOrder(NewLimitOrder(Buy, 100, 1, "buyer"))
				assert.NoError(t, err)
				_, err = eng.PlaceOrder(NewLimitOrder(Sell, 100, 1, "seller"))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	// Every unit bought at 100 meets a unit sold at 100.
	stats := eng.Stats()
	assert.Equal(t, uint64(submitters*perSide), traded.Load())
	assert.Equal(t, uint64(submitters*perSide), stats.Trades)
	assert.Zero(t, stats.BuyQuantity)
	assert.Zero(t, stats.SellQuantity)
	assert.Zero(t, stats.BidLevels)
	assert.Zero(t, stats.AskLevels)
	assert.Equal(t, uint64(2*submitters*perSide), eng.LastOrderID())
}

func TestEngine_RejectsInvalidOrders(t *testing.T) {
	eng := engine.New("TEST")

	_, err := eng.PlaceOrder(NewLimitOrder(Buy, 100, 0, "o"))
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = eng.PlaceOrder(NewLimitOrder(Buy, 0, 10, "o"))
	require.ErrorIs(t, err, ErrInvalidPrice)

	assert.Zero(t, eng.LastOrderID())
	assert.Empty(t, eng.Depth(Buy, 0))
}

func TestEngine_WithoutRecorder(t *testing.T) {
	eng := engine.New("TEST")

	_, err := eng.PlaceOrder(NewLimitOrder(Sell, 100, 50, "a"))
	require.NoError(t, err)
	placement, err := eng.PlaceOrder(NewLimitOrder(Buy, 110, 70, "b"))
	require.NoError(t, err)

	assert.Equal(t, engine.Placement{OrderID: 2, Filled: 50, Resting: 20}, placement)
	depth := eng.Depth(Buy, 1)
	require.Len(t, depth, 1)
	assert.Equal(t, uint64(110), depth[0].PriceLevel)
	assert.Empty(t, eng.Depth(Sell, 0))
}

func TestRecorders_FanOutInOrder(t *testing.T) {
	var calls []string
	recorders := engine.Recorders{
		engine.RecorderFunc(func(Trade) { calls = append(calls, "first") }),
		nil,
		engine.RecorderFunc(func(Trade) { calls = append(calls, "second") }),
	}

	book := engine.NewOrderBook(nil)
	book.SetTradeRecorder(recorders)
	_, err := book.PlaceOrder(NewLimitOrder(Sell, 10, 1, "a"))
	require.NoError(t, err)
	_, err = book.PlaceOrder(NewLimitOrder(Buy, 10, 1, "b"))
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, calls)
}
