package tradelog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"matchbook/internal/common"
	"matchbook/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"
)

type memorySink struct {
	name string
	fail bool

	mu     sync.Mutex
	trades []common.Trade
}

func (s *memorySink) Name() string { return s.name }

func (s *memorySink) Deliver(_ context.Context, trade common.Trade) error {
	if s.fail {
		return errors.New("sink down")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, trade)
	return nil
}

func (s *memorySink) sequences() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seqs := make([]uint64, len(s.trades))
	for i, t := range s.trades {
		seqs[i] = t.Sequence
	}
	return seqs
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	good := &memorySink{name: "good"}
	bad := &memorySink{name: "bad", fail: true}
	d := NewDispatcher(bad)
	d.AddSink(good)

	var tb tomb.Tomb
	tb.Go(func() error { return d.Run(&tb) })

	for seq := uint64(1); seq <= 100; seq++ {
		d.RecordTrade(common.Trade{Sequence: seq})
	}

	require.Eventually(t, func() bool {
		return len(good.sequences()) == 100
	}, time.Second, time.Millisecond)

	tb.Kill(nil)
	require.NoError(t, tb.Wait())

	want := make([]uint64, 100)
	for i := range want {
		want[i] = uint64(i + 1)
	}
	assert.Equal(t, want, good.sequences())
	assert.Zero(t, d.Pending())
}

func TestDispatcher_DrainsOnShutdown(t *testing.T) {
	sink := &memorySink{name: "sink"}
	d := NewDispatcher(sink)

	// Queued before the loop runs at all.
	d.RecordTrade(common.Trade{Sequence: 1})
	d.RecordTrade(common.Trade{Sequence: 2})
	assert.Equal(t, 2, d.Pending())

	var tb tomb.Tomb
	tb.Kill(nil)
	require.NoError(t, d.Run(&tb))

	assert.Equal(t, []uint64{1, 2}, sink.sequences())
}

func TestDispatcher_AsEngineRecorder(t *testing.T) {
	sink := &memorySink{name: "sink"}
	d := NewDispatcher(sink)

	eng := engine.New("TEST")
	eng.SetRecorder(d)
	_, err := eng.PlaceOrder(common.NewLimitOrder(common.Sell, 100, 50, "maker"))
	require.NoError(t, err)
	_, err = eng.PlaceOrder(common.NewLimitOrder(common.Sell, 101, 50, "maker"))
	require.NoError(t, err)
	_, err = eng.PlaceOrder(common.NewMarketOrder(common.Buy, 70, "taker"))
	require.NoError(t, err)

	// Matching finished without any delivery taking place.
	assert.Equal(t, 2, d.Pending())
	assert.Empty(t, sink.sequences())

	var tb tomb.Tomb
	tb.Kill(nil)
	require.NoError(t, d.Run(&tb))

	require.Len(t, sink.trades, 2)
	assert.Equal(t, uint64(100), sink.trades[0].Price)
	assert.Equal(t, uint64(50), sink.trades[0].Quantity)
	assert.Equal(t, uint64(101), sink.trades[1].Price)
	assert.Equal(t, uint64(20), sink.trades[1].Quantity)
}
