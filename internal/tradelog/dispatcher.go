package tradelog

import (
	"context"
	"sync"
	"time"

	"matchbook/internal/common"

	"github.com/gammazero/deque"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const drainTimeout = 5 * time.Second

// Sink receives trades after they left the matching loop. Sinks are called
// from a single goroutine, one trade at a time, in trade order.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, trade common.Trade) error
}

// Dispatcher is the trade recorder of a running engine. Recording only
// queues the trade, so matching never waits on a sink; Run forwards the
// queue to every sink.
type Dispatcher struct {
	mu     sync.Mutex
	queue  deque.Deque[common.Trade]
	sinks  []Sink
	signal chan struct{}
}

func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		sinks:  sinks,
		signal: make(chan struct{}, 1),
	}
}

// AddSink registers another sink. Trades already delivered are not replayed.
func (d *Dispatcher) AddSink(sink Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sinks = append(d.sinks, sink)
}

// RecordTrade queues a trade for delivery. It never blocks on delivery.
func (d *Dispatcher) RecordTrade(trade common.Trade) {
	d.mu.Lock()
	d.queue.PushBack(trade)
	d.mu.Unlock()

	select {
	case d.signal <- struct{}{}:
	default:
	}
}

// Pending returns the number of trades waiting for delivery.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.queue.Len()
}

// Run delivers queued trades until the tomb starts dying, then drains what
// is left with a bounded grace period.
func (d *Dispatcher) Run(t *tomb.Tomb) error {
	ctx := t.Context(nil)
	log.Info().Int("sinks", len(d.sinks)).Msg("trade dispatcher running")

	for {
		select {
		case <-t.Dying():
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			d.drain(drainCtx)
			cancel()
			log.Info().Msg("trade dispatcher stopped")
			return nil
		case <-d.signal:
			d.drain(ctx)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		d.mu.Lock()
		if d.queue.Len() == 0 {
			d.mu.Unlock()
			return
		}
		trade := d.queue.PopFront()
		sinks := d.sinks
		d.mu.Unlock()

		// A failing sink does not hold back the others.
		for _, sink := range sinks {
			if err := sink.Deliver(ctx, trade); err != nil {
				log.Error().
					Err(err).
					Str("sink", sink.Name()).
					Uint64("sequence", trade.Sequence).
					Msg("trade delivery failed")
			}
		}
	}
}
