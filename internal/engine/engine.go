package engine

import (
	"sync"

	"matchbook/internal/common"

	"github.com/rs/zerolog/log"
)

// Engine is the matching engine for one instrument. It serializes every
// access to its book behind a single lock, so it can be shared by many
// submission paths.
type Engine struct {
	Symbol string

	mu   sync.Mutex
	ids  *IDGenerator
	book *OrderBook
}

func New(symbol string) *Engine {
	ids := NewIDGenerator()
	return &Engine{
		Symbol: symbol,
		ids:    ids,
		book:   NewOrderBook(ids),
	}
}

// SetRecorder attaches the recorder that receives every trade.
func (engine *Engine) SetRecorder(recorder TradeRecorder) {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	engine.book.SetTradeRecorder(recorder)
}

// PlaceOrder runs the order through the book. The call returns once matching
// has run to completion.
func (engine *Engine) PlaceOrder(order common.Order) (Placement, error) {
	engine.mu.Lock()
	placement, err := engine.book.PlaceOrder(order)
	engine.mu.Unlock()

	if err != nil {
		log.Warn().
			Err(err).
			Str("symbol", engine.Symbol).
			Str("owner", order.Owner).
			Stringer("side", order.Side).
			Stringer("type", order.OrderType).
			Uint64("quantity", order.Quantity).
			Msg("order rejected")
		return Placement{}, err
	}

	log.Debug().
		Str("symbol", engine.Symbol).
		Uint64("order_id", placement.OrderID).
		Str("owner", order.Owner).
		Stringer("side", order.Side).
		Stringer("type", order.OrderType).
		Uint64("filled", placement.Filled).
		Uint64("resting", placement.Resting).
		Uint64("discarded", placement.Discarded).
		Msg("order placed")
	return placement, nil
}

// Depth copies up to limit levels of one side of the book, best first.
func (engine *Engine) Depth(side common.Side, limit int) []FlatPriceLevel {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	return engine.book.Depth(side, limit)
}

func (engine *Engine) Stats() BookStats {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	return engine.book.Stats()
}

// LastOrderID does not take the book lock.
func (engine *Engine) LastOrderID() uint64 {
	return engine.ids.Last()
}
