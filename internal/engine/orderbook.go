package engine

import (
	"fmt"
	"math"
	"math/bits"
	"time"

	"matchbook/internal/common"

	"github.com/tidwall/btree"
)

type PriceLevels = btree.BTreeG[*PriceLevel]

// OrderBook is a single instrument book matching in price-time priority.
// It is not safe for concurrent use; see Engine.
type OrderBook struct {
	ids      *IDGenerator
	recorder TradeRecorder
	now      func() time.Time

	// Price levels to orders sat on the price level, sorted by time added
	// as they will be push-back'd.
	bids *PriceLevels
	asks *PriceLevels

	// Some book keeping
	nTrades      uint64 // Sequence of the last trade emitted.
	nBuyOrders   uint64 // Track the number of bids in the book.
	nSellOrders  uint64 // Track the number of asks in the book.
	buyQuantity  uint64 // Track the bid-side liquidity of the book, saturating.
	sellQuantity uint64 // Track the ask-side liquidity of the book, saturating.
}

// Placement summarises what happened to an accepted order. Filled, Resting
// and Discarded always add up to the order's quantity.
type Placement struct {
	OrderID   uint64
	Filled    uint64
	Resting   uint64
	Discarded uint64
}

// BookStats is a snapshot of the book keeping counters.
type BookStats struct {
	Trades       uint64
	BuyOrders    uint64
	SellOrders   uint64
	BuyQuantity  uint64
	SellQuantity uint64
	BidLevels    int
	AskLevels    int
}

// NewOrderBook creates an empty book. Passing a nil generator gives the book
// its own.
func NewOrderBook(ids *IDGenerator) *OrderBook {
	if ids == nil {
		ids = NewIDGenerator()
	}
	// Sorted greatest first.
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.priceLevel > b.priceLevel
	})
	// Sorted least first.
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.priceLevel < b.priceLevel
	})
	return &OrderBook{
		ids:  ids,
		now:  time.Now,
		bids: bids,
		asks: asks,
	}
}

// SetTradeRecorder attaches the recorder notified of every fill. A nil
// recorder detaches it.
func (book *OrderBook) SetTradeRecorder(recorder TradeRecorder) {
	book.recorder = recorder
}

// PlaceOrder validates the order, assigns it a fresh id and matches it
// against the opposite side. What remains of a limit order rests at its limit
// price; what remains of a market order is discarded.
//
// Errors only come from validation, in which case the book is untouched and
// no id is consumed. A lack of liquidity is never an error.
func (book *OrderBook) PlaceOrder(order common.Order) (Placement, error) {
	if err := order.Validate(); err != nil {
		return Placement{}, fmt.Errorf("place order: %w", err)
	}

	order.ID = book.ids.Next()
	order.TotalQuantity = order.Quantity
	if order.OrderType == common.MarketOrder {
		order.LimitPrice = 0
	}

	placement := Placement{OrderID: order.ID}
	placement.Filled = book.match(&order)

	if order.Quantity > 0 {
		switch order.OrderType {
		case common.LimitOrder:
			book.rest(&order)
			placement.Resting = order.Quantity
		case common.MarketOrder:
			placement.Discarded = order.Quantity
		}
	}
	return placement, nil
}

// match consumes the top of the opposite side while it crosses the incoming
// order, in price-time priority. It returns the quantity filled.
//
// The incoming order is the taker on every fill, the resting one the maker,
// and the trade executes at the maker's price.
func (book *OrderBook) match(order *common.Order) uint64 {
	// Min here accounts for bids and asks being in inverse order, based on
	// their comparison method.
	levels := book.levels(order.Side.Opposite())

	var filled uint64
	for order.Quantity > 0 {
		level, ok := levels.MinMut()
		if !ok || !crosses(order, level.priceLevel) {
			break
		}

		resting := level.dequeue()
		matchQty := min(order.Quantity, resting.Quantity)
		order.Quantity -= matchQty
		resting.Quantity -= matchQty
		filled += matchQty

		book.trade(order, resting, matchQty)
		book.lift(resting, matchQty)

		if resting.Quantity > 0 {
			// The incoming order is exhausted, the maker keeps its place.
			level.requeue(resting)
			break
		}
		if level.Len() == 0 {
			levels.Delete(level)
		}
	}
	return filled
}

// crosses reports whether order may trade against a resting price.
func crosses(order *common.Order, price uint64) bool {
	switch order.OrderType {
	case common.MarketOrder:
		return true
	case common.LimitOrder:
		if order.Side == common.Buy {
			return price <= order.LimitPrice
		}
		return price >= order.LimitPrice
	}
	return false
}

func (book *OrderBook) trade(taker, maker *common.Order, quantity uint64) {
	book.nTrades++
	if book.recorder == nil {
		return
	}
	book.recorder.RecordTrade(common.Trade{
		Sequence:     book.nTrades,
		TakerOrderID: taker.ID,
		MakerOrderID: maker.ID,
		TakerSide:    taker.Side,
		Quantity:     quantity,
		Price:        maker.LimitPrice,
		TakerOwner:   taker.Owner,
		MakerOwner:   maker.Owner,
		Timestamp:    book.now(),
	})
}

// rest places the remainder of a limit order at the back of its price level,
// creating the level if needed.
func (book *OrderBook) rest(order *common.Order) {
	levels := book.levels(order.Side)

	// Levels comparator only accounts for price levels, so we create a dummy
	// price level for the search.
	level, ok := levels.GetMut(&PriceLevel{priceLevel: order.LimitPrice})
	if !ok {
		level = newPriceLevel(order.LimitPrice)
		levels.Set(level)
	}
	level.enqueue(order)

	switch order.Side {
	case common.Buy:
		book.nBuyOrders++
		book.buyQuantity = saturatingAdd(book.buyQuantity, order.Quantity)
	case common.Sell:
		book.nSellOrders++
		book.sellQuantity = saturatingAdd(book.sellQuantity, order.Quantity)
	}
}

// lift updates the book keeping after a resting order lost quantity.
func (book *OrderBook) lift(resting *common.Order, quantity uint64) {
	switch resting.Side {
	case common.Buy:
		book.buyQuantity = saturatingSub(book.buyQuantity, quantity)
		if resting.Quantity == 0 {
			book.nBuyOrders--
		}
	case common.Sell:
		book.sellQuantity = saturatingSub(book.sellQuantity, quantity)
		if resting.Quantity == 0 {
			book.nSellOrders--
		}
	}
}

// The side liquidity counters clamp to [0, MaxUint64] instead of wrapping.
// Once a side holds more than MaxUint64 in total they are approximate.
func saturatingAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func (book *OrderBook) levels(side common.Side) *PriceLevels {
	if side == common.Buy {
		return book.bids
	}
	return book.asks
}

// BestBid returns the highest resting buy price.
func (book *OrderBook) BestBid() (uint64, bool) {
	level, ok := book.bids.Min()
	if !ok {
		return 0, false
	}
	return level.priceLevel, true
}

// BestAsk returns the lowest resting sell price.
func (book *OrderBook) BestAsk() (uint64, bool) {
	level, ok := book.asks.Min()
	if !ok {
		return 0, false
	}
	return level.priceLevel, true
}

// Depth copies up to limit levels of one side, best price first. A limit of
// zero or less returns every level.
func (book *OrderBook) Depth(side common.Side, limit int) []FlatPriceLevel {
	var levels []*PriceLevel
	book.levels(side).Scan(func(level *PriceLevel) bool {
		levels = append(levels, level)
		return limit <= 0 || len(levels) < limit
	})
	return FlattenLevels(levels)
}

func (book *OrderBook) Stats() BookStats {
	return BookStats{
		Trades:       book.nTrades,
		BuyOrders:    book.nBuyOrders,
		SellOrders:   book.nSellOrders,
		BuyQuantity:  book.buyQuantity,
		SellQuantity: book.sellQuantity,
		BidLevels:    book.bids.Len(),
		AskLevels:    book.asks.Len(),
	}
}
