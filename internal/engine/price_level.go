package engine

import (
	"matchbook/internal/common"

	"github.com/gammazero/deque"
)

// PriceLevel holds the orders resting at one price, oldest first.
type PriceLevel struct {
	priceLevel uint64
	orders     deque.Deque[*common.Order]
}

func newPriceLevel(price uint64) *PriceLevel {
	return &PriceLevel{priceLevel: price}
}

func (level *PriceLevel) Price() uint64 {
	return level.priceLevel
}

func (level *PriceLevel) Len() int {
	return level.orders.Len()
}

// Quantity sums the remaining quantity of every order at the level.
func (level *PriceLevel) Quantity() uint64 {
	var total uint64
	for i := 0; i < level.orders.Len(); i++ {
		total += level.orders.At(i).Quantity
	}
	return total
}

// enqueue appends a new order, giving it the lowest time priority.
func (level *PriceLevel) enqueue(order *common.Order) {
	level.orders.PushBack(order)
}

// requeue puts a partially filled order back at the front, so it keeps its
// time priority.
func (level *PriceLevel) requeue(order *common.Order) {
	level.orders.PushFront(order)
}

// dequeue pops the oldest order. The level must not be empty.
func (level *PriceLevel) dequeue() *common.Order {
	return level.orders.PopFront()
}

// FlatPriceLevel is a detached copy of a price level, safe to hand out of the
// book.
type FlatPriceLevel struct {
	PriceLevel uint64
	Quantity   uint64 // Sum of the remaining quantity of Orders
	Orders     []common.Order
}

// FlattenLevels copies levels, preserving their order and the time priority
// of the orders in each.
func FlattenLevels(levels []*PriceLevel) []FlatPriceLevel {
	flat := make([]FlatPriceLevel, 0, len(levels))
	for _, level := range levels {
		orders := make([]common.Order, level.orders.Len())
		for i := range orders {
			orders[i] = *level.orders.At(i)
		}
		flat = append(flat, FlatPriceLevel{
			PriceLevel: level.Price(),
			Quantity:   level.Quantity(),
			Orders:     orders,
		})
	}
	return flat
}
