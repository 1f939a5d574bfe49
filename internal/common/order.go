package common

import (
	"fmt"
	"time"
)

// Prices are expressed in integer ticks of the instrument.
type Order struct {
	ID            uint64    // Assigned by the book on placement
	OrderType     OrderType //
	Side          Side      // Order side
	LimitPrice    uint64    // Limiting price, ignored for market orders
	Quantity      uint64    // Remaining quantity
	TotalQuantity uint64    // Total volume requested
	Timestamp     time.Time // Time of arrival of order, informational only
	Owner         string    // Who owns this order
}

// NewLimitOrder creates a limit order for owner. The id is left for the book.
func NewLimitOrder(side Side, price, quantity uint64, owner string) Order {
	return Order{
		OrderType:  LimitOrder,
		Side:       side,
		LimitPrice: price,
		Quantity:   quantity,
		Owner:      owner,
	}
}

// NewMarketOrder creates a market order for owner.
func NewMarketOrder(side Side, quantity uint64, owner string) Order {
	return Order{
		OrderType: MarketOrder,
		Side:      side,
		Quantity:  quantity,
		Owner:     owner,
	}
}

// Validate checks the order can be accepted by a book. It never looks at the
// state of any book.
func (order Order) Validate() error {
	if order.Side != Buy && order.Side != Sell {
		return fmt.Errorf("%w: %d", ErrInvalidSide, order.Side)
	}
	if order.Quantity == 0 {
		return ErrInvalidQuantity
	}
	switch order.OrderType {
	case LimitOrder:
		if order.LimitPrice == 0 {
			return fmt.Errorf("%w: limit price must be positive", ErrInvalidPrice)
		}
	case MarketOrder:
	default:
		return fmt.Errorf("%w: %d", ErrInvalidOrderType, order.OrderType)
	}
	return nil
}

func (order Order) String() string {
	return fmt.Sprintf(
		`ID:            %d
OrderType:     %v
Side:          %v
LimitPrice:    %d
Quantity:      %d (Total: %d)
Timestamp:     %v
Owner:         %s`,
		order.ID,
		order.OrderType,
		order.Side,
		order.LimitPrice,
		order.Quantity,
		order.TotalQuantity,
		order.Timestamp.Format(time.RFC3339),
		order.Owner,
	)
}
