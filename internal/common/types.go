package common

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return "UNKNOWN"
}

// Opposite returns the side an order of this side matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type OrderType int

const (
	// Limit orders are an order to buy or sell at a specified price or
	// better. The unfilled remainder of a limit order rests on the book.
	LimitOrder OrderType = iota
	// Market orders take whatever liquidity is on the opposite side at any
	// price. They never rest: an unfilled remainder is discarded.
	MarketOrder
)

func (t OrderType) String() string {
	switch t {
	case LimitOrder:
		return "LIMIT"
	case MarketOrder:
		return "MARKET"
	}
	return "UNKNOWN"
}
