package common

import (
	"fmt"
	"time"
)

// Trade is a single fill between the incoming (taker) order and a resting
// (maker) order. Trades always execute at the maker's price.
type Trade struct {
	Sequence     uint64    // Per-book fill counter, starting at 1
	TakerOrderID uint64    //
	MakerOrderID uint64    //
	TakerSide    Side      // Side of the incoming order
	Quantity     uint64    // Filled quantity
	Price        uint64    // Maker's resting price
	TakerOwner   string    //
	MakerOwner   string    //
	Timestamp    time.Time // Informational only
}

// MakerSide is the side of the resting order.
func (t Trade) MakerSide() Side {
	return t.TakerSide.Opposite()
}

func (t Trade) String() string {
	return fmt.Sprintf(
		`Sequence:       %d
Taker:          %d (%s, %s)
Maker:          %d (%s)
Timestamp:      %v
MatchQty:       %d
Price:          %d`,
		t.Sequence,
		t.TakerOrderID,
		t.TakerSide,
		t.TakerOwner,
		t.MakerOrderID,
		t.MakerOwner,
		t.Timestamp.Format(time.RFC3339),
		t.Quantity,
		t.Price,
	)
}
