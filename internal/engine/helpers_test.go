package engine

import "matchbook/internal/common"

type testOrder struct {
	id  uint64
	qty uint64
}

func (o *testOrder) order() *common.Order {
	return &common.Order{
		ID:            o.id,
		Side:          common.Sell,
		OrderType:     common.LimitOrder,
		LimitPrice:    100,
		Quantity:      o.qty,
		TotalQuantity: o.qty,
	}
}
