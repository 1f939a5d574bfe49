package engine

import "matchbook/internal/common"

// TradeRecorder is notified of each fill, synchronously and in the order the
// fills happen. Implementations must not block: they are called from inside
// the matching loop.
type TradeRecorder interface {
	RecordTrade(trade common.Trade)
}

// RecorderFunc adapts a plain function to a TradeRecorder.
type RecorderFunc func(trade common.Trade)

func (f RecorderFunc) RecordTrade(trade common.Trade) {
	f(trade)
}

// Recorders fans a trade out to several recorders in slice order.
type Recorders []TradeRecorder

func (rs Recorders) RecordTrade(trade common.Trade) {
	for _, r := range rs {
		if r != nil {
			r.RecordTrade(trade)
		}
	}
}
