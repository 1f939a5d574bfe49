package engine

import "sync/atomic"

// IDGenerator hands out order ids. It is safe for concurrent use and
// independent of any book lock, so it may be shared between books or read
// from monitoring paths while a book is busy matching.
type IDGenerator struct {
	last atomic.Uint64
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Next returns a previously unused id. Ids start at 1 and strictly increase.
func (g *IDGenerator) Next() uint64 {
	return g.last.Add(1)
}

// Last returns the most recently issued id, or 0 if none was issued yet.
func (g *IDGenerator) Last() uint64 {
	return g.last.Load()
}
