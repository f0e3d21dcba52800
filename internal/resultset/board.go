package resultset

import "sync/atomic"

// Board publishes the current ResultSet to concurrent readers. Readers never
// block; a single writer swaps in a fully built set with Publish.
type Board struct {
	current atomic.Pointer[ResultSet]
}

// NewBoard returns a Board holding initial, or an empty set when nil.
func NewBoard(initial *ResultSet) *Board {
	b := &Board{}
	b.Publish(initial)
	return b
}

// Current returns the last published set. Never nil.
func (b *Board) Current() *ResultSet {
	if rs := b.current.Load(); rs != nil {
		return rs
	}
	return Empty()
}

// Publish replaces the current set. A nil set publishes an empty one.
func (b *Board) Publish(rs *ResultSet) {
	if rs == nil {
		rs = Empty()
	}
	b.current.Store(rs)
}
