package ingest

import (
	"sync"

	"feedstate/internal/adapter"
)

// tradeBook keeps the last public trade per book.
type tradeBook struct {
	mu   sync.RWMutex
	last map[adapter.BookKey]adapter.Trade
}

func newTradeBook() *tradeBook {
	return &tradeBook{last: make(map[adapter.BookKey]adapter.Trade)}
}

// Put keeps t unless a newer trade is already stored.
func (b *tradeBook) Put(key adapter.BookKey, t adapter.Trade) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.last[key]; ok && prev.EventTime.After(t.EventTime) {
		return
	}
	b.last[key] = t
}

func (b *tradeBook) Get(key adapter.BookKey) (adapter.Trade, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.last[key]
	return t, ok
}
