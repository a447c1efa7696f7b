// Package book holds the per symbol limit order book and the sequenced diff merger.
//
// An OrderBook value is never mutated after it is published: Merge and Replace
// build a new book (sharing the untouched side), so a reader holding a *OrderBook
// always sees a complete, consistent view.
package book

import (
	"fmt"
	"slices"
	"time"

	"feedstate/internal/adapter"

	"github.com/shopspring/decimal"
)

// MaxDepth is the maximum number of price levels kept per side.
const MaxDepth = 1000

// Side selects bids or asks.
type Side uint8

const (
	SideBid Side = iota + 1
	SideAsk
)

func (s Side) String() string {
	switch s {
	case SideBid:
		return "bids"
	case SideAsk:
		return "asks"
	default:
		return "unknown"
	}
}

// OrderBook is a depth bounded view of one (exchange, symbol) book.
type OrderBook struct {
	Key          adapter.BookKey
	LastUpdateID int64
	Bids         []adapter.Level // strictly descending by price
	Asks         []adapter.Level // strictly ascending by price
	CapturedAt   time.Time
}

// Replace builds a book from an authoritative snapshot. The snapshot is normalised so
// the side invariants hold even when the venue sends unsorted or duplicated levels.
func Replace(key adapter.BookKey, snap adapter.Snapshot) *OrderBook {
	return &OrderBook{
		Key:          key,
		LastUpdateID: snap.LastUpdateID,
		Bids:         normalise(SideBid, snap.Bids),
		Asks:         normalise(SideAsk, snap.Asks),
		CapturedAt:   time.Now(),
	}
}

// BestBid returns the highest bid.
func (b *OrderBook) BestBid() (adapter.Level, bool) {
	if b == nil || len(b.Bids) == 0 {
		return adapter.Level{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest ask.
func (b *OrderBook) BestAsk() (adapter.Level, bool) {
	if b == nil || len(b.Asks) == 0 {
		return adapter.Level{}, false
	}
	return b.Asks[0], true
}

// Validate reports the first side invariant violation, if any.
func (b *OrderBook) Validate() error {
	if b == nil {
		return nil
	}
	for _, side := range []Side{SideBid, SideAsk} {
		levels := b.side(side)
		if len(levels) > MaxDepth {
			return fmt.Errorf("%s exceed depth: %d", side, len(levels))
		}
		cmp := comparator(side)
		for i := range levels {
			if levels[i].Quantity.Sign() <= 0 {
				return fmt.Errorf("%s[%d] has non positive quantity %s", side, i, levels[i].Quantity)
			}
			if i > 0 && cmp(levels[i-1], levels[i].Price) >= 0 {
				return fmt.Errorf("%s[%d] price %s out of order", side, i, levels[i].Price)
			}
		}
	}
	return nil
}

func (b *OrderBook) side(s Side) []adapter.Level {
	if s == SideBid {
		return b.Bids
	}
	return b.Asks
}

// comparator orders a side from the touch outwards: asks ascending, bids descending.
func comparator(s Side) func(adapter.Level, decimal.Decimal) int {
	if s == SideBid {
		return func(l adapter.Level, price decimal.Decimal) int {
			return price.Cmp(l.Price)
		}
	}
	return func(l adapter.Level, price decimal.Decimal) int {
		return l.Price.Cmp(price)
	}
}

func normalise(s Side, levels []adapter.Level) []adapter.Level {
	out := make([]adapter.Level, 0, min(len(levels), MaxDepth))
	cmp := comparator(s)
	for _, lv := range levels {
		idx, found := slices.BinarySearchFunc(out, lv.Price, cmp)
		switch {
		case lv.Quantity.Sign() <= 0:
			if found {
				out = slices.Delete(out, idx, idx+1)
			}
		case found:
			out[idx].Quantity = lv.Quantity
		default:
			out = slices.Insert(out, idx, lv)
		}
	}
	if len(out) > MaxDepth {
		out = out[:MaxDepth]
	}
	return out
}
