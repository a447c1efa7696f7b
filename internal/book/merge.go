package book

import (
	"slices"
	"time"

	"feedstate/internal/adapter"
)

// Merge applies an applicable diff and returns the resulting book. The caller decides
// applicability (see package syncer); Merge itself never rejects a diff.
//
// Per side, entries are applied in the order received: an exact price match is removed
// when the new quantity is zero and otherwise has its quantity replaced; an unmatched
// price with a positive quantity is inserted at its sorted position. The side is then
// truncated to MaxDepth, dropping the levels farthest from the touch. A side with no
// entries in the diff is shared with the previous book.
func Merge(b *OrderBook, d adapter.Diff) *OrderBook {
	next := &OrderBook{
		Key:          b.Key,
		LastUpdateID: d.LastUpdateID,
		Bids:         mergeSide(SideBid, b.Bids, d.Bids),
		Asks:         mergeSide(SideAsk, b.Asks, d.Asks),
		CapturedAt:   time.Now(),
	}
	return next
}

func mergeSide(s Side, current, updates []adapter.Level) []adapter.Level {
	if len(updates) == 0 {
		return current
	}

	out := make([]adapter.Level, len(current), len(current)+len(updates))
	copy(out, current)

	cmp := comparator(s)
	for _, u := range updates {
		idx, found := slices.BinarySearchFunc(out, u.Price, cmp)
		if found {
			if u.Quantity.Sign() <= 0 {
				out = slices.Delete(out, idx, idx+1)
				continue
			}
			out[idx].Quantity = u.Quantity
			continue
		}
		if u.Quantity.Sign() > 0 {
			out = slices.Insert(out, idx, u)
		}
	}

	if len(out) > MaxDepth {
		out = out[:MaxDepth:MaxDepth]
	}
	return out
}
