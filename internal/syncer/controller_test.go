package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"feedstate/internal/adapter"
	"feedstate/internal/adapter/enum"
	"feedstate/internal/book"
	"feedstate/internal/obs"
	"feedstate/pkg/backoff"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

var btc = adapter.NewSymbol("BTC", "USDT")

func lv(price, qty string) adapter.Level {
	return adapter.Level{Price: decimal.RequireFromString(price), Quantity: decimal.RequireFromString(qty)}
}

type fakeSource struct {
	inline bool

	mu        sync.Mutex
	snapshots []adapter.Snapshot
	failures  int
	calls     int
}

func (f *fakeSource) Name() enum.Exchange         { return enum.ExchangeBinance }
func (f *fakeSource) SnapshotArrivesInline() bool { return f.inline }

func (f *fakeSource) FetchOrderBookSnapshot(ctx context.Context, _ adapter.Symbol) (adapter.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return adapter.Snapshot{}, errors.New("snapshot unavailable")
	}
	if len(f.snapshots) == 0 {
		<-ctx.Done()
		return adapter.Snapshot{}, ctx.Err()
	}
	snap := f.snapshots[0]
	f.snapshots = f.snapshots[1:]
	return snap, nil
}

func newController(src *fakeSource) (*Controller, *book.Store, *obs.Metrics) {
	books := book.NewStore()
	metrics := obs.NewMetrics()
	c := NewController(src, books, metrics, Option{
		ResyncTimeout: 50 * time.Millisecond,
		Backoff:       backoff.Fixed(time.Millisecond),
	})
	return c, books, metrics
}

func seed(c *Controller, watermark int64) {
	c.ApplySnapshot(adapter.Snapshot{
		Symbol:       btc,
		LastUpdateID: watermark,
		Bids:         []adapter.Level{lv("100", "2"), lv("99", "5")},
		Asks:         []adapter.Level{lv("101", "1")},
	})
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		desc        string
		watermark   int64
		first, last int64
		want        Decision
	}{
		{desc: "gap ahead of watermark", watermark: 50, first: 55, last: 60, want: DecisionGap},
		{desc: "extends watermark exactly", watermark: 50, first: 51, last: 55, want: DecisionApplicable},
		{desc: "overlaps watermark", watermark: 50, first: 45, last: 55, want: DecisionApplicable},
		{desc: "single id", watermark: 50, first: 51, last: 51, want: DecisionApplicable},
		{desc: "entirely behind", watermark: 50, first: 48, last: 49, want: DecisionStale},
		{desc: "ends at watermark", watermark: 50, first: 40, last: 50, want: DecisionStale},
		{desc: "inverted range", watermark: 50, first: 60, last: 52, want: DecisionGap},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got := Classify(tc.watermark, adapter.Diff{FirstUpdateID: tc.first, LastUpdateID: tc.last})
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestApplyDiffAdvancesWatermark(t *testing.T) {
	c, books, metrics := newController(&fakeSource{})
	seed(c, 50)
	key := adapter.BookKey{Exchange: enum.ExchangeBinance, Symbol: btc}

	decision, err := c.ApplyDiff(t.Context(), adapter.Diff{Symbol: btc, FirstUpdateID: 51, LastUpdateID: 55, Bids: []adapter.Level{lv("100", "0")}})
	require.NoError(t, err)
	assert.Equal(t, DecisionApplicable, decision)

	b := books.Get(key)
	assert.Equal(t, int64(55), b.LastUpdateID)
	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Price.Equal(decimal.NewFromInt(99)))
	assert.Equal(t, uint64(1), metrics.Count(obs.CounterDiffApplied))
}

func TestStaleDiffNeverChangesBook(t *testing.T) {
	c, books, metrics := newController(&fakeSource{})
	seed(c, 50)
	key := adapter.BookKey{Exchange: enum.ExchangeBinance, Symbol: btc}
	before := books.Get(key)

	for _, d := range []adapter.Diff{
		{Symbol: btc, FirstUpdateID: 48, LastUpdateID: 49, Bids: []adapter.Level{lv("100", "0")}},
		{Symbol: btc, FirstUpdateID: 1, LastUpdateID: 50, Asks: []adapter.Level{lv("90", "9")}},
	} {
		decision, err := c.ApplyDiff(t.Context(), d)
		require.NoError(t, err)
		assert.Equal(t, DecisionStale, decision)
	}

	assert.Same(t, before, books.Get(key))
	assert.Equal(t, uint64(2), metrics.Count(obs.CounterDiffStale))
}

func TestGapResyncsFromSnapshotSource(t *testing.T) {
	src := &fakeSource{
		failures: 2,
		snapshots: []adapter.Snapshot{{
			LastUpdateID: 57,
			Bids:         []adapter.Level{lv("98", "1")},
		}},
	}
	c, books, metrics := newController(src)
	seed(c, 50)
	key := adapter.BookKey{Exchange: enum.ExchangeBinance, Symbol: btc}

	decision, err := c.ApplyDiff(t.Context(), adapter.Diff{Symbol: btc, FirstUpdateID: 55, LastUpdateID: 60, Bids: []adapter.Level{lv("97", "4")}})
	require.NoError(t, err)
	assert.Equal(t, DecisionGap, decision)

	// the snapshot at 57 re-anchors and the triggering diff [55, 60] extends it
	b := books.Get(key)
	assert.Equal(t, int64(60), b.LastUpdateID)
	require.Len(t, b.Bids, 2)
	assert.Equal(t, ModeSynced, c.Mode(btc))
	assert.Equal(t, 3, src.calls)
	assert.Equal(t, uint64(1), metrics.Count(obs.CounterDiffGap))
	assert.Equal(t, uint64(1), metrics.Count(obs.CounterResync))
	assert.Equal(t, uint64(2), metrics.Count(obs.CounterResyncFailure))
	require.NoError(t, b.Validate())
}

func TestGapDropsTriggerBehindNewSnapshot(t *testing.T) {
	src := &fakeSource{snapshots: []adapter.Snapshot{{LastUpdateID: 70}}}
	c, books, _ := newController(src)
	seed(c, 50)

	_, err := c.ApplyDiff(t.Context(), adapter.Diff{Symbol: btc, FirstUpdateID: 55, LastUpdateID: 60, Bids: []adapter.Level{lv("97", "4")}})
	require.NoError(t, err)

	b := books.Get(adapter.BookKey{Exchange: enum.ExchangeBinance, Symbol: btc})
	assert.Equal(t, int64(70), b.LastUpdateID)
	assert.Empty(t, b.Bids)
}

func TestResyncAbortsOnShutdown(t *testing.T) {
	src := &fakeSource{}
	c, books, _ := newController(src)
	seed(c, 50)
	key := adapter.BookKey{Exchange: enum.ExchangeBinance, Symbol: btc}
	before := books.Get(key)

	ctx, cancel := context.WithTimeout(t.Context(), 120*time.Millisecond)
	defer cancel()

	_, err := c.ApplyDiff(ctx, adapter.Diff{Symbol: btc, FirstUpdateID: 55, LastUpdateID: 60})
	require.Error(t, err)
	assert.Same(t, before, books.Get(key), "last good state is kept")
	assert.Equal(t, ModeResyncing, c.Mode(btc))
	assert.GreaterOrEqual(t, src.calls, 1)
}

func TestInlineGapResubscribes(t *testing.T) {
	src := &fakeSource{inline: true}
	books := book.NewStore()
	metrics := obs.NewMetrics()
	var resubscribed []adapter.BookKey
	c := NewController(src, books, metrics, Option{
		ResyncTimeout: 50 * time.Millisecond,
		Backoff:       backoff.Fixed(time.Millisecond),
		Resubscribe:   func(key adapter.BookKey) { resubscribed = append(resubscribed, key) },
	})
	seed(c, 50)
	key := adapter.BookKey{Exchange: enum.ExchangeBinance, Symbol: btc}

	decision, err := c.ApplyDiff(t.Context(), adapter.Diff{Symbol: btc, FirstUpdateID: 55, LastUpdateID: 60})
	require.NoError(t, err)
	assert.Equal(t, DecisionGap, decision)
	assert.Equal(t, ModeResyncing, c.Mode(btc))
	assert.Equal(t, []adapter.BookKey{key}, resubscribed)

	// diffs are dropped until the next inline snapshot, even one that would extend
	decision, err = c.ApplyDiff(t.Context(), adapter.Diff{Symbol: btc, FirstUpdateID: 51, LastUpdateID: 52})
	require.NoError(t, err)
	assert.Equal(t, DecisionPending, decision)
	assert.Equal(t, int64(50), books.Get(key).LastUpdateID)
	assert.Len(t, resubscribed, 1, "one resubscribe per gap")

	c.ApplySnapshot(adapter.Snapshot{Symbol: btc, LastUpdateID: 80})
	assert.Equal(t, ModeSynced, c.Mode(btc))

	decision, err = c.ApplyDiff(t.Context(), adapter.Diff{Symbol: btc, FirstUpdateID: 81, LastUpdateID: 81, Asks: []adapter.Level{lv("101", "3")}})
	require.NoError(t, err)
	assert.Equal(t, DecisionApplicable, decision)
	assert.Equal(t, int64(81), books.Get(key).LastUpdateID)

	assert.Zero(t, src.calls, "inline venues are never asked for a snapshot")
	assert.Equal(t, uint64(1), metrics.Count(obs.CounterResync))
	assert.Equal(t, uint64(1), metrics.Count(obs.CounterDiffGap))
	assert.Equal(t, uint64(1), metrics.Count(obs.CounterDiffPending))
}

func TestInlineDiffBeforeFirstSnapshotIsPending(t *testing.T) {
	src := &fakeSource{inline: true}
	c, books, metrics := newController(src)

	decision, err := c.ApplyDiff(t.Context(), adapter.Diff{Symbol: btc, FirstUpdateID: 1, LastUpdateID: 4})
	require.NoError(t, err)
	assert.Equal(t, DecisionPending, decision)
	assert.Nil(t, books.Get(adapter.BookKey{Exchange: enum.ExchangeBinance, Symbol: btc}))
	assert.Equal(t, ModeUnseeded, c.Mode(btc))
	assert.Equal(t, uint64(1), metrics.Count(obs.CounterDiffPending))
	assert.Zero(t, metrics.Count(obs.CounterDiffGap))
	assert.Zero(t, metrics.Count(obs.CounterResync))
}

func TestDiffBeforeFirstSnapshotSeedsBook(t *testing.T) {
	src := &fakeSource{snapshots: []adapter.Snapshot{{LastUpdateID: 10, Asks: []adapter.Level{lv("101", "1")}}}}
	c, books, metrics := newController(src)

	decision, err := c.ApplyDiff(t.Context(), adapter.Diff{Symbol: btc, FirstUpdateID: 9, LastUpdateID: 12})
	require.NoError(t, err)
	assert.Equal(t, DecisionGap, decision)

	b := books.Get(adapter.BookKey{Exchange: enum.ExchangeBinance, Symbol: btc})
	require.NotNil(t, b)
	assert.Equal(t, int64(12), b.LastUpdateID)
	assert.Equal(t, uint64(1), metrics.Count(obs.CounterDiffGap))
	assert.Equal(t, uint64(1), metrics.Count(obs.CounterResync))
}

func TestWatermarkIsMonotonic(t *testing.T) {
	c, books, _ := newController(&fakeSource{})
	seed(c, 0)
	key := adapter.BookKey{Exchange: enum.ExchangeBinance, Symbol: btc}

	last := int64(0)
	for _, r := range [][2]int64{{1, 3}, {2, 2}, {4, 4}, {1, 4}, {3, 9}, {10, 12}} {
		decision, err := c.ApplyDiff(t.Context(), adapter.Diff{Symbol: btc, FirstUpdateID: r[0], LastUpdateID: r[1]})
		require.NoError(t, err)
		wm := books.Get(key).LastUpdateID
		assert.GreaterOrEqual(t, wm, last)
		if decision == DecisionApplicable {
			assert.Equal(t, r[1], wm)
		}
		last = wm
	}
	assert.Equal(t, int64(12), last)
}
