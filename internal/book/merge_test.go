package book

import (
	"math/rand"
	"testing"

	"feedstate/internal/adapter"
	"feedstate/internal/adapter/enum"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = adapter.BookKey{Exchange: enum.ExchangeBinance, Symbol: adapter.NewSymbol("BTC", "USD")}

func lv(price, qty string) adapter.Level {
	return adapter.Level{Price: decimal.RequireFromString(price), Quantity: decimal.RequireFromString(qty)}
}

func requireLevels(t *testing.T, want, got []adapter.Level) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Truef(t, want[i].Price.Equal(got[i].Price), "price[%d] want %s got %s", i, want[i].Price, got[i].Price)
		assert.Truef(t, want[i].Quantity.Equal(got[i].Quantity), "qty[%d] want %s got %s", i, want[i].Quantity, got[i].Quantity)
	}
}

func TestMergeRemovesAndInserts(t *testing.T) {
	b := Replace(testKey, adapter.Snapshot{
		LastUpdateID: 10,
		Bids:         []adapter.Level{lv("100", "2"), lv("99", "5")},
	})

	next := Merge(b, adapter.Diff{
		FirstUpdateID: 11,
		LastUpdateID:  12,
		Bids:          []adapter.Level{lv("100", "0"), lv("98", "3")},
	})

	requireLevels(t, []adapter.Level{lv("99", "5"), lv("98", "3")}, next.Bids)
	assert.Equal(t, int64(12), next.LastUpdateID)
	assert.Empty(t, next.Asks)
	require.NoError(t, next.Validate())

	// the previous book is untouched
	requireLevels(t, []adapter.Level{lv("100", "2"), lv("99", "5")}, b.Bids)
	assert.Equal(t, int64(10), b.LastUpdateID)
}

func TestMergeReplacesQuantityInPlace(t *testing.T) {
	b := Replace(testKey, adapter.Snapshot{
		LastUpdateID: 1,
		Asks:         []adapter.Level{lv("101", "1"), lv("102", "1")},
	})

	next := Merge(b, adapter.Diff{
		FirstUpdateID: 2,
		LastUpdateID:  2,
		Asks:          []adapter.Level{lv("102.0", "7")},
	})

	requireLevels(t, []adapter.Level{lv("101", "1"), lv("102", "7")}, next.Asks)
}

func TestMergeIgnoresZeroForUnknownPrice(t *testing.T) {
	b := Replace(testKey, adapter.Snapshot{LastUpdateID: 1, Asks: []adapter.Level{lv("101", "1")}})

	next := Merge(b, adapter.Diff{FirstUpdateID: 2, LastUpdateID: 2, Asks: []adapter.Level{lv("150", "0")}})

	requireLevels(t, []adapter.Level{lv("101", "1")}, next.Asks)
}

func TestMergeAppliesEntriesInOrder(t *testing.T) {
	b := Replace(testKey, adapter.Snapshot{LastUpdateID: 1})

	next := Merge(b, adapter.Diff{
		FirstUpdateID: 2,
		LastUpdateID:  2,
		Asks:          []adapter.Level{lv("101", "1"), lv("101", "0"), lv("103", "2"), lv("103", "4")},
	})

	requireLevels(t, []adapter.Level{lv("103", "4")}, next.Asks)
}

func TestMergeSharesUntouchedSide(t *testing.T) {
	b := Replace(testKey, adapter.Snapshot{
		LastUpdateID: 1,
		Bids:         []adapter.Level{lv("99", "1")},
		Asks:         []adapter.Level{lv("101", "1")},
	})

	next := Merge(b, adapter.Diff{FirstUpdateID: 2, LastUpdateID: 2, Bids: []adapter.Level{lv("98", "1")}})

	require.NotEmpty(t, next.Asks)
	assert.Same(t, &b.Asks[0], &next.Asks[0])
}

func TestMergeTruncatesWorstLevels(t *testing.T) {
	asks := make([]adapter.Level, 0, MaxDepth)
	for i := 0; i < MaxDepth; i++ {
		asks = append(asks, adapter.Level{Price: decimal.NewFromInt(int64(1000 + i)), Quantity: decimal.NewFromInt(1)})
	}
	b := Replace(testKey, adapter.Snapshot{LastUpdateID: 1, Asks: asks})
	require.Len(t, b.Asks, MaxDepth)

	next := Merge(b, adapter.Diff{FirstUpdateID: 2, LastUpdateID: 2, Asks: []adapter.Level{lv("999", "1"), lv("5000", "1")}})

	require.Len(t, next.Asks, MaxDepth)
	assert.True(t, next.Asks[0].Price.Equal(decimal.NewFromInt(999)))
	assert.True(t, next.Asks[MaxDepth-1].Price.Equal(decimal.NewFromInt(1000+MaxDepth-2)))
	require.NoError(t, next.Validate())
}

func TestReplaceNormalisesSnapshot(t *testing.T) {
	b := Replace(testKey, adapter.Snapshot{
		LastUpdateID: 5,
		Bids:         []adapter.Level{lv("98", "1"), lv("100", "2"), lv("99", "0"), lv("100", "3")},
		Asks:         []adapter.Level{lv("103", "1"), lv("101", "1")},
	})

	requireLevels(t, []adapter.Level{lv("100", "3"), lv("98", "1")}, b.Bids)
	requireLevels(t, []adapter.Level{lv("101", "1"), lv("103", "1")}, b.Asks)
	require.NoError(t, b.Validate())

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Price.Equal(decimal.NewFromInt(100)))
	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.True(t, ask.Price.Equal(decimal.NewFromInt(101)))
}

func TestMergeKeepsSideInvariantsUnderChurn(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	b := Replace(testKey, adapter.Snapshot{LastUpdateID: 0})

	randomSide := func() []adapter.Level {
		n := rng.Intn(40)
		levels := make([]adapter.Level, 0, n)
		for i := 0; i < n; i++ {
			price := decimal.NewFromInt(int64(rng.Intn(3000))).Div(decimal.NewFromInt(4))
			qty := decimal.Zero
			if rng.Intn(3) > 0 {
				qty = decimal.NewFromInt(int64(rng.Intn(10) + 1))
			}
			levels = append(levels, adapter.Level{Price: price, Quantity: qty})
		}
		return levels
	}

	for i := int64(1); i <= 500; i++ {
		b = Merge(b, adapter.Diff{FirstUpdateID: i, LastUpdateID: i, Bids: randomSide(), Asks: randomSide()})
		require.NoError(t, b.Validate(), "iteration %d", i)
		require.Equal(t, i, b.LastUpdateID)
	}
}
