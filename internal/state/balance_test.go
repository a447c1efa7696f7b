package state

import (
	"path/filepath"
	"testing"
	"time"

	"feedstate/internal/adapter"
	"feedstate/internal/adapter/enum"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bal(asset, free, locked string) adapter.Balance {
	return adapter.Balance{Asset: asset, Free: dec(free), Locked: dec(locked)}
}

func TestBalanceDeltaKeepsUntouchedAssets(t *testing.T) {
	table := NewBalanceTable()
	table.Apply(adapter.BalanceEvent{IsSnapshot: true, Balances: []adapter.Balance{bal("USD", "100", "0"), bal("BTC", "1", "0")}})
	table.Apply(adapter.BalanceEvent{Balances: []adapter.Balance{bal("BTC", "0.5", "0")}})

	got := table.Balances()
	require.Len(t, got, 2)
	assert.Equal(t, "BTC", got[0].Asset)
	assert.True(t, got[0].Free.Equal(dec("0.5")))
	assert.Equal(t, "USD", got[1].Asset)
	assert.True(t, got[1].Free.Equal(dec("100")))
	assert.True(t, got[1].Locked.IsZero())
}

func TestBalanceDeltaInsertsAndSnapshotReplaces(t *testing.T) {
	table := NewBalanceTable()
	table.Apply(adapter.BalanceEvent{Balances: []adapter.Balance{bal("eth", "2", "1")}})

	eth, ok := table.Balance("ETH")
	require.True(t, ok)
	assert.True(t, eth.Total().Equal(dec("3")))

	table.Apply(adapter.BalanceEvent{IsSnapshot: true, Balances: []adapter.Balance{bal("USD", "5", "0")}})
	_, ok = table.Balance("ETH")
	assert.False(t, ok)
	assert.Len(t, table.Balances(), 1)
}

func TestApplyBalanceDoesNotModifyInput(t *testing.T) {
	before := map[string]adapter.Balance{"USD": bal("USD", "1", "0")}
	after := ApplyBalance(before, adapter.BalanceEvent{Balances: []adapter.Balance{bal("USD", "2", "0")}})

	assert.True(t, before["USD"].Free.Equal(dec("1")))
	assert.True(t, after["USD"].Free.Equal(dec("2")))
}

func TestBalanceBookKeepsExchangesApart(t *testing.T) {
	book := NewBalanceBook()
	book.Table(enum.ExchangeBinance).Apply(adapter.BalanceEvent{IsSnapshot: true, Balances: []adapter.Balance{bal("USD", "1", "0")}})
	book.Table(enum.ExchangeOKX).ApplyAccount(adapter.AccountSnapshot{
		UpdateTime: time.Unix(10, 0),
		MakerFee:   dec("0.0008"),
		TakerFee:   dec("0.001"),
		Balances:   []adapter.Balance{bal("USDT", "7", "0")},
	})

	_, ok := book.Table(enum.ExchangeBinance).Balance("USDT")
	assert.False(t, ok)
	maker, taker := book.Table(enum.ExchangeOKX).Fees()
	assert.True(t, maker.Equal(dec("0.0008")))
	assert.True(t, taker.Equal(dec("0.001")))
	assert.Equal(t, []enum.Exchange{enum.ExchangeBinance, enum.ExchangeOKX}, book.Exchanges())
}

func TestDumpRoundTrip(t *testing.T) {
	orders := NewOrderTracker(0)
	orders.Apply(report(enum.ExecutionNew, enum.OrderTypeLimit, "A", ""))
	balances := NewBalanceBook()
	balances.Table(enum.ExchangeOKX).Apply(adapter.BalanceEvent{IsSnapshot: true, Balances: []adapter.Balance{bal("BTC", "0.25", "0")}})

	path := filepath.Join(t.TempDir(), "state", "dump.json")
	require.NoError(t, WriteDump(path, Capture(orders, balances)))

	d, err := ReadDump(path)
	require.NoError(t, err)

	restoredOrders := NewOrderTracker(0)
	restoredBalances := NewBalanceBook()
	d.Restore(restoredOrders, restoredBalances)

	require.Len(t, restoredOrders.OpenOrders(), 1)
	assert.Equal(t, "A", restoredOrders.OpenOrders()[0].ClientOrderID)
	b, ok := restoredBalances.Table(enum.ExchangeOKX).Balance("BTC")
	require.True(t, ok)
	assert.True(t, b.Free.Equal(dec("0.25")))
}
