package state

import (
	"testing"
	"time"

	"feedstate/internal/adapter"
	"feedstate/internal/adapter/enum"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var btc = adapter.NewSymbol("BTC", "USDT")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func report(exec enum.ExecutionType, typ enum.OrderType, id, origID string) adapter.ExecutionReport {
	return adapter.ExecutionReport{
		Exchange:          enum.ExchangeBinance,
		Symbol:            btc,
		ExecutionType:     exec,
		OrderType:         typ,
		Side:              enum.OrderSideBuy,
		TimeInForce:       enum.OrderTimeInForceGTC,
		Quantity:          dec("1"),
		Price:             dec("100"),
		ClientOrderID:     id,
		OrigClientOrderID: origID,
		TransactTime:      time.Unix(1700000000, 0),
	}
}

func TestOrderRoundTrip(t *testing.T) {
	tracker := NewOrderTracker(0)

	out := tracker.Apply(report(enum.ExecutionNew, enum.OrderTypeLimit, "X", ""))
	assert.Equal(t, OutcomeOpened, out.Kind)
	require.Len(t, tracker.OpenOrders(), 1)

	fill := report(enum.ExecutionTrade, enum.OrderTypeLimit, "Y", "X")
	fill.FillQuantity = dec("1")
	fill.FillNotional = dec("100")
	out = tracker.Apply(fill)
	assert.Equal(t, OutcomeFilled, out.Kind)
	assert.Equal(t, "X", out.CorrelationID)

	assert.Empty(t, tracker.OpenOrders())
	positions := tracker.Positions()
	require.Len(t, positions, 1)
	assert.True(t, positions[0].AvgFillPrice.Equal(dec("100")))
	assert.True(t, positions[0].FillQuantity.Equal(dec("1")))
	assert.Equal(t, enum.OrderSideBuy, positions[0].Side)
}

func TestTransitionTable(t *testing.T) {
	open := []adapter.OpenOrder{{Exchange: enum.ExchangeBinance, Symbol: btc, ClientOrderID: "A"}}

	testCases := []struct {
		desc          string
		report        adapter.ExecutionReport
		wantKind      OutcomeKind
		wantOrders    int
		wantPositions int
	}{
		{
			desc:       "new limit appends",
			report:     report(enum.ExecutionNew, enum.OrderTypeLimit, "B", ""),
			wantKind:   OutcomeOpened,
			wantOrders: 2,
		},
		{
			desc:       "new market is not resting",
			report:     report(enum.ExecutionNew, enum.OrderTypeMarket, "B", ""),
			wantKind:   OutcomeIgnored,
			wantOrders: 1,
		},
		{
			desc:       "cancel removes by original id",
			report:     report(enum.ExecutionCanceled, enum.OrderTypeLimit, "cancel-1", "A"),
			wantKind:   OutcomeRemoved,
			wantOrders: 0,
		},
		{
			desc:       "cancel falls back to client id",
			report:     report(enum.ExecutionCanceled, enum.OrderTypeLimit, "A", ""),
			wantKind:   OutcomeRemoved,
			wantOrders: 0,
		},
		{
			desc:       "cancel of unknown order",
			report:     report(enum.ExecutionCanceled, enum.OrderTypeLimit, "cancel-2", "Z"),
			wantKind:   OutcomeUnmatched,
			wantOrders: 1,
		},
		{
			desc:          "market trade appends position",
			report:        report(enum.ExecutionTrade, enum.OrderTypeMarket, "M", ""),
			wantKind:      OutcomeFilled,
			wantOrders:    1,
			wantPositions: 1,
		},
		{
			desc:       "limit trade without open order",
			report:     report(enum.ExecutionTrade, enum.OrderTypeLimit, "Z", ""),
			wantKind:   OutcomeUnmatched,
			wantOrders: 1,
		},
		{
			desc:       "rejected is a notification",
			report:     report(enum.ExecutionRejected, enum.OrderTypeLimit, "A", ""),
			wantKind:   OutcomeRejected,
			wantOrders: 1,
		},
		{
			desc:       "expired limit removes without position",
			report:     report(enum.ExecutionExpired, enum.OrderTypeLimit, "A", ""),
			wantKind:   OutcomeRemoved,
			wantOrders: 0,
		},
		{
			desc:       "expired market is ignored",
			report:     report(enum.ExecutionExpired, enum.OrderTypeMarket, "A", ""),
			wantKind:   OutcomeIgnored,
			wantOrders: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			orders, positions, out := Transition(open, nil, tc.report)
			assert.Equal(t, tc.wantKind, out.Kind)
			assert.Len(t, orders, tc.wantOrders)
			assert.Len(t, positions, tc.wantPositions)
			require.Len(t, open, 1, "input is never modified")
			assert.Equal(t, "A", open[0].ClientOrderID)
		})
	}
}

func TestDuplicateCancelIsNoop(t *testing.T) {
	tracker := NewOrderTracker(0)
	tracker.Apply(report(enum.ExecutionNew, enum.OrderTypeLimit, "A", ""))

	cancel := report(enum.ExecutionCanceled, enum.OrderTypeLimit, "c", "A")
	assert.Equal(t, OutcomeRemoved, tracker.Apply(cancel).Kind)
	assert.Equal(t, OutcomeUnmatched, tracker.Apply(cancel).Kind)
	assert.Empty(t, tracker.OpenOrders())
}

func TestPositionLogCap(t *testing.T) {
	tracker := NewOrderTracker(2)
	for _, qty := range []string{"1", "2", "3"} {
		r := report(enum.ExecutionTrade, enum.OrderTypeMarket, "m"+qty, "")
		r.FillQuantity = dec(qty)
		r.FillNotional = dec(qty).Mul(dec("10"))
		tracker.Apply(r)
	}

	positions := tracker.Positions()
	require.Len(t, positions, 2)
	assert.True(t, positions[0].FillQuantity.Equal(dec("2")))
	assert.True(t, positions[1].FillQuantity.Equal(dec("3")))
	assert.True(t, positions[1].AvgFillPrice.Equal(dec("10")))
}

func TestZeroFillHasZeroAveragePrice(t *testing.T) {
	_, positions, out := Transition(nil, nil, report(enum.ExecutionTrade, enum.OrderTypeMarket, "m", ""))
	require.Equal(t, OutcomeFilled, out.Kind)
	require.Len(t, positions, 1)
	assert.True(t, positions[0].AvgFillPrice.IsZero())
}
