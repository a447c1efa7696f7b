package ingest

import (
	"context"

	"feedstate/internal/adapter"
	"feedstate/internal/adapter/enum"
	"feedstate/internal/obs"
	"feedstate/internal/state"

	"github.com/yanun0323/logs"
)

// marketHandler applies order book messages of one exchange. It is the only writer of
// that exchange's books.
func (use *Usecase) marketHandler(v *venue) func(context.Context, adapter.Envelope) {
	return func(ctx context.Context, env adapter.Envelope) {
		switch env.MessageType {
		case enum.MessageOrderBookSnapshot:
			env.Snapshot.Symbol = env.Symbol
			v.controller.ApplySnapshot(env.Snapshot)
		case enum.MessageOrderBookUpdate:
			if _, err := v.controller.ApplyDiff(ctx, env.Diff); err != nil {
				logs.Errorf("%s apply diff, err: %+v", env.Key(), err)
			}
		default:
			use.metrics.Inc(obs.CounterMalformed)
			logs.Warnf("%s unexpected message type %s", env.Key(), env.MessageType)
		}
	}
}

func (use *Usecase) handleOrder(_ context.Context, r adapter.ExecutionReport) {
	use.metrics.Inc(obs.CounterOrderEvent)
	out := use.orders.Apply(r)

	switch out.Kind {
	case state.OutcomeUnmatched:
		use.metrics.Inc(obs.CounterOrderUnmatched)
		logs.Infof("%s %s %s for unknown order %s", r.Exchange, r.Symbol, r.ExecutionType, out.CorrelationID)
	case state.OutcomeRejected:
		use.metrics.Inc(obs.CounterOrderRejected)
		logs.Warnf("%s %s order %s rejected, reason: %s", r.Exchange, r.Symbol, out.CorrelationID, r.RejectReason)
	case state.OutcomeFilled:
		logs.Infof("%s %s %s filled %s @ %s", r.Exchange, r.Symbol, out.Position.Side, out.Position.FillQuantity, out.Position.AvgFillPrice)
	}
}

// handleBalance is the only writer of the balance tables.
func (use *Usecase) handleBalance(_ context.Context, u balanceUpdate) {
	table := use.balances.Table(u.Exchange)
	if u.Account != nil {
		table.ApplyAccount(*u.Account)
		logs.Infof("%s account seeded, assets: %d", u.Exchange, len(u.Account.Balances))
		return
	}
	use.metrics.Inc(obs.CounterBalanceEvent)
	table.Apply(u.Event)
}

func (use *Usecase) handleTrade(_ context.Context, u tradeUpdate) {
	use.metrics.Inc(obs.CounterTrade)
	use.trades.Put(adapter.BookKey{Exchange: u.Exchange, Symbol: u.Trade.Symbol}, u.Trade)
}
