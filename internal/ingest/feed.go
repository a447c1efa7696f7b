package ingest

import (
	"context"
	"time"

	"feedstate/internal/adapter"
	"feedstate/internal/adapter/enum"
	"feedstate/internal/obs"
	"feedstate/pkg/backoff"
	"feedstate/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

type connectFunc func(ctx context.Context) (adapter.Stream, error)

const (
	feedMarket  = "market"
	feedAccount = "account"
)

// supervise keeps one feed of v alive until ctx ends, reconnecting after a fixed
// delay whenever the session fails. A market session can also be ended by the
// controller to force a resubscribe.
func (use *Usecase) supervise(ctx context.Context, v *venue, feed string, connect connectFunc) error {
	name := v.exchange.Name()
	for {
		sid := use.sessions.Next()
		logs.Infof("%s %s feed starting, session: %d", name, feed, sid)

		sctx, cancel := context.WithCancelCause(ctx)
		if feed == feedMarket {
			v.setSession(cancel)
		}
		err := use.pump(sctx, v, connect)
		if sctx.Err() != nil && ctx.Err() == nil {
			err = context.Cause(sctx)
		}
		if feed == feedMarket {
			v.setSession(nil)
		}
		cancel(nil)

		if ctx.Err() != nil {
			logs.Infof("%s %s feed stopped, session: %d", name, feed, sid)
			return nil
		}
		if errors.Is(err, exception.ErrAccountNotConfigured) {
			logs.Infof("%s account not configured, %s feed disabled", name, feed)
			return nil
		}

		use.metrics.Inc(obs.CounterFeedRestart)
		logs.Errorf("%s %s feed failed, session: %d, restart in %s, err: %+v", name, feed, sid, use.opt.FeedRestartDelay, err)
		if !backoff.Sleep(ctx, use.opt.FeedRestartDelay) {
			return nil
		}
	}
}

// pump connects once and routes frames until the stream or ctx fails. Undecodable
// frames are counted and dropped without ending the session, unless the venue reports
// that the stream must be resubscribed.
func (use *Usecase) pump(ctx context.Context, v *venue, connect connectFunc) error {
	stream, err := connect(ctx)
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	defer stream.Close()

	name := v.exchange.Name()
	for {
		frame, err := stream.Next(ctx)
		if err != nil {
			return errors.Wrap(err, "next frame")
		}
		recv := time.Now()

		events, err := v.exchange.Decode(frame)
		if errors.Is(err, exception.ErrResyncRequired) {
			return err
		}
		if err != nil {
			use.metrics.Inc(obs.CounterMalformed)
			logs.Warnf("%s drop frame, err: %+v", name, err)
			continue
		}
		for _, ev := range events {
			if err := use.route(ctx, v, ev, recv); err != nil {
				if errors.Is(err, exception.ErrQueueClosed) {
					use.metrics.Inc(obs.CounterQueueClosed)
				}
				return err
			}
		}
	}
}

// route publishes one event to the queue of its message class.
func (use *Usecase) route(ctx context.Context, v *venue, ev adapter.Event, recv time.Time) error {
	name := v.exchange.Name()
	switch ev.Kind {
	case enum.EventDiff:
		use.metrics.ObserveEvent(ev.Diff.EventTime, recv)
		return v.market.Publish(ctx, adapter.Envelope{
			MessageType: enum.MessageOrderBookUpdate,
			Diff:        ev.Diff,
			Timestamp:   recv,
			Symbol:      ev.Diff.Symbol,
			Exchange:    name,
		})
	case enum.EventSnapshot:
		return v.market.Publish(ctx, adapter.Envelope{
			MessageType: enum.MessageOrderBookSnapshot,
			Snapshot:    ev.Snapshot,
			Timestamp:   recv,
			Symbol:      ev.Snapshot.Symbol,
			Exchange:    name,
		})
	case enum.EventTrade:
		use.metrics.ObserveEvent(ev.Trade.EventTime, recv)
		return use.tradeQueue.Publish(ctx, tradeUpdate{Exchange: name, Trade: ev.Trade})
	case enum.EventExecutionReport:
		r := ev.Report
		if !r.Exchange.IsAvailable() {
			r.Exchange = name
		}
		return use.orderQueue.Publish(ctx, r)
	case enum.EventBalance:
		return use.balanceQueue.Publish(ctx, balanceUpdate{Exchange: name, Event: ev.Balance})
	default:
		use.metrics.Inc(obs.CounterMalformed)
		logs.Warnf("%s unknown event kind %d", name, ev.Kind)
		return nil
	}
}
