package adapter

import (
	"time"

	"feedstate/internal/adapter/enum"

	"github.com/shopspring/decimal"
)

// Trade is a public trade print.
type Trade struct {
	Symbol    Symbol
	EventTime time.Time
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Side      enum.OrderSide
}

// Event is one decoded feed message. Exactly the field matching Kind is set.
type Event struct {
	Kind     enum.EventKind
	Diff     Diff
	Snapshot Snapshot
	Trade    Trade
	Report   ExecutionReport
	Balance  BalanceEvent
}

func DiffEvent(d Diff) Event {
	return Event{Kind: enum.EventDiff, Diff: d}
}

func SnapshotEvent(s Snapshot) Event {
	return Event{Kind: enum.EventSnapshot, Snapshot: s}
}

func TradeEvent(t Trade) Event {
	return Event{Kind: enum.EventTrade, Trade: t}
}

func ReportEvent(r ExecutionReport) Event {
	return Event{Kind: enum.EventExecutionReport, Report: r}
}

func BalanceUpdateEvent(b BalanceEvent) Event {
	return Event{Kind: enum.EventBalance, Balance: b}
}

// Envelope is the queued form of an order book message.
type Envelope struct {
	MessageType enum.MessageType
	Diff        Diff
	Snapshot    Snapshot
	Timestamp   time.Time
	Symbol      Symbol
	Exchange    enum.Exchange
}

func (e Envelope) Key() BookKey {
	return BookKey{Exchange: e.Exchange, Symbol: e.Symbol}
}
