package adapter

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is the free and locked amount of one asset.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// Total is free plus locked.
func (b Balance) Total() decimal.Decimal {
	return b.Free.Add(b.Locked)
}

// BalanceEvent either replaces the whole table (IsSnapshot) or the named assets only.
type BalanceEvent struct {
	EventTime  time.Time
	IsSnapshot bool
	Balances   []Balance
}

// AccountSnapshot is the authenticated REST view of an account.
type AccountSnapshot struct {
	UpdateTime time.Time
	MakerFee   decimal.Decimal
	TakerFee   decimal.Decimal
	Balances   []Balance
}

// BalanceEvent converts the snapshot into a table replacing balance event.
func (s AccountSnapshot) BalanceEvent() BalanceEvent {
	return BalanceEvent{
		EventTime:  s.UpdateTime,
		IsSnapshot: true,
		Balances:   s.Balances,
	}
}
