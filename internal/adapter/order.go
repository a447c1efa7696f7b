package adapter

import (
	"time"

	"feedstate/internal/adapter/enum"

	"github.com/shopspring/decimal"
)

// ExecutionReport is one order lifecycle transition reported by the account feed.
type ExecutionReport struct {
	Exchange          enum.Exchange
	Symbol            Symbol
	EventTime         time.Time
	ExecutionType     enum.ExecutionType
	OrderType         enum.OrderType
	Side              enum.OrderSide
	TimeInForce       enum.OrderTimeInForce
	Quantity          decimal.Decimal
	Price             decimal.Decimal
	FillQuantity      decimal.Decimal // cumulative filled base quantity
	FillNotional      decimal.Decimal // cumulative filled quote quantity
	ClientOrderID     string
	OrigClientOrderID string
	TransactTime      time.Time
	RejectReason      string
}

// CorrelationID is the id used to find the open order a report refers to. Cancel and
// expire reports carry the original id separately; fills usually do not, so the
// report's own client id is used when the original one is empty.
func (r ExecutionReport) CorrelationID() string {
	if r.OrigClientOrderID != "" {
		return r.OrigClientOrderID
	}
	return r.ClientOrderID
}

// OpenOrder is a resting order known to the account.
type OpenOrder struct {
	Exchange      enum.Exchange
	Symbol        Symbol
	ClientOrderID string
	Side          enum.OrderSide
	Type          enum.OrderType
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	TimeInForce   enum.OrderTimeInForce
	CreatedAt     time.Time
}

// Position is an immutable fill record.
type Position struct {
	Exchange     enum.Exchange
	Symbol       Symbol
	Side         enum.OrderSide
	FillQuantity decimal.Decimal
	AvgFillPrice decimal.Decimal
	TransactTime time.Time
}
