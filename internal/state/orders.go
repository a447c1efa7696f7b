// Package state holds the account side registries: open orders, the position log and
// per exchange balance tables.
package state

import (
	"slices"
	"sync"

	"feedstate/internal/adapter"
	"feedstate/internal/adapter/enum"
)

// OutcomeKind describes what an execution report did to the registries.
type OutcomeKind uint8

const (
	_outcome_kind_beg OutcomeKind = iota
	OutcomeOpened
	OutcomeRemoved
	OutcomeFilled
	OutcomeRejected
	// OutcomeUnmatched means the report referenced an order that is not open.
	OutcomeUnmatched
	// OutcomeIgnored means the combination of execution and order type has no effect.
	OutcomeIgnored
	_outcome_kind_end
)

func (k OutcomeKind) IsAvailable() bool {
	return k > _outcome_kind_beg && k < _outcome_kind_end
}

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOpened:
		return "opened"
	case OutcomeRemoved:
		return "removed"
	case OutcomeFilled:
		return "filled"
	case OutcomeRejected:
		return "rejected"
	case OutcomeUnmatched:
		return "unmatched"
	case OutcomeIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Outcome is the observable result of one transition.
type Outcome struct {
	Kind          OutcomeKind
	CorrelationID string
	Position      *adapter.Position
}

// Transition applies one execution report. The input slices are never modified; the
// returned slices may share backing arrays with them only when unchanged.
//
//	NEW      LIMIT   append open order
//	CANCELED any     remove matching open order
//	TRADE    LIMIT   remove matching open order, append position
//	TRADE    MARKET  append position
//	REJECTED any     notification only
//	EXPIRED  LIMIT   remove matching open order
func Transition(orders []adapter.OpenOrder, positions []adapter.Position, r adapter.ExecutionReport) ([]adapter.OpenOrder, []adapter.Position, Outcome) {
	id := r.CorrelationID()
	out := Outcome{Kind: OutcomeIgnored, CorrelationID: id}

	switch r.ExecutionType {
	case enum.ExecutionNew:
		if r.OrderType != enum.OrderTypeLimit {
			return orders, positions, out
		}
		out.Kind = OutcomeOpened
		out.CorrelationID = r.ClientOrderID
		return append(slices.Clip(orders), openOrderFrom(r)), positions, out

	case enum.ExecutionCanceled:
		next, ok := removeOrder(orders, id)
		if !ok {
			out.Kind = OutcomeUnmatched
			return orders, positions, out
		}
		out.Kind = OutcomeRemoved
		return next, positions, out

	case enum.ExecutionTrade:
		switch r.OrderType {
		case enum.OrderTypeLimit:
			next, ok := removeOrder(orders, id)
			if !ok {
				out.Kind = OutcomeUnmatched
				return orders, positions, out
			}
			p := positionFrom(r)
			out.Kind = OutcomeFilled
			out.Position = &p
			return next, append(slices.Clip(positions), p), out
		case enum.OrderTypeMarket:
			p := positionFrom(r)
			out.Kind = OutcomeFilled
			out.Position = &p
			return orders, append(slices.Clip(positions), p), out
		}
		return orders, positions, out

	case enum.ExecutionRejected:
		out.Kind = OutcomeRejected
		return orders, positions, out

	case enum.ExecutionExpired:
		if r.OrderType != enum.OrderTypeLimit {
			return orders, positions, out
		}
		next, ok := removeOrder(orders, id)
		if !ok {
			out.Kind = OutcomeUnmatched
			return orders, positions, out
		}
		out.Kind = OutcomeRemoved
		return next, positions, out
	}

	return orders, positions, out
}

func removeOrder(orders []adapter.OpenOrder, clientOrderID string) ([]adapter.OpenOrder, bool) {
	if clientOrderID == "" {
		return orders, false
	}
	idx := slices.IndexFunc(orders, func(o adapter.OpenOrder) bool {
		return o.ClientOrderID == clientOrderID
	})
	if idx < 0 {
		return orders, false
	}
	next := make([]adapter.OpenOrder, 0, len(orders)-1)
	next = append(next, orders[:idx]...)
	next = append(next, orders[idx+1:]...)
	return next, true
}

func openOrderFrom(r adapter.ExecutionReport) adapter.OpenOrder {
	return adapter.OpenOrder{
		Exchange:      r.Exchange,
		Symbol:        r.Symbol,
		ClientOrderID: r.ClientOrderID,
		Side:          r.Side,
		Type:          r.OrderType,
		Quantity:      r.Quantity,
		Price:         r.Price,
		TimeInForce:   r.TimeInForce,
		CreatedAt:     r.TransactTime,
	}
}

// positionFrom derives the fill record. The average price is notional over quantity,
// zero when nothing was filled.
func positionFrom(r adapter.ExecutionReport) adapter.Position {
	p := adapter.Position{
		Exchange:     r.Exchange,
		Symbol:       r.Symbol,
		Side:         r.Side,
		FillQuantity: r.FillQuantity,
		TransactTime: r.TransactTime,
	}
	if !r.FillQuantity.IsZero() {
		p.AvgFillPrice = r.FillNotional.Div(r.FillQuantity)
	}
	return p
}

// OrderTracker owns the open order list and the position log. Apply is called by a
// single consumer; readers get copies.
type OrderTracker struct {
	maxPositions int

	mu        sync.RWMutex
	orders    []adapter.OpenOrder
	positions []adapter.Position
}

// NewOrderTracker creates a tracker. maxPositions caps the position log, evicting the
// oldest entries; zero keeps every position.
func NewOrderTracker(maxPositions int) *OrderTracker {
	if maxPositions < 0 {
		maxPositions = 0
	}
	return &OrderTracker{maxPositions: maxPositions}
}

func (t *OrderTracker) Apply(r adapter.ExecutionReport) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	orders, positions, out := Transition(t.orders, t.positions, r)
	if t.maxPositions > 0 && len(positions) > t.maxPositions {
		positions = slices.Clone(positions[len(positions)-t.maxPositions:])
	}
	t.orders, t.positions = orders, positions
	return out
}

// Restore replaces both registries, e.g. from a persisted state dump.
func (t *OrderTracker) Restore(orders []adapter.OpenOrder, positions []adapter.Position) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.orders = slices.Clone(orders)
	t.positions = slices.Clone(positions)
}

func (t *OrderTracker) OpenOrders() []adapter.OpenOrder {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.orders)
}

func (t *OrderTracker) Positions() []adapter.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.positions)
}
