package binance

import (
	"encoding/json"

	"feedstate/internal/adapter"
	"feedstate/internal/adapter/enum"
	"feedstate/internal/exchange"
	"feedstate/pkg/exception"
	"feedstate/pkg/scanner"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

const (
	eventDepthUpdate     = "depthUpdate"
	eventTrade           = "trade"
	eventExecutionReport = "executionReport"
	eventAccountPosition = "outboundAccountPosition"
)

// Decode maps one frame of either stream. Frames without an event type (subscribe
// acks) and event types the pipeline does not track decode to nothing.
func (e *Exchange) Decode(payload []byte) ([]adapter.Event, error) {
	kind, ok := scanner.StringField(payload, "e")
	if !ok {
		if scanner.HasField(payload, "code") {
			var apiErr apiError
			if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Code != 0 {
				return nil, errors.Wrapf(exception.ErrInResponseError, "code: %d, msg: %s", apiErr.Code, apiErr.Msg)
			}
		}
		return nil, nil
	}

	switch string(kind) {
	case eventDepthUpdate:
		d, err := e.decodeDiff(payload)
		if err != nil {
			return nil, err
		}
		return []adapter.Event{adapter.DiffEvent(d)}, nil
	case eventTrade:
		t, err := e.decodeTrade(payload)
		if err != nil {
			return nil, err
		}
		return []adapter.Event{adapter.TradeEvent(t)}, nil
	case eventExecutionReport:
		r, err := e.decodeExecutionReport(payload)
		if err != nil {
			return nil, err
		}
		return []adapter.Event{adapter.ReportEvent(r)}, nil
	case eventAccountPosition:
		b, err := e.decodeBalance(payload)
		if err != nil {
			return nil, err
		}
		return []adapter.Event{adapter.BalanceUpdateEvent(b)}, nil
	default:
		return nil, nil
	}
}

func (e *Exchange) symbol(native string) (adapter.Symbol, error) {
	s, ok := e.index.Lookup(native)
	if !ok {
		return adapter.Symbol{}, errors.Wrapf(exception.ErrUnknownSymbol, "binance symbol %q", native)
	}
	return s, nil
}

func unmarshal(payload []byte, v any, what string) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return errors.Wrapf(exception.ErrMalformedMessage, "binance %s: %s", what, err.Error())
	}
	return nil
}

func (e *Exchange) decodeDiff(payload []byte) (adapter.Diff, error) {
	var msg depthUpdate
	if err := unmarshal(payload, &msg, eventDepthUpdate); err != nil {
		return adapter.Diff{}, err
	}
	symbol, err := e.symbol(msg.Symbol)
	if err != nil {
		return adapter.Diff{}, err
	}
	if msg.FirstUpdateID <= 0 || msg.FinalUpdateID < msg.FirstUpdateID {
		return adapter.Diff{}, errors.Wrapf(exception.ErrMalformedMessage, "binance depth update range [%d, %d]", msg.FirstUpdateID, msg.FinalUpdateID)
	}
	bids, err := exchange.Levels(msg.Bids)
	if err != nil {
		return adapter.Diff{}, err
	}
	asks, err := exchange.Levels(msg.Asks)
	if err != nil {
		return adapter.Diff{}, err
	}
	return adapter.Diff{
		Symbol:        symbol,
		EventTime:     exchange.Millis(msg.EventTime),
		FirstUpdateID: msg.FirstUpdateID,
		LastUpdateID:  msg.FinalUpdateID,
		Bids:          bids,
		Asks:          asks,
	}, nil
}

func snapshotFrom(symbol adapter.Symbol, msg depthSnapshot) (adapter.Snapshot, error) {
	bids, err := exchange.Levels(msg.Bids)
	if err != nil {
		return adapter.Snapshot{}, err
	}
	asks, err := exchange.Levels(msg.Asks)
	if err != nil {
		return adapter.Snapshot{}, err
	}
	return adapter.Snapshot{
		Symbol:       symbol,
		LastUpdateID: msg.LastUpdateID,
		Bids:         bids,
		Asks:         asks,
	}, nil
}

func accountFrom(msg account) (adapter.AccountSnapshot, error) {
	maker, err := exchange.Decimal("commissionRates.maker", msg.CommissionRates.Maker)
	if err != nil {
		return adapter.AccountSnapshot{}, err
	}
	taker, err := exchange.Decimal("commissionRates.taker", msg.CommissionRates.Taker)
	if err != nil {
		return adapter.AccountSnapshot{}, err
	}
	balances := make([]adapter.Balance, 0, len(msg.Balances))
	for _, b := range msg.Balances {
		free, err := exchange.Decimal("free", b.Free)
		if err != nil {
			return adapter.AccountSnapshot{}, err
		}
		locked, err := exchange.Decimal("locked", b.Locked)
		if err != nil {
			return adapter.AccountSnapshot{}, err
		}
		balances = append(balances, adapter.Balance{Asset: b.Asset, Free: free, Locked: locked})
	}
	return adapter.AccountSnapshot{
		UpdateTime: exchange.Millis(msg.UpdateTime),
		MakerFee:   maker,
		TakerFee:   taker,
		Balances:   balances,
	}, nil
}

func (e *Exchange) decodeTrade(payload []byte) (adapter.Trade, error) {
	var msg trade
	if err := unmarshal(payload, &msg, eventTrade); err != nil {
		return adapter.Trade{}, err
	}
	symbol, err := e.symbol(msg.Symbol)
	if err != nil {
		return adapter.Trade{}, err
	}
	price, err := exchange.Decimal("p", msg.Price)
	if err != nil {
		return adapter.Trade{}, err
	}
	qty, err := exchange.Decimal("q", msg.Quantity)
	if err != nil {
		return adapter.Trade{}, err
	}
	side := enum.OrderSideBuy
	if msg.IsBuyerMaker {
		side = enum.OrderSideSell
	}
	return adapter.Trade{
		Symbol:    symbol,
		EventTime: exchange.Millis(msg.EventTime),
		Price:     price,
		Quantity:  qty,
		Side:      side,
	}, nil
}

func (e *Exchange) decodeExecutionReport(payload []byte) (adapter.ExecutionReport, error) {
	var msg executionReport
	if err := unmarshal(payload, &msg, eventExecutionReport); err != nil {
		return adapter.ExecutionReport{}, err
	}
	symbol, err := e.symbol(msg.Symbol)
	if err != nil {
		return adapter.ExecutionReport{}, err
	}

	execType := enum.ParseExecutionType(msg.ExecutionType)
	if !execType.IsAvailable() {
		return adapter.ExecutionReport{}, errors.Wrapf(exception.ErrMalformedMessage, "binance execution type %q", msg.ExecutionType)
	}

	r := adapter.ExecutionReport{
		Exchange:          enum.ExchangeBinance,
		Symbol:            symbol,
		EventTime:         exchange.Millis(msg.EventTime),
		ExecutionType:     execType,
		OrderType:         enum.ParseOrderType(msg.OrderType),
		Side:              enum.ParseOrderSide(msg.Side),
		TimeInForce:       enum.ParseTimeInForce(msg.TimeInForce),
		ClientOrderID:     msg.ClientOrderID,
		OrigClientOrderID: msg.OrigClientOrderID,
		TransactTime:      exchange.Millis(msg.TransactTime),
	}
	if msg.RejectReason != "NONE" {
		r.RejectReason = msg.RejectReason
	}

	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"q", msg.Quantity, &r.Quantity},
		{"p", msg.Price, &r.Price},
		{"z", msg.CumFilledQuantity, &r.FillQuantity},
		{"Z", msg.CumQuoteQuantity, &r.FillNotional},
	}
	for _, f := range fields {
		v, err := exchange.Decimal(f.name, f.raw)
		if err != nil {
			return adapter.ExecutionReport{}, err
		}
		*f.dst = v
	}
	return r, nil
}

func (e *Exchange) decodeBalance(payload []byte) (adapter.BalanceEvent, error) {
	var msg accountPosition
	if err := unmarshal(payload, &msg, eventAccountPosition); err != nil {
		return adapter.BalanceEvent{}, err
	}
	balances := make([]adapter.Balance, 0, len(msg.Balances))
	for _, b := range msg.Balances {
		free, err := exchange.Decimal("f", b.Free)
		if err != nil {
			return adapter.BalanceEvent{}, err
		}
		locked, err := exchange.Decimal("l", b.Locked)
		if err != nil {
			return adapter.BalanceEvent{}, err
		}
		balances = append(balances, adapter.Balance{Asset: b.Asset, Free: free, Locked: locked})
	}
	return adapter.BalanceEvent{
		EventTime: exchange.Millis(msg.EventTime),
		Balances:  balances,
	}, nil
}
