package okx

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"feedstate/internal/adapter"
	"feedstate/internal/adapter/enum"
	"feedstate/internal/exchange"
	"feedstate/pkg/exception"
	"feedstate/pkg/scanner"

	"github.com/yanun0323/errors"
)

const (
	channelBooks   = "books"
	channelTrades  = "trades"
	channelOrders  = "orders"
	channelAccount = "account"

	actionSnapshot = "snapshot"
	actionUpdate   = "update"

	eventError = "error"
	eventLogin = "login"
)

var pong = []byte("pong")

// IsHeartbeat reports whether payload is the reply to a text "ping".
func IsHeartbeat(payload []byte) bool {
	return bytes.Equal(payload, pong)
}

// Decode maps one frame of either stream. Op replies decode to nothing unless they
// carry an error.
func (e *Exchange) Decode(payload []byte) ([]adapter.Event, error) {
	if IsHeartbeat(payload) {
		return nil, nil
	}

	if event, ok := scanner.StringField(payload, "event"); ok {
		if string(event) != eventError {
			return nil, nil
		}
		var reply eventReply
		if err := unmarshal(payload, &reply, "event"); err != nil {
			return nil, err
		}
		return nil, errors.Wrapf(exception.ErrInResponseError, "code: %s, msg: %s", reply.Code, reply.Msg)
	}

	var msg push
	if err := unmarshal(payload, &msg, "push"); err != nil {
		return nil, err
	}

	switch msg.Arg.Channel {
	case channelBooks:
		return e.decodeBooks(msg)
	case channelTrades:
		return e.decodeTrades(msg)
	case channelOrders:
		return e.decodeOrders(msg)
	case channelAccount:
		return e.decodeAccount(msg)
	default:
		return nil, nil
	}
}

func (e *Exchange) symbol(native string) (adapter.Symbol, error) {
	s, ok := e.index.Lookup(native)
	if !ok {
		return adapter.Symbol{}, errors.Wrapf(exception.ErrUnknownSymbol, "okx instrument %q", native)
	}
	return s, nil
}

func unmarshal(payload []byte, v any, what string) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return errors.Wrapf(exception.ErrMalformedMessage, "okx %s: %s", what, err.Error())
	}
	return nil
}

// millis parses a millisecond timestamp string; empty is the zero time.
func millis(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(exception.ErrMalformedMessage, "field %s: %q", field, s)
	}
	return exchange.Millis(ms), nil
}

// decodeBooks maps the books channel. A snapshot action carries the full book at
// seqId; an update covers (prevSeqId, seqId]. Updates whose seqId did not move are
// keepalives and decode to nothing.
func (e *Exchange) decodeBooks(msg push) ([]adapter.Event, error) {
	symbol, err := e.symbol(msg.Arg.InstID)
	if err != nil {
		return nil, err
	}
	var rows []bookData
	if err := unmarshal(msg.Data, &rows, channelBooks); err != nil {
		return nil, err
	}

	events := make([]adapter.Event, 0, len(rows))
	for _, row := range rows {
		bids, err := exchange.Levels(row.Bids)
		if err != nil {
			return nil, err
		}
		asks, err := exchange.Levels(row.Asks)
		if err != nil {
			return nil, err
		}

		switch msg.Action {
		case actionSnapshot:
			events = append(events, adapter.SnapshotEvent(adapter.Snapshot{
				Symbol:       symbol,
				LastUpdateID: row.SeqID,
				Bids:         bids,
				Asks:         asks,
			}))
		case actionUpdate:
			if row.SeqID == row.PrevSeqID {
				continue
			}
			if row.SeqID < row.PrevSeqID {
				return nil, errors.Wrapf(exception.ErrResyncRequired, "okx books sequence reset, prevSeqId: %d, seqId: %d", row.PrevSeqID, row.SeqID)
			}
			ts, err := millis("ts", row.Timestamp)
			if err != nil {
				return nil, err
			}
			events = append(events, adapter.DiffEvent(adapter.Diff{
				Symbol:        symbol,
				EventTime:     ts,
				FirstUpdateID: row.PrevSeqID + 1,
				LastUpdateID:  row.SeqID,
				Bids:          bids,
				Asks:          asks,
			}))
		default:
			return nil, errors.Wrapf(exception.ErrMalformedMessage, "okx books action %q", msg.Action)
		}
	}
	return events, nil
}

func (e *Exchange) decodeTrades(msg push) ([]adapter.Event, error) {
	var rows []tradeData
	if err := unmarshal(msg.Data, &rows, channelTrades); err != nil {
		return nil, err
	}

	events := make([]adapter.Event, 0, len(rows))
	for _, row := range rows {
		symbol, err := e.symbol(row.InstID)
		if err != nil {
			return nil, err
		}
		price, err := exchange.Decimal("px", row.Price)
		if err != nil {
			return nil, err
		}
		size, err := exchange.Decimal("sz", row.Size)
		if err != nil {
			return nil, err
		}
		ts, err := millis("ts", row.Timestamp)
		if err != nil {
			return nil, err
		}
		events = append(events, adapter.TradeEvent(adapter.Trade{
			Symbol:    symbol,
			EventTime: ts,
			Price:     price,
			Quantity:  size,
			Side:      enum.ParseOrderSide(row.Side),
		}))
	}
	return events, nil
}

// executionType maps an order state onto the lifecycle vocabulary. Any fill reports
// as TRADE.
func executionType(state string) (enum.ExecutionType, bool) {
	switch state {
	case "live":
		return enum.ExecutionNew, true
	case "partially_filled", "filled":
		return enum.ExecutionTrade, true
	case "canceled", "mmp_canceled":
		return enum.ExecutionCanceled, true
	default:
		return 0, false
	}
}

// orderType folds the ioc and fok order types into LIMIT with a time in force.
func orderType(native string) (enum.OrderType, enum.OrderTimeInForce) {
	switch native {
	case "market":
		return enum.OrderTypeMarket, enum.OrderTimeInForceIOC
	case "ioc", "optimal_limit_ioc":
		return enum.OrderTypeLimit, enum.OrderTimeInForceIOC
	case "fok":
		return enum.OrderTypeLimit, enum.OrderTimeInForceFOK
	default:
		return enum.OrderTypeLimit, enum.OrderTimeInForceGTC
	}
}

func (e *Exchange) decodeOrders(msg push) ([]adapter.Event, error) {
	var rows []orderData
	if err := unmarshal(msg.Data, &rows, channelOrders); err != nil {
		return nil, err
	}

	events := make([]adapter.Event, 0, len(rows))
	for _, row := range rows {
		r, err := e.report(row)
		if err != nil {
			return nil, err
		}
		events = append(events, adapter.ReportEvent(r))
	}
	return events, nil
}

func (e *Exchange) report(row orderData) (adapter.ExecutionReport, error) {
	symbol, err := e.symbol(row.InstID)
	if err != nil {
		return adapter.ExecutionReport{}, err
	}

	execType, ok := executionType(row.State)
	rejected := row.Code != "" && row.Code != "0"
	if rejected {
		execType, ok = enum.ExecutionRejected, true
	}
	if !ok {
		return adapter.ExecutionReport{}, errors.Wrapf(exception.ErrMalformedMessage, "okx order state %q", row.State)
	}

	ordType, tif := orderType(row.OrdType)
	r := adapter.ExecutionReport{
		Exchange:      enum.ExchangeOKX,
		Symbol:        symbol,
		ExecutionType: execType,
		OrderType:     ordType,
		Side:          enum.ParseOrderSide(row.Side),
		TimeInForce:   tif,
		ClientOrderID: row.ClOrdID,
	}
	if r.ClientOrderID == "" {
		r.ClientOrderID = row.OrdID
	}
	if rejected {
		r.RejectReason = row.Code + ": " + row.Msg
	}

	if r.EventTime, err = millis("uTime", row.UpdateTime); err != nil {
		return adapter.ExecutionReport{}, err
	}
	r.TransactTime = r.EventTime
	if row.FillTime != "" {
		if r.TransactTime, err = millis("fillTime", row.FillTime); err != nil {
			return adapter.ExecutionReport{}, err
		}
	}

	if r.Quantity, err = exchange.Decimal("sz", row.Size); err != nil {
		return adapter.ExecutionReport{}, err
	}
	if r.Price, err = exchange.Decimal("px", row.Price); err != nil {
		return adapter.ExecutionReport{}, err
	}
	if r.FillQuantity, err = exchange.Decimal("accFillSz", row.AccFillSize); err != nil {
		return adapter.ExecutionReport{}, err
	}
	avg, err := exchange.Decimal("avgPx", row.AvgPrice)
	if err != nil {
		return adapter.ExecutionReport{}, err
	}
	r.FillNotional = r.FillQuantity.Mul(avg)
	return r, nil
}

func (e *Exchange) decodeAccount(msg push) ([]adapter.Event, error) {
	var rows []accountData
	if err := unmarshal(msg.Data, &rows, channelAccount); err != nil {
		return nil, err
	}

	events := make([]adapter.Event, 0, len(rows))
	for _, row := range rows {
		ev, err := balanceEvent(row, false)
		if err != nil {
			return nil, err
		}
		events = append(events, adapter.BalanceUpdateEvent(ev))
	}
	return events, nil
}

func balanceEvent(row accountData, isSnapshot bool) (adapter.BalanceEvent, error) {
	ts, err := millis("uTime", row.UpdateTime)
	if err != nil {
		return adapter.BalanceEvent{}, err
	}
	balances := make([]adapter.Balance, 0, len(row.Details))
	for _, d := range row.Details {
		free, err := exchange.Decimal("availBal", d.Available)
		if err != nil {
			return adapter.BalanceEvent{}, err
		}
		locked, err := exchange.Decimal("frozenBal", d.Frozen)
		if err != nil {
			return adapter.BalanceEvent{}, err
		}
		balances = append(balances, adapter.Balance{Asset: d.Currency, Free: free, Locked: locked})
	}
	return adapter.BalanceEvent{EventTime: ts, IsSnapshot: isSnapshot, Balances: balances}, nil
}
