package enum

import "strings"

// OrderSide buy, sell
type OrderSide uint8

const (
	_order_side_beg OrderSide = iota
	OrderSideBuy
	OrderSideSell
	_order_side_end
)

func (s OrderSide) IsAvailable() bool {
	return s > _order_side_beg && s < _order_side_end
}

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "BUY"
	case OrderSideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

func ParseOrderSide(s string) OrderSide {
	switch strings.ToUpper(s) {
	case "BUY":
		return OrderSideBuy
	case "SELL":
		return OrderSideSell
	default:
		return _order_side_beg
	}
}

// OrderType limit, market
type OrderType uint8

const (
	_order_type_beg OrderType = iota
	OrderTypeLimit
	OrderTypeMarket
	_order_type_end
)

func (t OrderType) IsAvailable() bool {
	return t > _order_type_beg && t < _order_type_end
}

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "LIMIT"
	case OrderTypeMarket:
		return "MARKET"
	default:
		return "UNKNOWN"
	}
}

func ParseOrderType(s string) OrderType {
	switch strings.ToUpper(s) {
	case "LIMIT", "POST_ONLY", "LIMIT_MAKER":
		return OrderTypeLimit
	case "MARKET":
		return OrderTypeMarket
	default:
		return _order_type_beg
	}
}

// ExecutionType new, canceled, trade, rejected, expired
type ExecutionType uint8

const (
	_execution_type_beg ExecutionType = iota
	ExecutionNew
	ExecutionCanceled
	ExecutionTrade
	ExecutionRejected
	ExecutionExpired
	_execution_type_end
)

func (e ExecutionType) IsAvailable() bool {
	return e > _execution_type_beg && e < _execution_type_end
}

func (e ExecutionType) String() string {
	switch e {
	case ExecutionNew:
		return "NEW"
	case ExecutionCanceled:
		return "CANCELED"
	case ExecutionTrade:
		return "TRADE"
	case ExecutionRejected:
		return "REJECTED"
	case ExecutionExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

func ParseExecutionType(s string) ExecutionType {
	switch strings.ToUpper(s) {
	case "NEW":
		return ExecutionNew
	case "CANCELED", "CANCELLED":
		return ExecutionCanceled
	case "TRADE":
		return ExecutionTrade
	case "REJECTED":
		return ExecutionRejected
	case "EXPIRED":
		return ExecutionExpired
	default:
		return _execution_type_beg
	}
}

// OrderTimeInForce GTC, IOC, FOK
type OrderTimeInForce uint8

const (
	_order_time_in_force_beg OrderTimeInForce = iota
	OrderTimeInForceGTC
	OrderTimeInForceIOC
	OrderTimeInForceFOK
	_order_time_in_force_end
)

func (t OrderTimeInForce) IsAvailable() bool {
	return t > _order_time_in_force_beg && t < _order_time_in_force_end
}

func (t OrderTimeInForce) String() string {
	switch t {
	case OrderTimeInForceGTC:
		return "GTC"
	case OrderTimeInForceIOC:
		return "IOC"
	case OrderTimeInForceFOK:
		return "FOK"
	default:
		return "UNKNOWN"
	}
}

func ParseTimeInForce(s string) OrderTimeInForce {
	switch strings.ToUpper(s) {
	case "GTC":
		return OrderTimeInForceGTC
	case "IOC":
		return OrderTimeInForceIOC
	case "FOK":
		return OrderTimeInForceFOK
	default:
		return _order_time_in_force_beg
	}
}
