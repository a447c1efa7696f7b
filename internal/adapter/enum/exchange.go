package enum

import "strings"

// Exchange identifies a venue feeding the pipeline.
type Exchange uint8

const (
	_exchange_beg Exchange = iota
	ExchangeBinance
	ExchangeOKX
	_exchange_end
)

func (e Exchange) IsAvailable() bool {
	return e > _exchange_beg && e < _exchange_end
}

func (e Exchange) String() string {
	switch e {
	case ExchangeBinance:
		return "binance"
	case ExchangeOKX:
		return "okx"
	default:
		return "unknown"
	}
}

// ParseExchange maps a configuration name to an Exchange. The second value is false
// for unknown names.
func ParseExchange(name string) (Exchange, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "binance", "binanceus", "binance_us":
		return ExchangeBinance, true
	case "okx":
		return ExchangeOKX, true
	default:
		return 0, false
	}
}
