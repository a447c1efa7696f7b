package adapter

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Level is one price level: a price and the resting quantity at it.
type Level struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

func NewLevel(price, quantity string) (Level, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return Level{}, err
	}
	q, err := decimal.NewFromString(quantity)
	if err != nil {
		return Level{}, err
	}
	return Level{Price: p, Quantity: q}, nil
}

// Diff is an incremental order book update covering [FirstUpdateID, LastUpdateID].
// A level with zero quantity removes that price.
type Diff struct {
	Symbol        Symbol
	EventTime     time.Time
	FirstUpdateID int64
	LastUpdateID  int64
	Bids          []Level
	Asks          []Level
}

// Snapshot is an authoritative full book at LastUpdateID.
type Snapshot struct {
	Symbol       Symbol
	LastUpdateID int64
	Bids         []Level
	Asks         []Level
}

// Debug returns a human readable format string
func (d Diff) Debug() string {
	buf := make([]byte, 0, 256)
	buf = append(buf, "Diff{symbol="...)
	buf = append(buf, d.Symbol.String()...)
	buf = append(buf, " first="...)
	buf = strconv.AppendInt(buf, d.FirstUpdateID, 10)
	buf = append(buf, " last="...)
	buf = strconv.AppendInt(buf, d.LastUpdateID, 10)
	buf = append(buf, " bids="...)
	buf = appendLevels(buf, d.Bids)
	buf = append(buf, " asks="...)
	buf = appendLevels(buf, d.Asks)
	buf = append(buf, '}')
	return string(buf)
}

func appendLevels(buf []byte, levels []Level) []byte {
	buf = append(buf, '[')
	for i := range levels {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '(')
		buf = append(buf, levels[i].Price.String()...)
		buf = append(buf, ',')
		buf = append(buf, levels[i].Quantity.String()...)
		buf = append(buf, ')')
	}
	return append(buf, ']')
}
