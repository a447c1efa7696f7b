package analytics

import (
	"strings"

	"feedstate/internal/adapter"
	"feedstate/internal/adapter/enum"

	"github.com/shopspring/decimal"
)

// PriceSource resolves the latest series sample of a book.
type PriceSource interface {
	Latest(key adapter.BookKey) (Sample, bool)
}

// Holding is one valued balance.
type Holding struct {
	Asset    string
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Value    decimal.Decimal
}

// Equity is the mark to market value of one exchange's balances in its quote asset.
// Assets without a price sample yet are listed in Deferred and left out of Total.
type Equity struct {
	Exchange enum.Exchange
	Quote    string
	Total    decimal.Decimal
	Holdings []Holding
	Deferred []string
}

// Complete reports whether every nonzero balance was valued.
func (e Equity) Complete() bool {
	return len(e.Deferred) == 0
}

// Value marks balances to the latest midprice of {asset, quote} on the same exchange.
func Value(exchange enum.Exchange, quote string, balances []adapter.Balance, prices PriceSource) Equity {
	quote = strings.ToUpper(quote)
	eq := Equity{Exchange: exchange, Quote: quote, Total: decimal.Zero}

	for _, b := range balances {
		qty := b.Total()
		if qty.IsZero() {
			continue
		}
		asset := strings.ToUpper(b.Asset)
		if asset == quote {
			eq.Holdings = append(eq.Holdings, Holding{Asset: asset, Quantity: qty, Price: decimal.NewFromInt(1), Value: qty})
			eq.Total = eq.Total.Add(qty)
			continue
		}

		sample, ok := prices.Latest(adapter.BookKey{Exchange: exchange, Symbol: adapter.NewSymbol(asset, quote)})
		if !ok {
			eq.Deferred = append(eq.Deferred, asset)
			continue
		}
		value := qty.Mul(sample.Midprice)
		eq.Holdings = append(eq.Holdings, Holding{Asset: asset, Quantity: qty, Price: sample.Midprice, Value: value})
		eq.Total = eq.Total.Add(value)
	}
	return eq
}
