package adapter

import (
	"strings"

	"feedstate/internal/adapter/enum"
)

// Symbol is a trading pair. Exchanges spell pairs differently (BTCUSDT, BTC-USDT),
// so the canonical form keeps base and quote apart and adapters render their own.
type Symbol struct {
	Base  string
	Quote string
}

func NewSymbol(base, quote string) Symbol {
	return Symbol{
		Base:  strings.ToUpper(strings.TrimSpace(base)),
		Quote: strings.ToUpper(strings.TrimSpace(quote)),
	}
}

// String returns the concatenated upper case form, e.g. BTCUSDT.
func (s Symbol) String() string {
	return s.Base + s.Quote
}

// Join returns the pair joined by sep, e.g. BTC-USDT.
func (s Symbol) Join(sep string) string {
	return s.Base + sep + s.Quote
}

func (s Symbol) IsZero() bool {
	return s.Base == "" && s.Quote == ""
}

// SymbolIndex resolves exchange spellings back to configured symbols.
type SymbolIndex struct {
	bySpelling map[string]Symbol
}

// NewSymbolIndex indexes symbols under both the concatenated and the sep-joined spelling.
func NewSymbolIndex(symbols []Symbol, sep string) SymbolIndex {
	idx := SymbolIndex{bySpelling: make(map[string]Symbol, len(symbols)*2)}
	for _, s := range symbols {
		idx.bySpelling[s.String()] = s
		if sep != "" {
			idx.bySpelling[s.Join(sep)] = s
		}
	}
	return idx
}

// Lookup is case insensitive.
func (idx SymbolIndex) Lookup(spelling string) (Symbol, bool) {
	s, ok := idx.bySpelling[strings.ToUpper(spelling)]
	return s, ok
}

// BookKey identifies one order book (and its BBA series) across all exchanges.
type BookKey struct {
	Exchange enum.Exchange
	Symbol   Symbol
}

func (k BookKey) String() string {
	return k.Exchange.String() + ":" + k.Symbol.String()
}
