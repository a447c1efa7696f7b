package state

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"feedstate/internal/adapter"
	"feedstate/internal/adapter/enum"

	"github.com/shopspring/decimal"
)

// ApplyBalance returns the table after event. A snapshot replaces the table; a delta
// replaces or inserts the named assets and leaves the rest untouched. The input map
// is not modified.
func ApplyBalance(table map[string]adapter.Balance, event adapter.BalanceEvent) map[string]adapter.Balance {
	var next map[string]adapter.Balance
	if event.IsSnapshot {
		next = make(map[string]adapter.Balance, len(event.Balances))
	} else {
		next = maps.Clone(table)
		if next == nil {
			next = make(map[string]adapter.Balance, len(event.Balances))
		}
	}
	for _, b := range event.Balances {
		asset := strings.ToUpper(b.Asset)
		if asset == "" {
			continue
		}
		b.Asset = asset
		next[asset] = b
	}
	return next
}

// BalanceTable is the balance table of one exchange plus the account fee rates.
type BalanceTable struct {
	mu        sync.RWMutex
	entries   map[string]adapter.Balance
	makerFee  decimal.Decimal
	takerFee  decimal.Decimal
	updatedAt time.Time
}

func NewBalanceTable() *BalanceTable {
	return &BalanceTable{entries: make(map[string]adapter.Balance)}
}

func (t *BalanceTable) Apply(event adapter.BalanceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = ApplyBalance(t.entries, event)
	if event.EventTime.After(t.updatedAt) {
		t.updatedAt = event.EventTime
	}
}

// ApplyAccount installs an account snapshot: balances and fee rates.
func (t *BalanceTable) ApplyAccount(snap adapter.AccountSnapshot) {
	t.Apply(snap.BalanceEvent())
	t.mu.Lock()
	t.makerFee, t.takerFee = snap.MakerFee, snap.TakerFee
	t.mu.Unlock()
}

// Balance returns one asset entry.
func (t *BalanceTable) Balance(asset string) (adapter.Balance, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.entries[strings.ToUpper(asset)]
	return b, ok
}

// Balances returns every entry sorted by asset.
func (t *BalanceTable) Balances() []adapter.Balance {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]adapter.Balance, 0, len(t.entries))
	for _, asset := range slices.Sorted(maps.Keys(t.entries)) {
		out = append(out, t.entries[asset])
	}
	return out
}

func (t *BalanceTable) Fees() (maker, taker decimal.Decimal) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.makerFee, t.takerFee
}

func (t *BalanceTable) UpdatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updatedAt
}

// BalanceBook keeps one BalanceTable per exchange. Tables are never merged.
type BalanceBook struct {
	mu     sync.RWMutex
	tables map[enum.Exchange]*BalanceTable
}

func NewBalanceBook() *BalanceBook {
	return &BalanceBook{tables: make(map[enum.Exchange]*BalanceTable)}
}

// Table returns the exchange's table, creating an empty one on first use.
func (b *BalanceBook) Table(exchange enum.Exchange) *BalanceTable {
	b.mu.RLock()
	t, ok := b.tables[exchange]
	b.mu.RUnlock()
	if ok {
		return t
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.tables[exchange]; ok {
		return t
	}
	t = NewBalanceTable()
	b.tables[exchange] = t
	return t
}

// Exchanges lists exchanges that have a table.
func (b *BalanceBook) Exchanges() []enum.Exchange {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Sorted(maps.Keys(b.tables))
}
