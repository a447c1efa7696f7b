package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"feedstate/internal/adapter"
	"feedstate/internal/adapter/enum"

	"github.com/yanun0323/errors"
)

// Dump captures the account registries at a point in time.
type Dump struct {
	Timestamp  int64                        `json:"timestamp"`
	OpenOrders []adapter.OpenOrder          `json:"openOrders"`
	Positions  []adapter.Position           `json:"positions"`
	Balances   map[string][]adapter.Balance `json:"balances"`
}

// Capture builds a dump from the live registries.
func Capture(orders *OrderTracker, balances *BalanceBook) Dump {
	d := Dump{
		Timestamp:  time.Now().UTC().UnixNano(),
		OpenOrders: orders.OpenOrders(),
		Positions:  orders.Positions(),
		Balances:   make(map[string][]adapter.Balance),
	}
	for _, ex := range balances.Exchanges() {
		d.Balances[ex.String()] = balances.Table(ex).Balances()
	}
	return d
}

// Restore loads a dump into the registries. Balance tables of unknown exchanges are
// skipped.
func (d Dump) Restore(orders *OrderTracker, balances *BalanceBook) {
	orders.Restore(d.OpenOrders, d.Positions)
	for name, entries := range d.Balances {
		ex, ok := enum.ParseExchange(name)
		if !ok {
			continue
		}
		balances.Table(ex).Apply(adapter.BalanceEvent{IsSnapshot: true, Balances: entries})
	}
}

// WriteDump writes a dump to disk as JSON.
func WriteDump(path string, d Dump) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal state dump")
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create state dump dir")
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadDump loads a dump from disk.
func ReadDump(path string) (Dump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dump{}, err
	}
	var d Dump
	if err := json.Unmarshal(data, &d); err != nil {
		return Dump{}, errors.Wrap(err, "unmarshal state dump").With("path", path)
	}
	return d, nil
}
