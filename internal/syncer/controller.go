package syncer

import (
	"context"
	"sync"
	"time"

	"feedstate/internal/adapter"
	"feedstate/internal/adapter/enum"
	"feedstate/internal/book"
	"feedstate/internal/obs"
	"feedstate/pkg/backoff"
	"feedstate/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Mode is the synchronization state of one book.
type Mode uint8

const (
	_mode_beg Mode = iota
	// ModeUnseeded means no snapshot has been applied yet.
	ModeUnseeded
	ModeSynced
	// ModeResyncing means a gap was detected and the book waits for a new snapshot.
	ModeResyncing
	_mode_end
)

func (m Mode) IsAvailable() bool {
	return m > _mode_beg && m < _mode_end
}

func (m Mode) String() string {
	switch m {
	case ModeUnseeded:
		return "unseeded"
	case ModeSynced:
		return "synced"
	case ModeResyncing:
		return "resyncing"
	default:
		return "unknown"
	}
}

// SnapshotSource is the part of an exchange adapter the controller depends on.
type SnapshotSource interface {
	Name() enum.Exchange
	SnapshotArrivesInline() bool
	FetchOrderBookSnapshot(ctx context.Context, symbol adapter.Symbol) (adapter.Snapshot, error)
}

type Option struct {
	// ResyncTimeout bounds one snapshot fetch attempt.
	ResyncTimeout time.Duration
	// Backoff spaces failed snapshot fetch attempts.
	Backoff backoff.Backoff
	// Resubscribe asks the feed of an inline venue to reconnect so that a new snapshot
	// is pushed. Nil leaves the book waiting for whatever snapshot comes next.
	Resubscribe func(key adapter.BookKey)
}

func DefaultOption() Option {
	return Option{
		ResyncTimeout: 5 * time.Second,
		Backoff:       backoff.Default(),
	}
}

// Controller keeps the books of one exchange in sequence. It is driven by a single
// consumer loop, so ApplyDiff and ApplySnapshot are never called concurrently for the
// same exchange; Mode may be read from any goroutine.
type Controller struct {
	source  SnapshotSource
	books   *book.Store
	metrics *obs.Metrics
	opt     Option

	mu    sync.RWMutex
	modes map[adapter.Symbol]Mode
}

func NewController(source SnapshotSource, books *book.Store, metrics *obs.Metrics, opt Option) *Controller {
	if opt.ResyncTimeout <= 0 {
		opt.ResyncTimeout = DefaultOption().ResyncTimeout
	}
	return &Controller{
		source:  source,
		books:   books,
		metrics: metrics,
		opt:     opt,
		modes:   make(map[adapter.Symbol]Mode),
	}
}

func (c *Controller) key(symbol adapter.Symbol) adapter.BookKey {
	return adapter.BookKey{Exchange: c.source.Name(), Symbol: symbol}
}

// Mode reports the synchronization state of symbol.
func (c *Controller) Mode(symbol adapter.Symbol) Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, ok := c.modes[symbol]; ok {
		return m
	}
	return ModeUnseeded
}

func (c *Controller) setMode(symbol adapter.Symbol, m Mode) {
	c.mu.Lock()
	c.modes[symbol] = m
	c.mu.Unlock()
}

// ApplySnapshot replaces the book wholesale and marks it synced.
func (c *Controller) ApplySnapshot(snap adapter.Snapshot) *book.OrderBook {
	key := c.key(snap.Symbol)
	b := book.Replace(key, snap)
	c.books.Put(key, b)
	c.metrics.Inc(obs.CounterSnapshotApplied)

	if c.Mode(snap.Symbol) == ModeResyncing {
		logs.Infof("%s re-anchored at %d", key, snap.LastUpdateID)
	}
	c.setMode(snap.Symbol, ModeSynced)
	return b
}

// ApplyDiff classifies d against the current watermark and merges, discards or
// resyncs accordingly. A returned error means the resync could not finish before ctx
// ended; the book keeps its last good state.
func (c *Controller) ApplyDiff(ctx context.Context, d adapter.Diff) (Decision, error) {
	key := c.key(d.Symbol)
	current := c.books.Get(key)

	if current == nil || c.Mode(d.Symbol) != ModeSynced {
		if c.source.SnapshotArrivesInline() {
			c.metrics.Inc(obs.CounterDiffPending)
			logs.Debugf("%s drop diff [%d, %d], book %s", key, d.FirstUpdateID, d.LastUpdateID, c.Mode(d.Symbol))
			return DecisionPending, nil
		}
		c.metrics.Inc(obs.CounterDiffGap)
		logs.Warnf("%s diff [%d, %d] on %s book", key, d.FirstUpdateID, d.LastUpdateID, c.Mode(d.Symbol))
		return DecisionGap, c.awaitSnapshot(ctx, key, d)
	}

	decision := Classify(current.LastUpdateID, d)
	switch decision {
	case DecisionStale:
		c.metrics.Inc(obs.CounterDiffStale)
		logs.Debugf("%s stale at watermark %d: %s", key, current.LastUpdateID, d.Debug())
		return decision, nil
	case DecisionApplicable:
		c.merge(key, current, d)
		return decision, nil
	default:
		c.metrics.Inc(obs.CounterDiffGap)
		logs.Warnf("%s sequence gap: diff [%d, %d] at watermark %d", key, d.FirstUpdateID, d.LastUpdateID, current.LastUpdateID)
		c.setMode(d.Symbol, ModeResyncing)
		return decision, c.awaitSnapshot(ctx, key, d)
	}
}

func (c *Controller) merge(key adapter.BookKey, current *book.OrderBook, d adapter.Diff) {
	start := time.Now()
	next := book.Merge(current, d)
	c.metrics.ObserveMerge(time.Since(start))
	c.metrics.Inc(obs.CounterDiffApplied)
	c.books.Put(key, next)
}

// awaitSnapshot handles a diff that cannot extend the book. Inline venues only push a
// snapshot on subscribe, so the feed is asked to resubscribe and the diff is dropped.
// Otherwise a snapshot is fetched now and the triggering diff is classified once more
// against it.
func (c *Controller) awaitSnapshot(ctx context.Context, key adapter.BookKey, trigger adapter.Diff) error {
	if c.source.SnapshotArrivesInline() {
		c.metrics.Inc(obs.CounterResync)
		logs.Infof("%s resubscribing for inline snapshot", key)
		if c.opt.Resubscribe != nil {
			c.opt.Resubscribe(key)
		}
		return nil
	}

	if err := c.Resync(ctx, key.Symbol); err != nil {
		return err
	}

	current := c.books.Get(key)
	if Classify(current.LastUpdateID, trigger) == DecisionApplicable {
		c.merge(key, current, trigger)
	}
	return nil
}

// Resync fetches a fresh snapshot for symbol, retrying with backoff until one arrives
// or ctx ends. Only the caller's consumer loop is blocked meanwhile.
func (c *Controller) Resync(ctx context.Context, symbol adapter.Symbol) error {
	key := c.key(symbol)
	if c.source.SnapshotArrivesInline() {
		return errors.Wrapf(exception.ErrSnapshotInline, "resync %s", key)
	}

	c.metrics.Inc(obs.CounterResync)
	c.setMode(symbol, ModeResyncing)

	for attempt := 1; ; attempt++ {
		snap, err := c.fetch(ctx, symbol)
		if err == nil {
			snap.Symbol = symbol
			c.ApplySnapshot(snap)
			return nil
		}

		c.metrics.Inc(obs.CounterResyncFailure)
		logs.Errorf("%s snapshot fetch attempt %d, err: %+v", key, attempt, err)
		if !c.opt.Backoff.Sleep(ctx, attempt) {
			return errors.Wrap(exception.ErrResyncAborted, ctx.Err().Error()).With("key", key.String())
		}
	}
}

func (c *Controller) fetch(ctx context.Context, symbol adapter.Symbol) (adapter.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opt.ResyncTimeout)
	defer cancel()
	return c.source.FetchOrderBookSnapshot(ctx, symbol)
}
