// Package ingest runs the feeds of every registered exchange and keeps the shared
// views (books, series, orders, positions, balances) current.
package ingest

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"feedstate/internal/adapter"
	"feedstate/internal/adapter/enum"
	"feedstate/internal/analytics"
	"feedstate/internal/book"
	"feedstate/internal/bus"
	"feedstate/internal/obs"
	"feedstate/internal/state"
	"feedstate/internal/syncer"
	"feedstate/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMarketQueueSize  = 4096
	DefaultAccountQueueSize = 1024
	DefaultSampleInterval   = time.Second
	DefaultSeriesCapacity   = 3600
	DefaultFeedRestartDelay = 5 * time.Second
)

type Option struct {
	// MarketQueueSize bounds each exchange's order book queue.
	MarketQueueSize int
	// AccountQueueSize bounds the order, balance and trade queues.
	AccountQueueSize int
	SampleInterval   time.Duration
	SeriesCapacity   int
	// MaxPositions caps the position log; zero keeps every position.
	MaxPositions int
	// FeedRestartDelay is the pause before a failed feed is reconnected.
	FeedRestartDelay time.Duration
	Sync             syncer.Option
}

func DefaultOption() Option {
	return Option{
		MarketQueueSize:  DefaultMarketQueueSize,
		AccountQueueSize: DefaultAccountQueueSize,
		SampleInterval:   DefaultSampleInterval,
		SeriesCapacity:   DefaultSeriesCapacity,
		FeedRestartDelay: DefaultFeedRestartDelay,
		Sync:             syncer.DefaultOption(),
	}
}

func (o *Option) applyDefaults() {
	def := DefaultOption()
	if o.MarketQueueSize <= 0 {
		o.MarketQueueSize = def.MarketQueueSize
	}
	if o.AccountQueueSize <= 0 {
		o.AccountQueueSize = def.AccountQueueSize
	}
	if o.SampleInterval <= 0 {
		o.SampleInterval = def.SampleInterval
	}
	if o.SeriesCapacity <= 0 {
		o.SeriesCapacity = def.SeriesCapacity
	}
	if o.FeedRestartDelay <= 0 {
		o.FeedRestartDelay = def.FeedRestartDelay
	}
	if o.Sync.ResyncTimeout <= 0 {
		o.Sync.ResyncTimeout = def.Sync.ResyncTimeout
	}
}

// Task is an extra long running loop started and stopped with the feeds, e.g. an
// exporter.
type Task func(ctx context.Context) error

// Usecase owns every shared view. Feed tasks only decode and enqueue; each view has
// exactly one writing consumer loop.
type Usecase struct {
	opt      Option
	metrics  *obs.Metrics
	sessions *obs.SessionIDs

	books    *book.Store
	series   *analytics.SeriesStore
	orders   *state.OrderTracker
	balances *state.BalanceBook
	trades   *tradeBook

	orderQueue   *bus.Queue[adapter.ExecutionReport]
	balanceQueue *bus.Queue[balanceUpdate]
	tradeQueue   *bus.Queue[tradeUpdate]

	mu      sync.RWMutex
	venues  map[enum.Exchange]*venue
	order   []enum.Exchange
	tasks   map[string]Task
	running atomic.Bool
}

// venue is one registered exchange with its controller and order book queue.
type venue struct {
	exchange   adapter.Exchange
	controller *syncer.Controller
	market     *bus.Queue[adapter.Envelope]

	mu      sync.Mutex
	session context.CancelCauseFunc
}

// setSession records the cancel func of the running market session, nil when none.
func (v *venue) setSession(cancel context.CancelCauseFunc) {
	v.mu.Lock()
	v.session = cancel
	v.mu.Unlock()
}

// resubscribe ends the running market session so that the feed reconnects and the
// venue pushes fresh snapshots.
func (v *venue) resubscribe(key adapter.BookKey) {
	v.mu.Lock()
	cancel := v.session
	v.mu.Unlock()
	if cancel != nil {
		cancel(errors.Wrapf(exception.ErrResyncRequired, "%s sequence gap", key))
	}
}

// balanceUpdate carries either a balance event or, when Account is set, a full
// account snapshot.
type balanceUpdate struct {
	Exchange enum.Exchange
	Event    adapter.BalanceEvent
	Account  *adapter.AccountSnapshot
}

type tradeUpdate struct {
	Exchange enum.Exchange
	Trade    adapter.Trade
}

func NewUsecase(opt Option, metrics *obs.Metrics) *Usecase {
	opt.applyDefaults()
	if metrics == nil {
		metrics = obs.NewMetrics()
	}
	return &Usecase{
		opt:          opt,
		metrics:      metrics,
		sessions:     obs.NewSessionIDs(0),
		books:        book.NewStore(),
		series:       analytics.NewSeriesStore(opt.SeriesCapacity),
		orders:       state.NewOrderTracker(opt.MaxPositions),
		balances:     state.NewBalanceBook(),
		trades:       newTradeBook(),
		orderQueue:   bus.NewQueue[adapter.ExecutionReport]("order", opt.AccountQueueSize),
		balanceQueue: bus.NewQueue[balanceUpdate]("balance", opt.AccountQueueSize),
		tradeQueue:   bus.NewQueue[tradeUpdate]("trade", opt.AccountQueueSize),
		venues:       make(map[enum.Exchange]*venue),
		tasks:        make(map[string]Task),
	}
}

// Register adds an exchange. It must be called before Run; each exchange can be
// registered once.
func (use *Usecase) Register(ex adapter.Exchange) error {
	if use == nil || ex == nil {
		return exception.ErrNilInstance
	}
	if use.running.Load() {
		return errors.Wrap(exception.ErrInvalidArgument, "register after run")
	}
	name := ex.Name()
	if !name.IsAvailable() {
		return errors.Wrap(exception.ErrUnsupportedExchange, name.String())
	}

	use.mu.Lock()
	defer use.mu.Unlock()
	if _, ok := use.venues[name]; ok {
		return errors.Wrapf(exception.ErrInvalidArgument, "exchange %s already registered", name)
	}
	v := &venue{
		exchange: ex,
		market:   bus.NewQueue[adapter.Envelope]("market:"+name.String(), use.opt.MarketQueueSize),
	}
	syncOpt := use.opt.Sync
	syncOpt.Resubscribe = v.resubscribe
	v.controller = syncer.NewController(ex, use.books, use.metrics, syncOpt)
	use.venues[name] = v
	use.order = append(use.order, name)
	for _, s := range ex.Symbols() {
		use.series.Track(adapter.BookKey{Exchange: name, Symbol: s})
	}
	return nil
}

// AddTask registers a loop that runs alongside the feeds. It must be called before Run.
func (use *Usecase) AddTask(name string, task Task) error {
	if use.running.Load() {
		return errors.Wrap(exception.ErrInvalidArgument, "add task after run")
	}
	use.mu.Lock()
	defer use.mu.Unlock()
	if _, ok := use.tasks[name]; ok {
		return errors.Wrapf(exception.ErrInvalidArgument, "task %s already added", name)
	}
	use.tasks[name] = task
	return nil
}

func (use *Usecase) venueList() []*venue {
	use.mu.RLock()
	defer use.mu.RUnlock()
	list := make([]*venue, 0, len(use.order))
	for _, name := range use.order {
		list = append(list, use.venues[name])
	}
	return list
}

func (use *Usecase) venue(name enum.Exchange) (*venue, bool) {
	use.mu.RLock()
	defer use.mu.RUnlock()
	v, ok := use.venues[name]
	return v, ok
}

// Run starts every feed, consumer, sampler and task, and blocks until ctx ends. A
// failing feed is restarted without touching other exchanges; accumulated state is
// kept across restarts.
func (use *Usecase) Run(ctx context.Context) error {
	venues := use.venueList()
	if len(venues) == 0 {
		return errors.Wrap(exception.ErrInvalidArgument, "no exchange registered")
	}
	if !use.running.CompareAndSwap(false, true) {
		return errors.Wrap(exception.ErrInvalidArgument, "usecase already running")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		use.orderQueue.Run(gctx, use.handleOrder)
		return nil
	})
	g.Go(func() error {
		use.balanceQueue.Run(gctx, use.handleBalance)
		return nil
	})
	g.Go(func() error {
		use.tradeQueue.Run(gctx, use.handleTrade)
		return nil
	})

	for _, v := range venues {
		g.Go(func() error {
			use.seedBooks(gctx, v)
			v.market.Run(gctx, use.marketHandler(v))
			return nil
		})
		g.Go(func() error {
			return use.supervise(gctx, v, feedMarket, v.exchange.ConnectMarketData)
		})
		g.Go(func() error {
			return use.supervise(gctx, v, feedAccount, use.connectAccount(v))
		})
	}

	for _, key := range use.series.Keys() {
		sampler := analytics.NewSampler(key, use.books, use.series.Get(key), use.opt.SampleInterval)
		g.Go(func() error {
			return sampler.Run(gctx)
		})
	}

	use.mu.RLock()
	for name, task := range use.tasks {
		g.Go(func() error {
			if err := task(gctx); err != nil && gctx.Err() == nil {
				return errors.Wrapf(err, "task %s", name)
			}
			return nil
		})
	}
	use.mu.RUnlock()

	logs.Infof("ingest running, exchanges: %d, books: %d", len(venues), len(use.series.Keys()))
	err := g.Wait()
	use.closeQueues(venues)
	if err != nil {
		return err
	}
	logs.Info("ingest stopped")
	return nil
}

func (use *Usecase) closeQueues(venues []*venue) {
	for _, v := range venues {
		v.market.Close()
	}
	use.orderQueue.Close()
	use.balanceQueue.Close()
	use.tradeQueue.Close()
}

// seedBooks anchors every book of a REST snapshot venue before its queue is consumed.
// Inline venues are seeded by their first pushed snapshot.
func (use *Usecase) seedBooks(ctx context.Context, v *venue) {
	if v.exchange.SnapshotArrivesInline() {
		return
	}
	for _, s := range v.exchange.Symbols() {
		if err := v.controller.Resync(ctx, s); err != nil {
			if ctx.Err() == nil {
				logs.Errorf("seed %s %s, err: %+v", v.exchange.Name(), s, err)
			}
			return
		}
	}
}

// connectAccount subscribes the account feed and then loads the account snapshot, so
// every session is re-seeded and events buffered meanwhile land after the snapshot.
func (use *Usecase) connectAccount(v *venue) connectFunc {
	return func(ctx context.Context) (adapter.Stream, error) {
		stream, err := v.exchange.ConnectAccount(ctx)
		if err != nil {
			return nil, err
		}
		if err := use.seedAccount(ctx, v); err != nil {
			_ = stream.Close()
			return nil, err
		}
		return stream, nil
	}
}

// seedAccount fetches balances and fees, retrying with backoff, and hands them to the
// balance consumer.
func (use *Usecase) seedAccount(ctx context.Context, v *venue) error {
	name := v.exchange.Name()
	for attempt := 1; ; attempt++ {
		snap, err := use.fetchAccount(ctx, v)
		if err == nil {
			return use.balanceQueue.Publish(ctx, balanceUpdate{Exchange: name, Account: &snap})
		}
		if errors.Is(err, exception.ErrAccountNotConfigured) {
			return err
		}

		use.metrics.Inc(obs.CounterAccountSeedFailure)
		logs.Errorf("%s account snapshot attempt %d, err: %+v", name, attempt, err)
		if !use.opt.Sync.Backoff.Sleep(ctx, attempt) {
			return errors.Wrapf(ctx.Err(), "%s account snapshot", name)
		}
	}
}

func (use *Usecase) fetchAccount(ctx context.Context, v *venue) (adapter.AccountSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, use.opt.Sync.ResyncTimeout)
	defer cancel()
	return v.exchange.FetchAccountSnapshot(ctx)
}

// Book returns the published book of key, nil before it is seeded.
func (use *Usecase) Book(key adapter.BookKey) *book.OrderBook {
	return use.books.Get(key)
}

// Books lists the keys of every seeded book.
func (use *Usecase) Books() []adapter.BookKey {
	return use.books.Keys()
}

// SyncMode reports the synchronization state of key.
func (use *Usecase) SyncMode(key adapter.BookKey) syncer.Mode {
	v, ok := use.venue(key.Exchange)
	if !ok {
		return syncer.ModeUnseeded
	}
	return v.controller.Mode(key.Symbol)
}

// Series returns a copy of the BBA samples of key, oldest first.
func (use *Usecase) Series(key adapter.BookKey) []analytics.Sample {
	s := use.series.Get(key)
	if s == nil {
		return nil
	}
	return s.Samples()
}

// SeriesStore exposes the series for exporters.
func (use *Usecase) SeriesStore() *analytics.SeriesStore {
	return use.series
}

func (use *Usecase) OpenOrders() []adapter.OpenOrder {
	return use.orders.OpenOrders()
}

func (use *Usecase) Positions() []adapter.Position {
	return use.orders.Positions()
}

// Balances returns the balance table of one exchange sorted by asset.
func (use *Usecase) Balances(exchange enum.Exchange) []adapter.Balance {
	return use.balances.Table(exchange).Balances()
}

// BalancesUpdatedAt returns the event time of the newest balance change of exchange.
func (use *Usecase) BalancesUpdatedAt(exchange enum.Exchange) time.Time {
	return use.balances.Table(exchange).UpdatedAt()
}

// Fees returns the maker and taker rates loaded with the account snapshot.
func (use *Usecase) Fees(exchange enum.Exchange) (maker, taker decimal.Decimal) {
	return use.balances.Table(exchange).Fees()
}

// LastTrade returns the most recent public trade of key.
func (use *Usecase) LastTrade(key adapter.BookKey) (adapter.Trade, bool) {
	return use.trades.Get(key)
}

// Equity values one exchange's balances in its quote asset.
func (use *Usecase) Equity(exchange enum.Exchange) (analytics.Equity, error) {
	v, ok := use.venue(exchange)
	if !ok {
		return analytics.Equity{}, errors.Wrap(exception.ErrUnsupportedExchange, exchange.String())
	}
	eq := analytics.Value(exchange, v.exchange.QuoteAsset(), use.Balances(exchange), use.series)
	if !eq.Complete() {
		use.metrics.Inc(obs.CounterValuationDeferred)
	}
	return eq, nil
}

func (use *Usecase) Metrics() obs.Snapshot {
	return use.metrics.Snapshot()
}

// Dump captures the account registries.
func (use *Usecase) Dump() state.Dump {
	return state.Capture(use.orders, use.balances)
}

// Restore loads a dump into the account registries. It must be called before Run.
func (use *Usecase) Restore(d state.Dump) error {
	if use.running.Load() {
		return errors.Wrap(exception.ErrInvalidArgument, "restore after run")
	}
	d.Restore(use.orders, use.balances)
	return nil
}

// Exchanges lists the registered exchanges in registration order.
func (use *Usecase) Exchanges() []enum.Exchange {
	use.mu.RLock()
	defer use.mu.RUnlock()
	return slices.Clone(use.order)
}
