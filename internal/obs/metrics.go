package obs

import (
	"sync/atomic"
	"time"
)

// Counter names one pipeline outcome.
type Counter uint8

const (
	CounterDiffApplied Counter = iota
	CounterDiffStale
	CounterDiffGap
	CounterSnapshotApplied
	CounterResync
	CounterResyncFailure
	CounterMalformed
	CounterTrade
	CounterOrderEvent
	CounterOrderUnmatched
	CounterOrderRejected
	CounterBalanceEvent
	CounterFeedRestart
	CounterValuationDeferred
	CounterQueueClosed
	// CounterDiffPending counts diffs dropped while an inline book waits for its snapshot.
	CounterDiffPending
	CounterAccountSeedFailure
	_counter_end
)

func (c Counter) String() string {
	switch c {
	case CounterDiffApplied:
		return "diff_applied"
	case CounterDiffStale:
		return "diff_stale"
	case CounterDiffGap:
		return "diff_gap"
	case CounterSnapshotApplied:
		return "snapshot_applied"
	case CounterResync:
		return "resync"
	case CounterResyncFailure:
		return "resync_failure"
	case CounterMalformed:
		return "malformed"
	case CounterTrade:
		return "trade"
	case CounterOrderEvent:
		return "order_event"
	case CounterOrderUnmatched:
		return "order_unmatched"
	case CounterOrderRejected:
		return "order_rejected"
	case CounterBalanceEvent:
		return "balance_event"
	case CounterFeedRestart:
		return "feed_restart"
	case CounterValuationDeferred:
		return "valuation_deferred"
	case CounterQueueClosed:
		return "queue_closed"
	case CounterDiffPending:
		return "diff_pending"
	case CounterAccountSeedFailure:
		return "account_seed_failure"
	default:
		return "unknown"
	}
}

// Metrics collects lightweight counters and latency stats.
type Metrics struct {
	counters [_counter_end]uint64

	eventLatency LatencyStats
	mergeLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Counters     map[Counter]uint64
	EventLatency LatencySnapshot
	MergeLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc increments a counter. A nil receiver is a no-op so components can run without
// metrics in tests.
func (m *Metrics) Inc(c Counter) {
	if m == nil || c >= _counter_end {
		return
	}
	atomic.AddUint64(&m.counters[c], 1)
}

// Count returns the current value of a counter.
func (m *Metrics) Count(c Counter) uint64 {
	if m == nil || c >= _counter_end {
		return 0
	}
	return atomic.LoadUint64(&m.counters[c])
}

// ObserveEvent tracks the delay between the venue event time and local receipt.
func (m *Metrics) ObserveEvent(eventTime, recvTime time.Time) {
	if m == nil || eventTime.IsZero() || recvTime.IsZero() {
		return
	}
	m.eventLatency.Observe(recvTime.Sub(eventTime))
}

// ObserveMerge measures the time spent merging one diff.
func (m *Metrics) ObserveMerge(d time.Duration) {
	if m == nil {
		return
	}
	m.mergeLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	counters := make(map[Counter]uint64)
	for i := range m.counters {
		if v := atomic.LoadUint64(&m.counters[i]); v > 0 {
			counters[Counter(i)] = v
		}
	}
	return Snapshot{
		Counters:     counters,
		EventLatency: m.eventLatency.Snapshot(),
		MergeLatency: m.mergeLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
