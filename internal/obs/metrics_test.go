package obs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCountersAreConcurrent(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(CounterDiffApplied)
			}
		}()
	}
	wg.Wait()
	m.Inc(CounterDiffGap)

	snap := m.Snapshot()
	assert.Equal(t, uint64(8000), snap.Counters[CounterDiffApplied])
	assert.Equal(t, uint64(1), snap.Counters[CounterDiffGap])
	_, ok := snap.Counters[CounterMalformed]
	assert.False(t, ok, "zero counters are omitted")
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics
	m.Inc(CounterResync)
	m.ObserveMerge(time.Millisecond)
	assert.Zero(t, m.Count(CounterResync))
	assert.Empty(t, m.Snapshot().Counters)
}

func TestLatencyStats(t *testing.T) {
	m := NewMetrics()
	m.ObserveMerge(2 * time.Millisecond)
	m.ObserveMerge(4 * time.Millisecond)
	m.ObserveMerge(-time.Millisecond)

	base := time.Unix(100, 0)
	m.ObserveEvent(base, base.Add(3*time.Millisecond))
	m.ObserveEvent(time.Time{}, base)

	snap := m.Snapshot()
	require.Equal(t, uint64(2), snap.MergeLatency.Count)
	assert.Equal(t, 2*time.Millisecond, snap.MergeLatency.Min)
	assert.Equal(t, 4*time.Millisecond, snap.MergeLatency.Max)
	assert.Equal(t, 3*time.Millisecond, snap.MergeLatency.Avg)
	assert.Equal(t, uint64(1), snap.EventLatency.Count)
}

func TestSessionIDsIncrease(t *testing.T) {
	g := NewSessionIDs(10)
	assert.Equal(t, uint64(11), g.Next())
	assert.Equal(t, uint64(12), g.Next())
}
