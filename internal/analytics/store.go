package analytics

import (
	"slices"
	"strings"
	"sync"

	"feedstate/internal/adapter"
)

// SeriesStore owns one Series per tracked book.
type SeriesStore struct {
	capacity int

	mu     sync.RWMutex
	series map[adapter.BookKey]*Series
}

func NewSeriesStore(capacity int) *SeriesStore {
	return &SeriesStore{capacity: capacity, series: make(map[adapter.BookKey]*Series)}
}

// Track returns the series of key, creating it on first call.
func (s *SeriesStore) Track(key adapter.BookKey) *Series {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ser, ok := s.series[key]; ok {
		return ser
	}
	ser := NewSeries(s.capacity)
	s.series[key] = ser
	return ser
}

// Get returns the series of key or nil when it is not tracked.
func (s *SeriesStore) Get(key adapter.BookKey) *Series {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.series[key]
}

func (s *SeriesStore) Keys() []adapter.BookKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]adapter.BookKey, 0, len(s.series))
	for k := range s.series {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b adapter.BookKey) int {
		return strings.Compare(a.String(), b.String())
	})
	return keys
}

// Latest implements PriceSource.
func (s *SeriesStore) Latest(key adapter.BookKey) (Sample, bool) {
	ser := s.Get(key)
	if ser == nil {
		return Sample{}, false
	}
	return ser.Latest()
}
