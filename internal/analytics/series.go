// Package analytics derives best bid/ask series from the live books and values account
// equity against them.
package analytics

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// Sample is one top of book observation.
type Sample struct {
	Timestamp time.Time       `json:"timestamp"`
	BestBid   decimal.Decimal `json:"bestBid"`
	BestAsk   decimal.Decimal `json:"bestAsk"`
	Midprice  decimal.Decimal `json:"midprice"`
}

func NewSample(ts time.Time, bid, ask decimal.Decimal) Sample {
	return Sample{
		Timestamp: ts,
		BestBid:   bid,
		BestAsk:   ask,
		Midprice:  bid.Add(ask).Div(two),
	}
}

// Series is a fixed capacity FIFO of samples. The sampler appends while valuation
// and export read, so all access goes through the mutex and reads return copies.
type Series struct {
	mu    sync.Mutex
	buf   []Sample
	head  int // index of the oldest sample
	count int
}

func NewSeries(capacity int) *Series {
	if capacity <= 0 {
		capacity = 1
	}
	return &Series{buf: make([]Sample, capacity)}
}

func (s *Series) Capacity() int {
	return len(s.buf)
}

func (s *Series) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Append adds a sample, evicting the oldest once the series is full.
func (s *Series) Append(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count < len(s.buf) {
		s.buf[(s.head+s.count)%len(s.buf)] = sample
		s.count++
		return
	}
	s.buf[s.head] = sample
	s.head = (s.head + 1) % len(s.buf)
}

// Latest returns the newest sample.
func (s *Series) Latest() (Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return Sample{}, false
	}
	return s.buf[(s.head+s.count-1)%len(s.buf)], true
}

// Samples returns the samples oldest first.
func (s *Series) Samples() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Sample, s.count)
	for i := 0; i < s.count; i++ {
		out[i] = s.buf[(s.head+i)%len(s.buf)]
	}
	return out
}

// Since returns the samples newer than t, oldest first.
func (s *Series) Since(t time.Time) []Sample {
	all := s.Samples()
	for i := range all {
		if all[i].Timestamp.After(t) {
			return all[i:]
		}
	}
	return nil
}
