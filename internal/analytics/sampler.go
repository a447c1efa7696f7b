package analytics

import (
	"context"
	"time"

	"feedstate/internal/adapter"
	"feedstate/internal/book"
)

// BookReader gives the sampler the current published book, nil before seeding.
type BookReader interface {
	Get(key adapter.BookKey) *book.OrderBook
}

// Sampler appends the top of one book to its series on a fixed cadence.
type Sampler struct {
	key      adapter.BookKey
	books    BookReader
	series   *Series
	interval time.Duration
	now      func() time.Time
}

func NewSampler(key adapter.BookKey, books BookReader, series *Series, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Sampler{
		key:      key,
		books:    books,
		series:   series,
		interval: interval,
		now:      time.Now,
	}
}

// Sample takes one sample. It returns false and leaves the series untouched when the
// book does not exist yet or either side is empty.
func (s *Sampler) Sample() bool {
	b := s.books.Get(s.key)
	bid, ok := b.BestBid()
	if !ok {
		return false
	}
	ask, ok := b.BestAsk()
	if !ok {
		return false
	}
	s.series.Append(NewSample(s.now(), bid.Price, ask.Price))
	return true
}

// Run samples every interval until ctx is done.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sample()
		}
	}
}
