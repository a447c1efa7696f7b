// Package recorder exports the sampled BBA series to external sinks on a fixed cadence.
package recorder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"feedstate/internal/adapter"
	"feedstate/internal/analytics"
)

const closeTimeout = 5 * time.Second

// Sink persists or publishes exported records.
type Sink interface {
	Name() string
	Write(ctx context.Context, records []Record) error
	Close() error
}

// SeriesSource exposes the tracked series, analytics.SeriesStore satisfies it.
type SeriesSource interface {
	Keys() []adapter.BookKey
	Get(key adapter.BookKey) *analytics.Series
}

// Exporter ships the samples appended since the previous export to every sink.
type Exporter struct {
	cfg    Config
	source SeriesSource
	sinks  []Sink
	newID  func() string

	// newest exported sample time per key, owned by the export loop
	last map[adapter.BookKey]time.Time
}

func NewExporter(cfg Config, source SeriesSource, sinks ...Sink) (*Exporter, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, errors.New("recorder source is nil")
	}
	if len(sinks) == 0 {
		return nil, errors.New("recorder has no sink")
	}
	return &Exporter{
		cfg:    cfg,
		source: source,
		sinks:  sinks,
		newID:  uuid.NewString,
		last:   make(map[adapter.BookKey]time.Time),
	}, nil
}

// Collect gathers the samples newer than the last export under one batch id and
// advances the per key watermark.
func (e *Exporter) Collect() []Record {
	var (
		batchID string
		out     []Record
	)
	for _, key := range e.source.Keys() {
		series := e.source.Get(key)
		if series == nil {
			continue
		}
		samples := series.Since(e.last[key])
		if len(samples) == 0 {
			continue
		}
		if batchID == "" {
			batchID = e.newID()
		}
		for _, s := range samples {
			out = append(out, NewRecord(batchID, key, s))
		}
		e.last[key] = samples[len(samples)-1].Timestamp
	}
	return out
}

// Export collects one batch and writes it to every sink. A failing sink does not stop
// the others, the first error is returned.
func (e *Exporter) Export(ctx context.Context) (int, error) {
	records := e.Collect()
	if len(records) == 0 {
		return 0, nil
	}

	var first error
	for _, sink := range e.sinks {
		if err := e.write(ctx, sink, records); err != nil {
			logs.Errorf("recorder sink %s write %d records failed, err: %+v", sink.Name(), len(records), err)
			if first == nil {
				first = errors.Wrap(err, sink.Name())
			}
		}
	}
	return len(records), first
}

func (e *Exporter) write(ctx context.Context, sink Sink, records []Record) error {
	for start := 0; start < len(records); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(records))
		if err := sink.Write(ctx, records[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// Run exports every interval until ctx is done, then flushes once more and closes the
// sinks. Sink failures are logged and never end the loop.
func (e *Exporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return e.shutdown()
		case <-ticker.C:
			if n, err := e.Export(ctx); err == nil && n > 0 {
				logs.Debugf("recorder exported %d records", n)
			}
		}
	}
}

func (e *Exporter) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	_, _ = e.Export(ctx)

	var first error
	for _, sink := range e.sinks {
		if err := sink.Close(); err != nil {
			logs.Errorf("recorder sink %s close failed, err: %+v", sink.Name(), err)
			if first == nil {
				first = errors.Wrap(err, sink.Name())
			}
		}
	}
	return first
}
