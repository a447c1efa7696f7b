package recorder

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"feedstate/internal/adapter"
	"feedstate/internal/adapter/enum"
	"feedstate/internal/analytics"
)

var (
	btc = adapter.BookKey{Exchange: enum.ExchangeBinance, Symbol: adapter.NewSymbol("BTC", "USDT")}
	eth = adapter.BookKey{Exchange: enum.ExchangeOKX, Symbol: adapter.NewSymbol("ETH", "USDT")}
	t0  = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
)

func sample(sec int, bid, ask string) analytics.Sample {
	return analytics.NewSample(t0.Add(time.Duration(sec)*time.Second), decimal.RequireFromString(bid), decimal.RequireFromString(ask))
}

type memSink struct {
	mu      sync.Mutex
	name    string
	fail    error
	batches [][]Record
	closed  bool
}

func (m *memSink) Name() string { return m.name }

func (m *memSink) Write(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.batches = append(m.batches, append([]Record(nil), records...))
	return nil
}

func (m *memSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memSink) records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

func newStore() *analytics.SeriesStore {
	store := analytics.NewSeriesStore(16)
	store.Track(btc).Append(sample(1, "100", "102"))
	store.Track(btc).Append(sample(2, "101", "103"))
	store.Track(eth).Append(sample(1, "10", "11"))
	return store
}

func TestCollectOnlyNewSamples(t *testing.T) {
	store := newStore()
	exp, err := NewExporter(DefaultConfig(), store, &memSink{name: "mem"})
	require.NoError(t, err)
	ids := 0
	exp.newID = func() string { ids++; return "batch-" + string(rune('0'+ids)) }

	first := exp.Collect()
	require.Len(t, first, 3)
	for _, r := range first {
		assert.Equal(t, "batch-1", r.BatchID)
	}
	assert.Empty(t, exp.Collect())

	store.Get(btc).Append(sample(3, "102", "104"))
	second := exp.Collect()
	require.Len(t, second, 1)
	assert.Equal(t, "batch-2", second[0].BatchID)
	assert.Equal(t, "binance", second[0].Exchange)
	assert.Equal(t, "BTCUSDT", second[0].Symbol)
	assert.True(t, decimal.RequireFromString("103").Equal(second[0].Midprice))
}

func TestExportKeepsGoingOnSinkFailure(t *testing.T) {
	broken := &memSink{name: "broken", fail: errors.New("down")}
	healthy := &memSink{name: "healthy"}
	exp, err := NewExporter(Config{Interval: time.Second, BatchSize: 2}, newStore(), broken, healthy)
	require.NoError(t, err)

	n, err := exp.Export(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, healthy.batches, 2, "split by batch size")
	assert.Len(t, healthy.records(), 3)
}

func TestRunFlushesAndClosesOnCancel(t *testing.T) {
	sink := &memSink{name: "mem"}
	exp, err := NewExporter(Config{Interval: time.Hour}, newStore(), sink)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- exp.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("exporter did not stop")
	}
	assert.Len(t, sink.records(), 3)
	assert.True(t, sink.closed)
}

func TestNewExporterValidation(t *testing.T) {
	_, err := NewExporter(DefaultConfig(), nil, &memSink{})
	assert.Error(t, err)
	_, err = NewExporter(DefaultConfig(), newStore())
	assert.Error(t, err)
	_, err = NewExporter(Config{Interval: -time.Second}, newStore(), &memSink{})
	assert.Error(t, err)
}

func TestFileSinkReplay(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultFileConfig(dir)
	cfg.SegmentMaxBytes = 1
	sink, err := NewFileSink(cfg)
	require.NoError(t, err)

	exp, err := NewExporter(DefaultConfig(), newStore(), sink)
	require.NoError(t, err)
	records := exp.Collect()
	require.NoError(t, sink.Write(context.Background(), records))
	require.NoError(t, sink.Close())
	assert.True(t, errors.Is(sink.Write(context.Background(), records), ErrClosed))

	files, err := filepath.Glob(filepath.Join(dir, "bba-*.bba"))
	require.NoError(t, err)
	assert.Len(t, files, 3, "one record per segment")

	var replayed []Record
	require.NoError(t, Replay(context.Background(), PlaybackConfig{Dir: dir}, func(r Record) error {
		replayed = append(replayed, r)
		return nil
	}))
	require.Len(t, replayed, len(records))
	for i := range records {
		assert.Equal(t, records[i].Key(), replayed[i].Key())
		assert.True(t, records[i].Timestamp.Equal(replayed[i].Timestamp))
		assert.True(t, records[i].BestBid.Equal(replayed[i].BestBid))
	}
}

func TestReplayDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(DefaultFileConfig(dir))
	require.NoError(t, err)
	require.NoError(t, sink.Write(context.Background(), []Record{NewRecord("b", btc, sample(1, "1", "2"))}))
	require.NoError(t, sink.Close())

	files, err := filepath.Glob(filepath.Join(dir, "*.bba"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)
	raw[recordHeaderSize+2] ^= 0xff
	require.NoError(t, os.WriteFile(files[0], raw, 0o644))

	err = Replay(context.Background(), PlaybackConfig{Dir: dir}, func(Record) error { return nil })
	assert.True(t, errors.Is(err, ErrChecksumMismatch))

	raw[0] = 'X'
	require.NoError(t, os.WriteFile(files[0], raw, 0o644))
	err = Replay(context.Background(), PlaybackConfig{Dir: dir}, func(Record) error { return nil })
	assert.True(t, errors.Is(err, ErrInvalidMagic))
}

func TestFileConfigValidate(t *testing.T) {
	assert.Error(t, FileConfig{}.withDefaults().Validate())
	assert.NoError(t, DefaultFileConfig("x").Validate())
	cfg := DefaultFileConfig("x")
	cfg.SegmentMaxDuration = -time.Second
	assert.Error(t, cfg.Validate())
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSink(t *testing.T) {
	_, err := NewKafkaSink(KafkaConfig{Topic: "bba"})
	assert.Error(t, err)

	w := &fakeWriter{}
	sink := &KafkaSink{writer: w}
	rec := NewRecord("batch", btc, sample(1, "100", "102"))
	require.NoError(t, sink.Write(context.Background(), []Record{rec}))
	require.NoError(t, sink.Close())

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "binance:BTCUSDT", string(w.msgs[0].Key))
	assert.Equal(t, "batch", string(w.msgs[0].Headers[0].Value))
	var decoded Record
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.True(t, decimal.RequireFromString("101").Equal(decoded.Midprice))
	assert.True(t, w.closed)
}

type fakeStore struct {
	values map[string]string
	ttl    time.Duration
}

func (f *fakeStore) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.values[key] = string(value.([]byte))
	f.ttl = expiration
	return redis.NewStatusCmd(ctx)
}

func (f *fakeStore) Close() error { return nil }

func TestRedisSinkKeepsLatest(t *testing.T) {
	_, err := NewRedisSink(RedisConfig{})
	assert.Error(t, err)

	store := &fakeStore{values: map[string]string{}}
	sink := newRedisSink(store, "", time.Minute)
	require.NoError(t, sink.Write(context.Background(), []Record{
		NewRecord("b", btc, sample(2, "101", "103")),
		NewRecord("b", btc, sample(1, "100", "102")),
		NewRecord("b", eth, sample(1, "10", "11")),
	}))

	require.Len(t, store.values, 2)
	assert.Equal(t, time.Minute, store.ttl)
	var latest Record
	require.NoError(t, json.Unmarshal([]byte(store.values["feedstate:bba:binance:BTCUSDT"]), &latest))
	assert.True(t, decimal.RequireFromString("101").Equal(latest.BestBid))
}

func TestToRows(t *testing.T) {
	local := time.FixedZone("x", 3600)
	rec := NewRecord("b", eth, analytics.NewSample(t0.In(local), decimal.NewFromInt(10), decimal.NewFromInt(12)))
	rows := toRows([]Record{rec})
	require.Len(t, rows, 1)
	assert.Equal(t, "okx", rows[0].Exchange)
	assert.Equal(t, "ETHUSDT", rows[0].Symbol)
	assert.Equal(t, time.UTC, rows[0].Timestamp.Location())
	assert.True(t, decimal.NewFromInt(11).Equal(rows[0].Midprice))
	assert.Equal(t, "bba_samples", bbaRow{}.TableName())
}
