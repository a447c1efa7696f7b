// Package ops loads the process configuration: a JSON file for topology and tuning,
// environment variables (optionally from .env) for secrets and overrides.
package ops

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/yanun0323/errors"

	"feedstate/internal/adapter"
	"feedstate/internal/adapter/enum"
)

const EnvPrefix = "FEEDSTATE_"

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Exchanges []ExchangeConfig `json:"exchanges"`
	Pipeline  PipelineConfig   `json:"pipeline"`
	Socket    SocketConfig     `json:"socket"`
	Recorder  RecorderConfig   `json:"recorder"`
	StateDump string           `json:"stateDump"`
	Profiling ProfilingConfig  `json:"profiling"`
}

// ExchangeConfig describes one venue and the books tracked on it.
type ExchangeConfig struct {
	Name         string   `json:"name"`
	Symbols      []string `json:"symbols"`
	QuoteAsset   string   `json:"quoteAsset"`
	RestURL      string   `json:"restUrl"`
	WsURL        string   `json:"wsUrl"`
	PrivateWsURL string   `json:"privateWsUrl"`
	DepthLimit   int      `json:"depthLimit"`
}

// PipelineConfig tunes queues, sampling and resync.
type PipelineConfig struct {
	MarketQueueSize  int      `json:"marketQueueSize"`
	AccountQueueSize int      `json:"accountQueueSize"`
	SampleInterval   Duration `json:"sampleInterval"`
	SeriesCapacity   int      `json:"seriesCapacity"`
	MaxPositions     int      `json:"maxPositions"`
	FeedRestartDelay Duration `json:"feedRestartDelay"`
	ResyncTimeout    Duration `json:"resyncTimeout"`
}

// SocketConfig tunes every websocket session.
type SocketConfig struct {
	PingInterval    Duration `json:"pingInterval"`
	ReadTimeout     Duration `json:"readTimeout"`
	MaxDialAttempts int      `json:"maxDialAttempts"`
}

// RecorderConfig selects the export sinks. The recorder is off without any sink.
type RecorderConfig struct {
	Interval  Duration        `json:"interval"`
	BatchSize int             `json:"batchSize"`
	File      *FileSinkConfig `json:"file"`
	Postgres  *PostgresConfig `json:"postgres"`
	Kafka     *KafkaConfig    `json:"kafka"`
	Redis     *RedisConfig    `json:"redis"`
}

type FileSinkConfig struct {
	Dir             string   `json:"dir"`
	SegmentMaxBytes int64    `json:"segmentMaxBytes"`
	SegmentDuration Duration `json:"segmentDuration"`
	Sync            bool     `json:"sync"`
}

type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

type RedisConfig struct {
	Addr      string   `json:"addr"`
	DB        int      `json:"db"`
	KeyPrefix string   `json:"keyPrefix"`
	TTL       Duration `json:"ttl"`
}

type ProfilingConfig struct {
	ServerAddress string `json:"serverAddress"`
	Application   string `json:"application"`
}

// Secrets are read from the environment only, all prefixed with EnvPrefix.
type Secrets struct {
	BinanceAPIKey    string   `env:"BINANCE_API_KEY"`
	BinanceAPISecret string   `env:"BINANCE_API_SECRET"`
	OKXAPIKey        string   `env:"OKX_API_KEY"`
	OKXAPISecret     string   `env:"OKX_API_SECRET"`
	OKXPassphrase    string   `env:"OKX_PASSPHRASE"`
	PostgresPassword string   `env:"POSTGRES_PASSWORD"`
	PostgresDSN      string   `env:"POSTGRES_DSN"`
	RedisPassword    string   `env:"REDIS_PASSWORD"`
	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:","`
	StateDump        string   `env:"STATE_DUMP"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	File    FileConfig
	Secrets Secrets
	Books   map[enum.Exchange][]adapter.Symbol
}

// Load reads .env when present, the JSON file at path and the environment, then
// validates the result.
func Load(path string) (Loaded, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Loaded{}, errors.Wrap(err, "load .env")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config").With("path", path)
	}
	return Parse(data)
}

// Parse decodes a JSON config and overlays the environment.
func Parse(data []byte) (Loaded, error) {
	var cfg FileConfig
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "decode config")
	}

	var secrets Secrets
	if err := env.ParseWithOptions(&secrets, env.Options{Prefix: EnvPrefix}); err != nil {
		return Loaded{}, errors.Wrap(err, "parse env")
	}
	if secrets.StateDump != "" {
		cfg.StateDump = secrets.StateDump
	}
	if len(secrets.KafkaBrokers) != 0 && cfg.Recorder.Kafka != nil {
		cfg.Recorder.Kafka.Brokers = secrets.KafkaBrokers
	}

	books, err := resolveBooks(cfg.Exchanges)
	if err != nil {
		return Loaded{}, err
	}
	if err := cfg.validate(); err != nil {
		return Loaded{}, err
	}
	return Loaded{File: cfg, Secrets: secrets, Books: books}, nil
}

func resolveBooks(exchanges []ExchangeConfig) (map[enum.Exchange][]adapter.Symbol, error) {
	if len(exchanges) == 0 {
		return nil, errors.New("config has no exchange")
	}
	books := make(map[enum.Exchange][]adapter.Symbol, len(exchanges))
	for _, ex := range exchanges {
		name, ok := enum.ParseExchange(ex.Name)
		if !ok {
			return nil, errors.Errorf("unsupported exchange: %s", ex.Name)
		}
		if _, dup := books[name]; dup {
			return nil, errors.Errorf("exchange %s configured twice", ex.Name)
		}
		if len(ex.Symbols) == 0 {
			return nil, errors.Errorf("exchange %s has no symbol", ex.Name)
		}
		seen := make(map[adapter.Symbol]struct{}, len(ex.Symbols))
		symbols := make([]adapter.Symbol, 0, len(ex.Symbols))
		for _, raw := range ex.Symbols {
			sym, err := ParseSymbol(raw)
			if err != nil {
				return nil, errors.Wrap(err, ex.Name)
			}
			if _, dup := seen[sym]; dup {
				return nil, errors.Errorf("exchange %s symbol %s configured twice", ex.Name, raw)
			}
			seen[sym] = struct{}{}
			symbols = append(symbols, sym)
		}
		books[name] = symbols
	}
	return books, nil
}

// ParseSymbol reads BASE/QUOTE, BASE-QUOTE or BASE_QUOTE.
func ParseSymbol(raw string) (adapter.Symbol, error) {
	sep := strings.IndexAny(raw, "/-_")
	if sep <= 0 || sep == len(raw)-1 {
		return adapter.Symbol{}, errors.Errorf("invalid symbol %q, want BASE/QUOTE", raw)
	}
	sym := adapter.NewSymbol(raw[:sep], raw[sep+1:])
	if sym.Base == "" || sym.Quote == "" || strings.ContainsAny(sym.Quote, "/-_") {
		return adapter.Symbol{}, errors.Errorf("invalid symbol %q, want BASE/QUOTE", raw)
	}
	return sym, nil
}

func (c FileConfig) validate() error {
	p := c.Pipeline
	if p.MarketQueueSize < 0 || p.AccountQueueSize < 0 || p.SeriesCapacity < 0 || p.MaxPositions < 0 {
		return errors.New("pipeline sizes must be >= 0")
	}
	if p.SampleInterval < 0 || p.FeedRestartDelay < 0 || p.ResyncTimeout < 0 {
		return errors.New("pipeline durations must be >= 0")
	}
	if c.Socket.PingInterval < 0 || c.Socket.ReadTimeout < 0 || c.Socket.MaxDialAttempts < 0 {
		return errors.New("socket settings must be >= 0")
	}
	if c.Socket.PingInterval > 0 && c.Socket.ReadTimeout > 0 && c.Socket.ReadTimeout <= c.Socket.PingInterval {
		return errors.New("socket readTimeout must exceed pingInterval")
	}

	r := c.Recorder
	if r.Interval < 0 || r.BatchSize < 0 {
		return errors.New("recorder interval and batchSize must be >= 0")
	}
	if r.File != nil && r.File.Dir == "" {
		return errors.New("recorder file dir is empty")
	}
	if r.Kafka != nil && (len(r.Kafka.Brokers) == 0 || r.Kafka.Topic == "") {
		return errors.New("recorder kafka needs brokers and topic")
	}
	if r.Redis != nil && r.Redis.Addr == "" {
		return errors.New("recorder redis addr is empty")
	}
	return nil
}

// RecorderEnabled reports whether any export sink is configured.
func (c FileConfig) RecorderEnabled() bool {
	r := c.Recorder
	return r.File != nil || r.Postgres != nil || r.Kafka != nil || r.Redis != nil
}

// Duration reads either a Go duration string ("1.5s") or integer nanoseconds.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := time.ParseDuration(s)
		if err != nil {
			return errors.Wrapf(err, "parse duration %q", s)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.Wrap(err, "parse duration")
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
