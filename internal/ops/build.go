package ops

import (
	"time"

	"github.com/yanun0323/errors"

	"feedstate/internal/adapter"
	"feedstate/internal/adapter/enum"
	"feedstate/internal/exchange/binance"
	"feedstate/internal/exchange/okx"
	"feedstate/internal/ingest"
	"feedstate/internal/recorder"
	"feedstate/pkg/conn"
	"feedstate/pkg/websocket"
)

// IngestOption maps the pipeline section onto the orchestrator options. Zero values
// keep the orchestrator defaults.
func (l Loaded) IngestOption() ingest.Option {
	p := l.File.Pipeline
	opt := ingest.DefaultOption()
	if p.MarketQueueSize > 0 {
		opt.MarketQueueSize = p.MarketQueueSize
	}
	if p.AccountQueueSize > 0 {
		opt.AccountQueueSize = p.AccountQueueSize
	}
	if p.SampleInterval > 0 {
		opt.SampleInterval = p.SampleInterval.Std()
	}
	if p.SeriesCapacity > 0 {
		opt.SeriesCapacity = p.SeriesCapacity
	}
	if p.FeedRestartDelay > 0 {
		opt.FeedRestartDelay = p.FeedRestartDelay.Std()
	}
	if p.ResyncTimeout > 0 {
		opt.Sync.ResyncTimeout = p.ResyncTimeout.Std()
	}
	opt.MaxPositions = p.MaxPositions
	return opt
}

func (l Loaded) socket() websocket.Option {
	return websocket.Option{
		PingInterval:    l.File.Socket.PingInterval.Std(),
		ReadTimeout:     l.File.Socket.ReadTimeout.Std(),
		MaxDialAttempts: l.File.Socket.MaxDialAttempts,
	}
}

// Exchanges builds one adapter per configured venue, in file order.
func (l Loaded) Exchanges() ([]adapter.Exchange, error) {
	out := make([]adapter.Exchange, 0, len(l.File.Exchanges))
	for _, ex := range l.File.Exchanges {
		name, _ := enum.ParseExchange(ex.Name)
		symbols := l.Books[name]

		var (
			built adapter.Exchange
			err   error
		)
		switch name {
		case enum.ExchangeBinance:
			built, err = binance.New(binance.Config{
				RestURL:    ex.RestURL,
				WsURL:      ex.WsURL,
				Symbols:    symbols,
				QuoteAsset: ex.QuoteAsset,
				APIKey:     l.Secrets.BinanceAPIKey,
				APISecret:  l.Secrets.BinanceAPISecret,
				DepthLimit: ex.DepthLimit,
				Socket:     l.socket(),
			})
		case enum.ExchangeOKX:
			built, err = okx.New(okx.Config{
				RestURL:      ex.RestURL,
				PublicWsURL:  ex.WsURL,
				PrivateWsURL: ex.PrivateWsURL,
				Symbols:      symbols,
				QuoteAsset:   ex.QuoteAsset,
				APIKey:       l.Secrets.OKXAPIKey,
				APISecret:    l.Secrets.OKXAPISecret,
				Passphrase:   l.Secrets.OKXPassphrase,
				Socket:       l.socket(),
			})
		default:
			err = errors.Errorf("unsupported exchange: %s", ex.Name)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, built)
	}
	return out, nil
}

func (l Loaded) RecorderConfig() recorder.Config {
	cfg := recorder.DefaultConfig()
	if l.File.Recorder.Interval > 0 {
		cfg.Interval = l.File.Recorder.Interval.Std()
	}
	if l.File.Recorder.BatchSize > 0 {
		cfg.BatchSize = l.File.Recorder.BatchSize
	}
	return cfg
}

// Sinks opens every configured export sink. Sinks opened before a failure are closed.
func (l Loaded) Sinks() (sinks []recorder.Sink, err error) {
	defer func() {
		if err == nil {
			return
		}
		for _, s := range sinks {
			_ = s.Close()
		}
		sinks = nil
	}()

	r := l.File.Recorder
	if r.File != nil {
		cfg := recorder.DefaultFileConfig(r.File.Dir)
		if r.File.SegmentMaxBytes > 0 {
			cfg.SegmentMaxBytes = r.File.SegmentMaxBytes
		}
		if r.File.SegmentDuration > 0 {
			cfg.SegmentMaxDuration = r.File.SegmentDuration.Std()
		}
		cfg.Sync = r.File.Sync
		sink, err := recorder.NewFileSink(cfg)
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, sink)
	}
	if r.Postgres != nil {
		client, err := conn.New(conn.Option{
			Host:       r.Postgres.Host,
			Port:       r.Postgres.Port,
			User:       r.Postgres.User,
			Password:   l.Secrets.PostgresPassword,
			Database:   r.Postgres.Database,
			SSLMode:    r.Postgres.SSLMode,
			ConnString: l.Secrets.PostgresDSN,
			Params:     map[string]string{"application_name": "feedstate"},

			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		})
		if err != nil {
			return sinks, err
		}
		sink, err := recorder.NewPostgresSink(client)
		if err != nil {
			_ = client.Close()
			return sinks, err
		}
		sinks = append(sinks, sink)
	}
	if r.Kafka != nil {
		sink, err := recorder.NewKafkaSink(recorder.KafkaConfig{
			Brokers: r.Kafka.Brokers,
			Topic:   r.Kafka.Topic,
		})
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, sink)
	}
	if r.Redis != nil {
		sink, err := recorder.NewRedisSink(recorder.RedisConfig{
			Addr:      r.Redis.Addr,
			Password:  l.Secrets.RedisPassword,
			DB:        r.Redis.DB,
			KeyPrefix: r.Redis.KeyPrefix,
			TTL:       r.Redis.TTL.Std(),
		})
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, sink)
	}
	return sinks, nil
}
