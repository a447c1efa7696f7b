// Package binance adapts the Binance spot API (binance.us endpoints by default).
// Book snapshots come from REST, so the pipeline resyncs through
// FetchOrderBookSnapshot; the account feed is a listen key user data stream.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"feedstate/internal/adapter"
	"feedstate/internal/adapter/enum"
	"feedstate/internal/exchange"
	"feedstate/pkg/exception"
	"feedstate/pkg/websocket"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const (
	DefaultRestURL    = "https://api.binance.us/api/v3"
	DefaultWsURL      = "wss://stream.binance.us:9443/ws"
	DefaultDepthLimit = 1000

	headerAPIKey       = "X-MBX-APIKEY"
	listenKeyKeepAlive = 30 * time.Minute
	recvWindow         = "5000"
)

type Config struct {
	RestURL    string
	WsURL      string
	Symbols    []adapter.Symbol
	QuoteAsset string
	APIKey     string
	APISecret  string
	DepthLimit int
	HTTPClient *http.Client
	// Socket carries heartbeat, timeout and backoff settings; URL and callbacks are
	// filled per stream.
	Socket websocket.Option
}

// Exchange implements adapter.Exchange.
type Exchange struct {
	cfg   Config
	index adapter.SymbolIndex
	now   func() time.Time
}

func New(cfg Config) (*Exchange, error) {
	if len(cfg.Symbols) == 0 {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "binance: no symbols")
	}
	if cfg.RestURL == "" {
		cfg.RestURL = DefaultRestURL
	}
	cfg.RestURL = strings.TrimSuffix(cfg.RestURL, "/")
	if cfg.WsURL == "" {
		cfg.WsURL = DefaultWsURL
	}
	cfg.WsURL = strings.TrimSuffix(cfg.WsURL, "/")
	if cfg.DepthLimit <= 0 {
		cfg.DepthLimit = DefaultDepthLimit
	}
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = cfg.Symbols[0].Quote
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = exchange.DefaultHTTPClient()
	}
	return &Exchange{
		cfg:   cfg,
		index: adapter.NewSymbolIndex(cfg.Symbols, ""),
		now:   time.Now,
	}, nil
}

func (e *Exchange) Name() enum.Exchange {
	return enum.ExchangeBinance
}

func (e *Exchange) Symbols() []adapter.Symbol {
	return e.cfg.Symbols
}

func (e *Exchange) QuoteAsset() string {
	return strings.ToUpper(e.cfg.QuoteAsset)
}

func (e *Exchange) SnapshotArrivesInline() bool {
	return false
}

func (e *Exchange) FetchOrderBookSnapshot(ctx context.Context, symbol adapter.Symbol) (adapter.Snapshot, error) {
	q := url.Values{}
	q.Set("symbol", symbol.String())
	q.Set("limit", strconv.Itoa(e.cfg.DepthLimit))
	req, err := http.NewRequest(http.MethodGet, e.cfg.RestURL+"/depth?"+q.Encode(), nil)
	if err != nil {
		return adapter.Snapshot{}, errors.Wrap(err, "new depth request")
	}

	var msg depthSnapshot
	if err := exchange.DoJSON(ctx, e.cfg.HTTPClient, req, &msg); err != nil {
		return adapter.Snapshot{}, errors.Wrap(err, "fetch depth snapshot").With("symbol", symbol.String())
	}
	return snapshotFrom(symbol, msg)
}

func (e *Exchange) FetchAccountSnapshot(ctx context.Context) (adapter.AccountSnapshot, error) {
	if e.cfg.APIKey == "" || e.cfg.APISecret == "" {
		return adapter.AccountSnapshot{}, exception.ErrAccountNotConfigured
	}
	q := url.Values{}
	q.Set("timestamp", strconv.FormatInt(e.now().UnixMilli(), 10))
	q.Set("recvWindow", recvWindow)
	query := q.Encode()
	query += "&signature=" + Sign(e.cfg.APISecret, query)

	req, err := http.NewRequest(http.MethodGet, e.cfg.RestURL+"/account?"+query, nil)
	if err != nil {
		return adapter.AccountSnapshot{}, errors.Wrap(err, "new account request")
	}
	req.Header.Set(headerAPIKey, e.cfg.APIKey)

	var msg account
	if err := exchange.DoJSON(ctx, e.cfg.HTTPClient, req, &msg); err != nil {
		return adapter.AccountSnapshot{}, errors.Wrap(err, "fetch account snapshot")
	}
	return accountFrom(msg)
}

// Sign returns the hex HMAC-SHA256 of payload, the signature of a SIGNED endpoint.
func Sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// streams lists the trade and diff depth stream names of every symbol.
func (e *Exchange) streams() []string {
	params := make([]string, 0, len(e.cfg.Symbols)*2)
	for _, s := range e.cfg.Symbols {
		name := strings.ToLower(s.String())
		params = append(params, name+"@trade", name+"@depth@100ms")
	}
	return params
}

func (e *Exchange) ConnectMarketData(ctx context.Context) (adapter.Stream, error) {
	opt := e.cfg.Socket
	opt.URL = e.cfg.WsURL
	opt.OnConnect = func(ctx context.Context, s *websocket.Session) error {
		payload := subscribeRequest{Method: "SUBSCRIBE", Params: e.streams(), ID: 1}
		if err := s.WriteJSON(payload); err != nil {
			return errors.Wrap(err, "write subscribe payload").With("payload", payload)
		}
		return nil
	}
	s, err := websocket.Connect(ctx, opt)
	if err != nil {
		return nil, errors.Wrap(err, "connect binance market data")
	}
	return s, nil
}

func (e *Exchange) ConnectAccount(ctx context.Context) (adapter.Stream, error) {
	if e.cfg.APIKey == "" {
		return nil, exception.ErrAccountNotConfigured
	}
	key, err := e.listenKey(ctx, http.MethodPost, "")
	if err != nil {
		return nil, err
	}

	opt := e.cfg.Socket
	opt.URL = e.cfg.WsURL + "/" + key
	s, err := websocket.Connect(ctx, opt)
	if err != nil {
		return nil, errors.Wrap(err, "connect binance user data")
	}

	stream := &userStream{Session: s, stop: make(chan struct{})}
	go stream.keepAlive(e, key)
	return stream, nil
}

// listenKey issues (POST) or extends (PUT) a user data stream key.
func (e *Exchange) listenKey(ctx context.Context, method, key string) (string, error) {
	target := e.cfg.RestURL + "/userDataStream"
	if key != "" {
		target += "?listenKey=" + url.QueryEscape(key)
	}
	req, err := http.NewRequest(method, target, nil)
	if err != nil {
		return "", errors.Wrap(err, "new listen key request")
	}
	req.Header.Set(headerAPIKey, e.cfg.APIKey)

	var msg listenKey
	if err := exchange.DoJSON(ctx, e.cfg.HTTPClient, req, &msg); err != nil {
		return "", errors.Wrapf(err, "%s listen key", method)
	}
	if key == "" && msg.ListenKey == "" {
		return "", errors.Wrap(exception.ErrInResponseError, "empty listen key")
	}
	return msg.ListenKey, nil
}

// userStream is the user data session plus its listen key keepalive.
type userStream struct {
	*websocket.Session
	stop     chan struct{}
	stopOnce sync.Once
}

func (s *userStream) keepAlive(e *Exchange, key string) {
	ticker := time.NewTicker(listenKeyKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if _, err := e.listenKey(ctx, http.MethodPut, key); err != nil {
				logs.Errorf("keepalive binance listen key, err: %+v", err)
			}
			cancel()
		}
	}
}

func (s *userStream) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return s.Session.Close()
}
