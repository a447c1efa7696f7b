// Package okx adapts the OKX v5 spot API. The books channel pushes a snapshot on
// subscribe followed by sequenced updates, so the pipeline re-anchors on inline
// snapshots and never fetches one over REST.
package okx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"feedstate/internal/adapter"
	"feedstate/internal/adapter/enum"
	"feedstate/internal/exchange"
	"feedstate/pkg/exception"
	"feedstate/pkg/websocket"

	"github.com/yanun0323/errors"
)

const (
	DefaultRestURL      = "https://www.okx.com"
	DefaultPublicWsURL  = "wss://ws.okx.com:8443/ws/v5/public"
	DefaultPrivateWsURL = "wss://ws.okx.com:8443/ws/v5/private"

	// OKX drops connections idle for 30 seconds.
	DefaultPingInterval = 20 * time.Second

	pathBalance  = "/api/v5/account/balance"
	pathTradeFee = "/api/v5/account/trade-fee?instType=SPOT"
	pathVerify   = "/users/self/verify"

	headerKey        = "OK-ACCESS-KEY"
	headerSign       = "OK-ACCESS-SIGN"
	headerTimestamp  = "OK-ACCESS-TIMESTAMP"
	headerPassphrase = "OK-ACCESS-PASSPHRASE"

	loginTimeout = 10 * time.Second
	isoMillis    = "2006-01-02T15:04:05.000Z"
)

type Config struct {
	RestURL      string
	PublicWsURL  string
	PrivateWsURL string
	Symbols      []adapter.Symbol
	QuoteAsset   string
	APIKey       string
	APISecret    string
	Passphrase   string
	HTTPClient   *http.Client
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
		return nil, errors.Wrap(exception.ErrInvalidArgument, "okx: no symbols")
	}
	if cfg.RestURL == "" {
		cfg.RestURL = DefaultRestURL
	}
	cfg.RestURL = strings.TrimSuffix(cfg.RestURL, "/")
	if cfg.PublicWsURL == "" {
		cfg.PublicWsURL = DefaultPublicWsURL
	}
	if cfg.PrivateWsURL == "" {
		cfg.PrivateWsURL = DefaultPrivateWsURL
	}
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = cfg.Symbols[0].Quote
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = exchange.DefaultHTTPClient()
	}
	if cfg.Socket.PingInterval <= 0 {
		cfg.Socket.PingInterval = DefaultPingInterval
	}
	if len(cfg.Socket.PingPayload) == 0 {
		cfg.Socket.PingPayload = []byte("ping")
	}
	cfg.Socket.IsHeartbeat = IsHeartbeat

	return &Exchange{
		cfg:   cfg,
		index: adapter.NewSymbolIndex(cfg.Symbols, "-"),
		now:   time.Now,
	}, nil
}

func (e *Exchange) Name() enum.Exchange {
	return enum.ExchangeOKX
}

func (e *Exchange) Symbols() []adapter.Symbol {
	return e.cfg.Symbols
}

func (e *Exchange) QuoteAsset() string {
	return strings.ToUpper(e.cfg.QuoteAsset)
}

func (e *Exchange) SnapshotArrivesInline() bool {
	return true
}

func (e *Exchange) FetchOrderBookSnapshot(context.Context, adapter.Symbol) (adapter.Snapshot, error) {
	return adapter.Snapshot{}, exception.ErrSnapshotInline
}

func (e *Exchange) hasCredentials() bool {
	return e.cfg.APIKey != "" && e.cfg.APISecret != "" && e.cfg.Passphrase != ""
}

// FetchAccountSnapshot combines the balance table with the spot fee tier. OKX reports
// fees charged as negative rates; they are returned as magnitudes.
func (e *Exchange) FetchAccountSnapshot(ctx context.Context) (adapter.AccountSnapshot, error) {
	if !e.hasCredentials() {
		return adapter.AccountSnapshot{}, exception.ErrAccountNotConfigured
	}

	accounts, err := get[accountData](ctx, e, pathBalance)
	if err != nil {
		return adapter.AccountSnapshot{}, errors.Wrap(err, "fetch account balance")
	}
	var snap adapter.AccountSnapshot
	if len(accounts) > 0 {
		ev, err := balanceEvent(accounts[0], true)
		if err != nil {
			return adapter.AccountSnapshot{}, err
		}
		snap.UpdateTime = ev.EventTime
		snap.Balances = ev.Balances
	}

	fees, err := get[tradeFee](ctx, e, pathTradeFee)
	if err != nil {
		return adapter.AccountSnapshot{}, errors.Wrap(err, "fetch trade fee")
	}
	if len(fees) > 0 {
		maker, err := exchange.Decimal("maker", fees[0].Maker)
		if err != nil {
			return adapter.AccountSnapshot{}, err
		}
		taker, err := exchange.Decimal("taker", fees[0].Taker)
		if err != nil {
			return adapter.AccountSnapshot{}, err
		}
		snap.MakerFee, snap.TakerFee = maker.Abs(), taker.Abs()
	}
	return snap, nil
}

// get sends a signed GET and unwraps the response envelope.
func get[T any](ctx context.Context, e *Exchange, path string) ([]T, error) {
	req, err := http.NewRequest(http.MethodGet, e.cfg.RestURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	ts := e.now().UTC().Format(isoMillis)
	req.Header.Set(headerKey, e.cfg.APIKey)
	req.Header.Set(headerSign, Sign(e.cfg.APISecret, ts, http.MethodGet, path, ""))
	req.Header.Set(headerTimestamp, ts)
	req.Header.Set(headerPassphrase, e.cfg.Passphrase)

	var reply restReply[T]
	if err := exchange.DoJSON(ctx, e.cfg.HTTPClient, req, &reply); err != nil {
		return nil, err
	}
	if reply.Code != "0" {
		return nil, errors.Wrapf(exception.ErrInResponseError, "code: %s, msg: %s", reply.Code, reply.Msg)
	}
	return reply.Data, nil
}

// Sign returns base64(HMAC-SHA256(timestamp + method + requestPath + body)), the
// signature of both REST requests and the websocket login.
func Sign(secret, timestamp, method, requestPath, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + method + requestPath + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (e *Exchange) ConnectMarketData(ctx context.Context) (adapter.Stream, error) {
	args := make([]channelArg, 0, len(e.cfg.Symbols)*2)
	for _, s := range e.cfg.Symbols {
		inst := s.Join("-")
		args = append(args,
			channelArg{Channel: channelBooks, InstID: inst},
			channelArg{Channel: channelTrades, InstID: inst},
		)
	}

	opt := e.cfg.Socket
	opt.URL = e.cfg.PublicWsURL
	opt.OnConnect = func(ctx context.Context, s *websocket.Session) error {
		return subscribe(s, args)
	}
	s, err := websocket.Connect(ctx, opt)
	if err != nil {
		return nil, errors.Wrap(err, "connect okx public")
	}
	return s, nil
}

func (e *Exchange) ConnectAccount(ctx context.Context) (adapter.Stream, error) {
	if !e.hasCredentials() {
		return nil, exception.ErrAccountNotConfigured
	}
	args := []channelArg{
		{Channel: channelOrders, InstType: "SPOT"},
		{Channel: channelAccount},
	}

	opt := e.cfg.Socket
	opt.URL = e.cfg.PrivateWsURL
	opt.OnConnect = func(ctx context.Context, s *websocket.Session) error {
		if err := e.login(ctx, s); err != nil {
			return err
		}
		return subscribe(s, args)
	}
	s, err := websocket.Connect(ctx, opt)
	if err != nil {
		return nil, errors.Wrap(err, "connect okx private")
	}
	return s, nil
}

func subscribe(s *websocket.Session, args []channelArg) error {
	payload := request{Op: "subscribe", Args: args}
	if err := s.WriteJSON(payload); err != nil {
		return errors.Wrap(err, "write subscribe payload").With("payload", payload)
	}
	return nil
}

// login authenticates the private session and waits for the login reply, since
// private channels reject subscriptions sent before it.
func (e *Exchange) login(ctx context.Context, s *websocket.Session) error {
	ts := strconv.FormatInt(e.now().Unix(), 10)
	payload := request{Op: "login", Args: []loginArg{{
		APIKey:     e.cfg.APIKey,
		Passphrase: e.cfg.Passphrase,
		Timestamp:  ts,
		Sign:       Sign(e.cfg.APISecret, ts, http.MethodGet, pathVerify, ""),
	}}}
	if err := s.WriteJSON(payload); err != nil {
		return errors.Wrap(err, "write login payload")
	}

	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()
	for {
		frame, err := s.Next(ctx)
		if err != nil {
			return errors.Wrap(err, "wait login reply")
		}
		var reply eventReply
		if err := unmarshal(frame, &reply, "login reply"); err != nil {
			continue
		}
		switch reply.Event {
		case eventLogin:
			if reply.Code != "" && reply.Code != "0" {
				return errors.Wrapf(exception.ErrInResponseError, "okx login, code: %s, msg: %s", reply.Code, reply.Msg)
			}
			return nil
		case eventError:
			return errors.Wrapf(exception.ErrInResponseError, "okx login, code: %s, msg: %s", reply.Code, reply.Msg)
		}
	}
}
