package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"feedstate/pkg/exception"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

var sessionSeq atomic.Uint64

// Session is one connected websocket. A read loop feeds Next; a heartbeat loop keeps
// the connection alive. Any read, heartbeat or deadline failure ends the session and is
// returned by Next, leaving reconnection to the owner.
type Session struct {
	id   uint64
	opt  Option
	conn *websocket.Conn

	writeMu sync.Mutex

	frames chan []byte
	errCh  chan error
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// Dial performs one connection attempt and runs OnConnect.
func Dial(ctx context.Context, opt Option) (*Session, error) {
	opt.applyDefaults()
	if opt.URL == "" {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "websocket: empty url")
	}

	dialer := websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: opt.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, opt.URL, opt.Header)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "dial %s, status: %d", opt.URL, resp.StatusCode)
		}
		return nil, errors.Wrapf(err, "dial %s", opt.URL)
	}

	s := &Session{
		id:     sessionSeq.Add(1),
		opt:    opt,
		conn:   conn,
		frames: make(chan []byte, opt.ReadQueueSize),
		errCh:  make(chan error, 1),
		done:   make(chan struct{}),
	}

	_ = conn.SetReadDeadline(time.Now().Add(opt.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(opt.ReadTimeout))
	})

	go s.readLoop()
	if opt.PingInterval > 0 {
		go s.heartbeat()
	}

	if opt.OnConnect != nil {
		if err := opt.OnConnect(ctx, s); err != nil {
			_ = s.Close()
			return nil, errors.Wrap(err, "on connect")
		}
	}
	return s, nil
}

// Connect dials until a session is established, sleeping per Backoff between attempts.
func Connect(ctx context.Context, opt Option) (*Session, error) {
	opt.applyDefaults()
	for attempt := 1; ; attempt++ {
		s, err := Dial(ctx, opt)
		if err == nil {
			return s, nil
		}
		if opt.MaxDialAttempts > 0 && attempt >= opt.MaxDialAttempts {
			return nil, err
		}
		logs.Warnf("websocket dial attempt %d failed, err: %+v", attempt, err)
		if !opt.Backoff.Sleep(ctx, attempt) {
			return nil, errors.Wrap(ctx.Err(), "connect")
		}
	}
}

func (s *Session) ID() uint64 {
	return s.id
}

// Next returns the next data frame.
func (s *Session) Next(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-s.frames:
		return frame, nil
	default:
	}
	select {
	case frame := <-s.frames:
		return frame, nil
	case err := <-s.errCh:
		s.fail(err)
		return nil, err
	case <-s.done:
		return nil, exception.ErrWebSocketConnectionClose
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WriteJSON sends v as a text frame.
func (s *Session) WriteJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.opt.WriteTimeout))
	if err := s.conn.WriteJSON(v); err != nil {
		return errors.Wrap(err, "write json")
	}
	return nil
}

// WriteText sends payload as a text frame.
func (s *Session) WriteText(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.opt.WriteTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return errors.Wrap(err, "write text")
	}
	return nil
}

// Close sends a close frame and releases the connection. It is safe to call more
// than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session_end"),
			time.Now().Add(s.opt.WriteTimeout))
		s.writeMu.Unlock()
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *Session) fail(err error) {
	select {
	case s.errCh <- err:
	default:
	}
}

func (s *Session) readLoop() {
	for {
		msgType, payload, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.fail(errors.Wrap(exception.ErrWebSocketConnectionClose, err.Error()))
				return
			}
			s.fail(errors.Wrap(err, "read"))
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.opt.ReadTimeout))

		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		if s.opt.IsHeartbeat != nil && s.opt.IsHeartbeat(payload) {
			continue
		}
		select {
		case s.frames <- payload:
		case <-s.done:
			return
		}
	}
}

func (s *Session) heartbeat() {
	ticker := time.NewTicker(s.opt.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.ping(); err != nil {
				s.fail(errors.Wrap(exception.ErrHeartbeatTimeout, err.Error()))
				return
			}
		}
	}
}

func (s *Session) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	deadline := time.Now().Add(s.opt.WriteTimeout)
	if len(s.opt.PingPayload) > 0 {
		_ = s.conn.SetWriteDeadline(deadline)
		return s.conn.WriteMessage(websocket.TextMessage, s.opt.PingPayload)
	}
	return s.conn.WriteControl(websocket.PingMessage, nil, deadline)
}
