package exception

import "github.com/yanun0323/errors"

var (
	ErrMalformedMessage     = errors.New("market data: malformed message")
	ErrUnknownSymbol        = errors.New("market data: unknown symbol")
	ErrUnsupportedExchange  = errors.New("market data: unsupported exchange")
	ErrSnapshotInline       = errors.New("market data: snapshots arrive inline")
	ErrResyncAborted        = errors.New("market data: resync aborted")
	ErrResyncRequired       = errors.New("market data: stream must be resubscribed")
	ErrAccountNotConfigured = errors.New("account: credentials not configured")
)
