package adapter

import (
	"context"

	"feedstate/internal/adapter/enum"
)

// Exchange is the capability every venue implements. The pipeline depends on this
// interface only and never branches on the venue identity.
type Exchange interface {
	Name() enum.Exchange
	Symbols() []Symbol
	// QuoteAsset is the currency equity is valued in.
	QuoteAsset() string
	// SnapshotArrivesInline reports whether book snapshots are pushed on the market
	// data stream. When false, resync fetches one through FetchOrderBookSnapshot.
	SnapshotArrivesInline() bool

	FetchOrderBookSnapshot(ctx context.Context, symbol Symbol) (Snapshot, error)
	FetchAccountSnapshot(ctx context.Context) (AccountSnapshot, error)

	ConnectMarketData(ctx context.Context) (Stream, error)
	ConnectAccount(ctx context.Context) (Stream, error)

	// Decode maps one native frame to zero or more canonical events. Frames that are
	// not data (acks, pongs) return no events and no error.
	Decode(payload []byte) ([]Event, error)
}

// Stream is a connected feed producing native frames.
type Stream interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}
