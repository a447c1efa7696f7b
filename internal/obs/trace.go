package obs

import (
	"sync/atomic"
	"time"
)

// SessionIDs hands out monotonically increasing ids for feed connection attempts, so
// log lines of one connection lifetime can be correlated across restarts.
type SessionIDs struct {
	next uint64
}

// NewSessionIDs returns a generator seeded with the given value, or the current time
// when seed is zero.
func NewSessionIDs(seed uint64) *SessionIDs {
	if seed == 0 {
		seed = uint64(time.Now().UTC().Unix())
	}
	return &SessionIDs{next: seed}
}

// Next returns the next session id.
func (g *SessionIDs) Next() uint64 {
	if g == nil {
		return 0
	}
	return atomic.AddUint64(&g.next, 1)
}
