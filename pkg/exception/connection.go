package exception

import "github.com/yanun0323/errors"

var (
	ErrConnectionClose  = errors.New("connection closed")
	ErrHeartbeatTimeout = errors.New("connection: heartbeat timeout")
	ErrUnexpectedStatus = errors.New("connection: unexpected http status")
)
