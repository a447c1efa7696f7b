package enum

// MessageType is the envelope discriminator of an order book message.
type MessageType uint8

const (
	_message_type_beg MessageType = iota
	MessageOrderBookSnapshot
	MessageOrderBookUpdate
	MessageLiveOrderBook
	_message_type_end
)

func (m MessageType) IsAvailable() bool {
	return m > _message_type_beg && m < _message_type_end
}

func (m MessageType) String() string {
	switch m {
	case MessageOrderBookSnapshot:
		return "orderbook_snapshot"
	case MessageOrderBookUpdate:
		return "orderbook_update"
	case MessageLiveOrderBook:
		return "live_orderbook"
	default:
		return "unknown"
	}
}

// EventKind describes the meaning of a decoded feed event and selects its queue.
type EventKind uint8

const (
	_event_kind_beg EventKind = iota
	EventDiff
	EventSnapshot
	EventTrade
	EventExecutionReport
	EventBalance
	_event_kind_end
)

func (k EventKind) IsAvailable() bool {
	return k > _event_kind_beg && k < _event_kind_end
}

func (k EventKind) String() string {
	switch k {
	case EventDiff:
		return "diff"
	case EventSnapshot:
		return "snapshot"
	case EventTrade:
		return "trade"
	case EventExecutionReport:
		return "execution_report"
	case EventBalance:
		return "balance"
	default:
		return "unknown"
	}
}
