package okx

import "encoding/json"

// Wire payloads of the OKX v5 API. Timestamps are millisecond strings and numbers that
// carry prices or quantities are decimal strings.

type request struct {
	Op   string `json:"op"`
	Args any    `json:"args"`
}

type channelArg struct {
	Channel  string `json:"channel"`
	InstID   string `json:"instId,omitempty"`
	InstType string `json:"instType,omitempty"`
}

type loginArg struct {
	APIKey     string `json:"apiKey"`
	Passphrase string `json:"passphrase"`
	Timestamp  string `json:"timestamp"`
	Sign       string `json:"sign"`
}

// eventReply answers op requests: login, subscribe and error.
type eventReply struct {
	Event  string `json:"event"`
	Code   string `json:"code"`
	Msg    string `json:"msg"`
	ConnID string `json:"connId"`
}

// push is the envelope of every channel push. Data is decoded per channel.
type push struct {
	Arg    channelArg      `json:"arg"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type bookData struct {
	Asks      [][]string `json:"asks"` // [0]price [1]quantity [2]deprecated [3]order count
	Bids      [][]string `json:"bids"` // [0]price [1]quantity [2]deprecated [3]order count
	Timestamp string     `json:"ts"`
	Checksum  int32      `json:"checksum"`
	PrevSeqID int64      `json:"prevSeqId"`
	SeqID     int64      `json:"seqId"`
}

type tradeData struct {
	InstID    string `json:"instId"`
	TradeID   string `json:"tradeId"`
	Price     string `json:"px"`
	Size      string `json:"sz"`
	Side      string `json:"side"`
	Timestamp string `json:"ts"`
}

type orderData struct {
	InstID        string `json:"instId"`
	OrdID         string `json:"ordId"`
	ClOrdID       string `json:"clOrdId"`
	Price         string `json:"px"`
	Size          string `json:"sz"`
	OrdType       string `json:"ordType"`
	Side          string `json:"side"`
	State         string `json:"state"`
	AccFillSize   string `json:"accFillSz"`
	AvgPrice      string `json:"avgPx"`
	FillTime      string `json:"fillTime"`
	UpdateTime    string `json:"uTime"`
	Code          string `json:"code"`
	Msg           string `json:"msg"`
	CancelSource  string `json:"cancelSource"`
	AmendResult   string `json:"amendResult"`
	CreationTime  string `json:"cTime"`
	FeeCurrency   string `json:"feeCcy"`
	FillFeeAmount string `json:"fillFee"`
}

type balanceDetail struct {
	Currency   string `json:"ccy"`
	Available  string `json:"availBal"`
	Frozen     string `json:"frozenBal"`
	CashBal    string `json:"cashBal"`
	UpdateTime string `json:"uTime"`
}

type accountData struct {
	UpdateTime string          `json:"uTime"`
	TotalEq    string          `json:"totalEq"`
	Details    []balanceDetail `json:"details"`
}

type tradeFee struct {
	InstType string `json:"instType"`
	Maker    string `json:"maker"`
	Taker    string `json:"taker"`
	Level    string `json:"level"`
}

// restReply is the envelope of every REST response.
type restReply[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []T    `json:"data"`
}
