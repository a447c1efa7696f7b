package binance

// Wire payloads of the Binance spot API. Numbers that carry prices or quantities are
// strings on the wire and stay strings here until decoded into decimals.
//
// encoding/json falls back to case-insensitive key matching, and Binance reuses
// letters in both cases (x/X, o/O, t/T). Every such twin is declared so each key
// lands on its own field.

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type depthSnapshot struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"` // [0]price [1]quantity
	Asks         [][]string `json:"asks"` // [0]price [1]quantity
}

type depthUpdate struct {
	EventType     string     `json:"e"`
	EventTime     int64      `json:"E"`
	Symbol        string     `json:"s"`
	FirstUpdateID int64      `json:"U"`
	FinalUpdateID int64      `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

type trade struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeID      int64  `json:"t"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
	Ignore       bool   `json:"M"`
}

type executionReport struct {
	EventType         string `json:"e"`
	EventTime         int64  `json:"E"`
	Symbol            string `json:"s"`
	ClientOrderID     string `json:"c"`
	Side              string `json:"S"`
	OrderType         string `json:"o"`
	TimeInForce       string `json:"f"`
	Quantity          string `json:"q"`
	Price             string `json:"p"`
	StopPrice         string `json:"P"`
	IcebergQuantity   string `json:"F"`
	OrigClientOrderID string `json:"C"`
	ExecutionType     string `json:"x"`
	OrderStatus       string `json:"X"`
	RejectReason      string `json:"r"`
	CumFilledQuantity string `json:"z"`
	TransactTime      int64  `json:"T"`
	TradeID           int64  `json:"t"`
	CreationTime      int64  `json:"O"`
	CumQuoteQuantity  string `json:"Z"`
	QuoteOrderQty     string `json:"Q"`
}

type balanceEntry struct {
	Asset  string `json:"a"`
	Free   string `json:"f"`
	Locked string `json:"l"`
}

type accountPosition struct {
	EventType  string         `json:"e"`
	EventTime  int64          `json:"E"`
	LastUpdate int64          `json:"u"`
	Balances   []balanceEntry `json:"B"`
}

type account struct {
	CommissionRates struct {
		Maker string `json:"maker"`
		Taker string `json:"taker"`
	} `json:"commissionRates"`
	UpdateTime int64 `json:"updateTime"`
	Balances   []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

type listenKey struct {
	ListenKey string `json:"listenKey"`
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}
