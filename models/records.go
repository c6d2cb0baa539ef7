package models

// TradeMsg is one normalized trade.
//
// QuantityQuote always equals Price * QuantityBase for non-contract markets.
// On contract markets QuantityContract carries the raw contract count and the
// base/quote amounts are derived from the contract value table.
type TradeMsg struct {
	Exchange         string      `json:"exchange"`
	Market           MarketType  `json:"market_type"`
	Symbol           string      `json:"symbol"`
	Pair             string      `json:"pair"`
	MsgType          MessageType `json:"msg_type"`
	Timestamp        int64       `json:"timestamp"`
	Price            float64     `json:"price"`
	QuantityBase     float64     `json:"quantity_base"`
	QuantityQuote    float64     `json:"quantity_quote"`
	QuantityContract *float64    `json:"quantity_contract,omitempty"`
	Side             TradeSide   `json:"side"`
	TradeID          string      `json:"trade_id"`
}

// OrderMsg is a single price level.
type OrderMsg struct {
	Price            float64  `json:"price"`
	QuantityBase     float64  `json:"quantity_base"`
	QuantityQuote    float64  `json:"quantity_quote"`
	QuantityContract *float64 `json:"quantity_contract,omitempty"`
}

// OrderBookMsg is one normalized order book event. Snapshot true means a
// complete replacement of local state, false means a delta the consumer must
// merge. Asks are ascending by price, bids descending; merging is the
// consumer's responsibility.
type OrderBookMsg struct {
	Exchange  string      `json:"exchange"`
	Market    MarketType  `json:"market_type"`
	Symbol    string      `json:"symbol"`
	Pair      string      `json:"pair"`
	MsgType   MessageType `json:"msg_type"`
	Timestamp int64       `json:"timestamp"`
	Asks      []OrderMsg  `json:"asks"`
	Bids      []OrderMsg  `json:"bids"`
	Snapshot  bool        `json:"snapshot"`
}

// FundingRateMsg is one normalized funding rate event. Only swap and future
// markets carry funding rates.
type FundingRateMsg struct {
	Exchange    string      `json:"exchange"`
	Market      MarketType  `json:"market_type"`
	Symbol      string      `json:"symbol"`
	Pair        string      `json:"pair"`
	MsgType     MessageType `json:"msg_type"`
	Timestamp   int64       `json:"timestamp"`
	FundingRate float64     `json:"funding_rate"`
	FundingTime int64       `json:"funding_time,omitempty"`
}
