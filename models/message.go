package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MarketType identifies the contract semantics of a traded instrument.
type MarketType string

const (
	Spot          MarketType = "spot"
	LinearFuture  MarketType = "linear_future"
	InverseFuture MarketType = "inverse_future"
	LinearSwap    MarketType = "linear_swap"
	InverseSwap   MarketType = "inverse_swap"
	Option        MarketType = "option"
)

// ParseMarketType converts a user supplied string into a MarketType.
func ParseMarketType(s string) (MarketType, error) {
	switch MarketType(strings.ToLower(strings.TrimSpace(s))) {
	case Spot:
		return Spot, nil
	case LinearFuture:
		return LinearFuture, nil
	case InverseFuture:
		return InverseFuture, nil
	case LinearSwap:
		return LinearSwap, nil
	case InverseSwap:
		return InverseSwap, nil
	case Option:
		return Option, nil
	}
	return "", fmt.Errorf("%w: unknown market type %q", ErrUnsupportedMarketType, s)
}

func (m MarketType) String() string { return string(m) }

// IsContract reports whether quantities on this market are contract counts
// rather than base-currency amounts.
func (m MarketType) IsContract() bool { return m != Spot }

// IsInverse reports whether contracts on this market are denominated in the
// quote currency.
func (m MarketType) IsInverse() bool {
	return m == InverseFuture || m == InverseSwap
}

// IsSwap reports whether the market is a perpetual swap.
func (m MarketType) IsSwap() bool { return m == LinearSwap || m == InverseSwap }

// MessageType identifies a crawled channel.
type MessageType string

const (
	Trade       MessageType = "trade"
	L2Event     MessageType = "l2_event"
	L2Snapshot  MessageType = "l2_snapshot"
	FundingRate MessageType = "funding_rate"
)

// ParseMessageType converts a user supplied string into a MessageType.
func ParseMessageType(s string) (MessageType, error) {
	switch MessageType(strings.ToLower(strings.TrimSpace(s))) {
	case Trade:
		return Trade, nil
	case L2Event:
		return L2Event, nil
	case L2Snapshot:
		return L2Snapshot, nil
	case FundingRate:
		return FundingRate, nil
	}
	return "", fmt.Errorf("%w: unknown channel %q", ErrUnsupportedChannel, s)
}

func (t MessageType) String() string { return string(t) }

// TradeSide is the taker side of a trade as reported by the exchange.
type TradeSide string

const (
	Buy  TradeSide = "buy"
	Sell TradeSide = "sell"
)

// Message is the canonical envelope delivered to the sink. One instance
// represents one logical event and is immutable once constructed.
type Message struct {
	Exchange  string          `json:"exchange"`
	Market    MarketType      `json:"market_type"`
	Symbol    string          `json:"symbol"`
	Pair      string          `json:"pair"`
	MsgType   MessageType     `json:"msg_type"`
	Timestamp int64           `json:"timestamp"`
	Raw       json.RawMessage `json:"raw"`
}

// NewMessage builds a canonical envelope. Timestamp is milliseconds since
// epoch.
func NewMessage(exchange string, market MarketType, symbol, pair string, msgType MessageType, timestamp int64, raw []byte) *Message {
	return &Message{
		Exchange:  exchange,
		Market:    market,
		Symbol:    symbol,
		Pair:      pair,
		MsgType:   msgType,
		Timestamp: timestamp,
		Raw:       json.RawMessage(raw),
	}
}
