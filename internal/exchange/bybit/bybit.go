package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cryptocrawl/internal/exchange"
	"cryptocrawl/internal/wsclient"
	"cryptocrawl/models"
)

const Name = "bybit"

const (
	spotWebsocketURL    = "wss://stream.bybit.com/v5/public/spot"
	linearWebsocketURL  = "wss://stream.bybit.com/v5/public/linear"
	inverseWebsocketURL = "wss://stream.bybit.com/v5/public/inverse"
)

func init() {
	exchange.Register(New())
}

// Bybit streams the v5 public topics. REST access goes through the official
// SDK client.
type Bybit struct {
	parser *parser
	rest   *restClient
}

func New() *Bybit {
	return &Bybit{parser: &parser{}, rest: newRESTClient()}
}

func (b *Bybit) Name() string { return Name }

func (b *Bybit) Markets() []models.MarketType {
	return []models.MarketType{
		models.Spot,
		models.LinearSwap,
		models.InverseSwap,
		models.InverseFuture,
	}
}

func (b *Bybit) Channels(market models.MarketType) []models.MessageType {
	types := []models.MessageType{models.Trade, models.L2Event, models.L2Snapshot}
	if market.IsSwap() {
		// Funding arrives on the tickers topic.
		types = append(types, models.FundingRate)
	}
	return types
}

func (b *Bybit) Endpoint(_ context.Context, market models.MarketType) (string, error) {
	switch market {
	case models.Spot:
		return spotWebsocketURL, nil
	case models.LinearSwap:
		return linearWebsocketURL, nil
	case models.InverseSwap, models.InverseFuture:
		return inverseWebsocketURL, nil
	}
	return "", fmt.Errorf("%w: bybit does not offer %s", models.ErrUnsupportedMarketType, market)
}

func (b *Bybit) Protocol(models.MarketType) wsclient.Protocol { return protocol{} }

func (b *Bybit) ChannelName(msgType models.MessageType, market models.MarketType, symbol string) (string, error) {
	switch msgType {
	case models.Trade:
		return "publicTrade." + symbol, nil
	case models.L2Event:
		return "orderbook.50." + symbol, nil
	case models.FundingRate:
		if !market.IsSwap() {
			return "", fmt.Errorf("%w: bybit %s has no funding rate", models.ErrUnsupportedChannel, market)
		}
		return "tickers." + symbol, nil
	}
	return "", fmt.Errorf("%w: bybit has no streaming %s channel", models.ErrUnsupportedChannel, msgType)
}

// The v5 endpoints reject subscribe commands with more than 10 args.
func (b *Bybit) MaxSubscriptions(models.MarketType) int { return 10 }

func (b *Bybit) Parser() exchange.Parser { return b.parser }

func (b *Bybit) FetchSymbols(ctx context.Context, market models.MarketType) ([]string, error) {
	return b.rest.fetchSymbols(ctx, market)
}

func (b *Bybit) FetchL2Snapshot(ctx context.Context, market models.MarketType, symbol string) ([]byte, error) {
	return b.rest.fetchL2Snapshot(ctx, market, symbol)
}

type protocol struct {
	wsclient.NopProtocolBase
}

func serializeCommand(op string, channels []string) (string, error) {
	cmd, err := json.Marshal(map[string]interface{}{"op": op, "args": channels})
	if err != nil {
		return "", err
	}
	return string(cmd), nil
}

func (protocol) SubscribeCommands(channels []string) ([]string, error) {
	cmd, err := serializeCommand("subscribe", channels)
	if err != nil {
		return nil, err
	}
	return []string{cmd}, nil
}

func (protocol) UnsubscribeCommands(channels []string) ([]string, error) {
	cmd, err := serializeCommand("unsubscribe", channels)
	if err != nil {
		return nil, err
	}
	return []string{cmd}, nil
}

func (protocol) Heartbeat() (string, time.Duration) {
	return `{"op":"ping"}`, 20 * time.Second
}

// Data frames carry a topic; everything else (pong, subscribe acks) is
// control traffic.
func (protocol) HandleFrame(raw []byte) (string, bool) {
	var frame struct {
		Topic string `json:"topic"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Topic == "" {
		return "", true
	}
	return "", false
}
