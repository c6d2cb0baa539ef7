package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cryptocrawl/internal/exchange"
	"cryptocrawl/internal/wsclient"
	"cryptocrawl/models"
)

const Name = "binance"

const (
	spotWebsocketURL    = "wss://stream.binance.com:9443/stream"
	futuresWebsocketURL = "wss://fstream.binance.com/stream"
	dstreamWebsocketURL = "wss://dstream.binance.com/stream"
)

func init() {
	exchange.Register(New())
}

// Binance streams spot, USDT-margined and coin-margined markets through the
// combined-stream endpoints.
type Binance struct {
	parser *parser
	rest   *restClient
}

func New() *Binance {
	return &Binance{parser: &parser{}, rest: newRESTClient()}
}

func (b *Binance) Name() string { return Name }

func (b *Binance) Markets() []models.MarketType {
	return []models.MarketType{
		models.Spot,
		models.LinearFuture,
		models.InverseFuture,
		models.LinearSwap,
		models.InverseSwap,
	}
}

func (b *Binance) Channels(market models.MarketType) []models.MessageType {
	types := []models.MessageType{models.Trade, models.L2Event, models.L2Snapshot}
	if market.IsSwap() {
		types = append(types, models.FundingRate)
	}
	return types
}

func (b *Binance) Endpoint(_ context.Context, market models.MarketType) (string, error) {
	switch market {
	case models.Spot:
		return spotWebsocketURL, nil
	case models.LinearFuture, models.LinearSwap:
		return futuresWebsocketURL, nil
	case models.InverseFuture, models.InverseSwap:
		return dstreamWebsocketURL, nil
	}
	return "", fmt.Errorf("%w: binance does not offer %s", models.ErrUnsupportedMarketType, market)
}

func (b *Binance) Protocol(models.MarketType) wsclient.Protocol { return protocol{} }

func (b *Binance) ChannelName(msgType models.MessageType, market models.MarketType, symbol string) (string, error) {
	sym := strings.ToLower(symbol)
	switch msgType {
	case models.Trade:
		return sym + "@aggTrade", nil
	case models.L2Event:
		return sym + "@depth@100ms", nil
	case models.FundingRate:
		if !market.IsSwap() {
			return "", fmt.Errorf("%w: binance %s has no funding rate", models.ErrUnsupportedChannel, market)
		}
		return sym + "@markPrice", nil
	}
	return "", fmt.Errorf("%w: binance has no streaming %s channel", models.ErrUnsupportedChannel, msgType)
}

func (b *Binance) MaxSubscriptions(models.MarketType) int { return 200 }

func (b *Binance) Parser() exchange.Parser { return b.parser }

func (b *Binance) FetchSymbols(ctx context.Context, market models.MarketType) ([]string, error) {
	return b.rest.fetchSymbols(ctx, market)
}

func (b *Binance) FetchL2Snapshot(ctx context.Context, market models.MarketType, symbol string) ([]byte, error) {
	return b.rest.fetchL2Snapshot(ctx, market, symbol)
}

// protocol implements the combined-stream command framing: every channel
// rides in one SUBSCRIBE message.
type protocol struct {
	wsclient.NopProtocolBase
}

func serializeCommand(method string, channels []string) (string, error) {
	cmd, err := json.Marshal(map[string]interface{}{
		"method": method,
		"params": channels,
		"id":     9527,
	})
	if err != nil {
		return "", err
	}
	return string(cmd), nil
}

func (protocol) SubscribeCommands(channels []string) ([]string, error) {
	cmd, err := serializeCommand("SUBSCRIBE", channels)
	if err != nil {
		return nil, err
	}
	return []string{cmd}, nil
}

func (protocol) UnsubscribeCommands(channels []string) ([]string, error) {
	cmd, err := serializeCommand("UNSUBSCRIBE", channels)
	if err != nil {
		return nil, err
	}
	return []string{cmd}, nil
}

// HandleFrame filters command acknowledgements: {"result":null,"id":9527}.
// Transport-level pings are answered by the websocket library itself.
func (protocol) HandleFrame(raw []byte) (string, bool) {
	var ack struct {
		ID *int64 `json:"id"`
	}
	if err := json.Unmarshal(raw, &ack); err == nil && ack.ID != nil {
		return "", true
	}
	return "", false
}
