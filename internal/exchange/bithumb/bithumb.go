package bithumb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cryptocrawl/internal/exchange"
	"cryptocrawl/internal/wsclient"
	"cryptocrawl/models"
)

const Name = "bithumb"

const websocketURL = "wss://global-api.bithumb.pro/message/realtime"

func init() {
	exchange.Register(New())
}

// Bithumb covers the global spot venue only.
type Bithumb struct {
	parser *parser
	rest   *restClient
}

func New() *Bithumb {
	return &Bithumb{parser: &parser{}, rest: newRESTClient()}
}

func (b *Bithumb) Name() string { return Name }

func (b *Bithumb) Markets() []models.MarketType {
	return []models.MarketType{models.Spot}
}

func (b *Bithumb) Channels(models.MarketType) []models.MessageType {
	return []models.MessageType{models.Trade, models.L2Event, models.L2Snapshot}
}

func (b *Bithumb) Endpoint(_ context.Context, market models.MarketType) (string, error) {
	if market != models.Spot {
		return "", fmt.Errorf("%w: bithumb only lists spot markets", models.ErrUnsupportedMarketType)
	}
	return websocketURL, nil
}

func (b *Bithumb) Protocol(models.MarketType) wsclient.Protocol { return protocol{} }

func (b *Bithumb) ChannelName(msgType models.MessageType, _ models.MarketType, symbol string) (string, error) {
	switch msgType {
	case models.Trade:
		return "TRADE:" + symbol, nil
	case models.L2Event:
		return "ORDERBOOK:" + symbol, nil
	}
	return "", fmt.Errorf("%w: bithumb has no streaming %s channel", models.ErrUnsupportedChannel, msgType)
}

func (b *Bithumb) MaxSubscriptions(models.MarketType) int { return 0 }

func (b *Bithumb) Parser() exchange.Parser { return b.parser }

func (b *Bithumb) FetchSymbols(ctx context.Context, market models.MarketType) ([]string, error) {
	if market != models.Spot {
		return nil, fmt.Errorf("%w: bithumb only lists spot markets", models.ErrUnsupportedMarketType)
	}
	return b.rest.fetchSymbols(ctx)
}

func (b *Bithumb) FetchL2Snapshot(ctx context.Context, market models.MarketType, symbol string) ([]byte, error) {
	if market != models.Spot {
		return nil, fmt.Errorf("%w: bithumb only lists spot markets", models.ErrUnsupportedMarketType)
	}
	return b.rest.fetchL2Snapshot(ctx, symbol)
}

type protocol struct {
	wsclient.NopProtocolBase
}

func serializeCommand(cmd string, channels []string) (string, error) {
	out, err := json.Marshal(map[string]interface{}{"cmd": cmd, "args": channels})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (protocol) SubscribeCommands(channels []string) ([]string, error) {
	cmd, err := serializeCommand("subscribe", channels)
	if err != nil {
		return nil, err
	}
	return []string{cmd}, nil
}

func (protocol) UnsubscribeCommands(channels []string) ([]string, error) {
	cmd, err := serializeCommand("unSubscribe", channels)
	if err != nil {
		return nil, err
	}
	return []string{cmd}, nil
}

func (protocol) Heartbeat() (string, time.Duration) {
	return `{"cmd":"ping"}`, 20 * time.Second
}

// Data frames carry a topic and a data payload; pongs and command acks carry
// neither.
func (protocol) HandleFrame(raw []byte) (string, bool) {
	var frame struct {
		Topic string          `json:"topic"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Topic == "" || len(frame.Data) == 0 {
		return "", true
	}
	return "", false
}
