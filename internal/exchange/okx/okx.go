package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cryptocrawl/internal/exchange"
	"cryptocrawl/internal/wsclient"
	"cryptocrawl/models"
)

const Name = "okx"

const publicWebsocketURL = "wss://ws.okx.com:8443/ws/v5/public"

// Composite channel identifiers join the v5 channel and instrument with a
// colon, e.g. trades:BTC-USDT. The protocol splits them back apart when it
// builds subscribe commands.
const channelSep = ":"

func init() {
	exchange.Register(New())
}

type Okx struct {
	parser *parser
	rest   *restClient
}

func New() *Okx {
	return &Okx{parser: &parser{}, rest: newRESTClient()}
}

func (o *Okx) Name() string { return Name }

func (o *Okx) Markets() []models.MarketType {
	return []models.MarketType{
		models.Spot,
		models.LinearFuture,
		models.InverseFuture,
		models.LinearSwap,
		models.InverseSwap,
		models.Option,
	}
}

func (o *Okx) Channels(market models.MarketType) []models.MessageType {
	types := []models.MessageType{models.Trade, models.L2Event, models.L2Snapshot}
	if market.IsSwap() {
		types = append(types, models.FundingRate)
	}
	return types
}

func (o *Okx) Endpoint(context.Context, models.MarketType) (string, error) {
	return publicWebsocketURL, nil
}

func (o *Okx) Protocol(models.MarketType) wsclient.Protocol { return protocol{} }

func (o *Okx) ChannelName(msgType models.MessageType, market models.MarketType, symbol string) (string, error) {
	switch msgType {
	case models.Trade:
		return "trades" + channelSep + symbol, nil
	case models.L2Event:
		return "books" + channelSep + symbol, nil
	case models.FundingRate:
		if !market.IsSwap() {
			return "", fmt.Errorf("%w: okx %s has no funding rate", models.ErrUnsupportedChannel, market)
		}
		return "funding-rate" + channelSep + symbol, nil
	}
	return "", fmt.Errorf("%w: okx has no streaming %s channel", models.ErrUnsupportedChannel, msgType)
}

func (o *Okx) MaxSubscriptions(models.MarketType) int { return 0 }

func (o *Okx) Parser() exchange.Parser { return o.parser }

func (o *Okx) FetchSymbols(ctx context.Context, market models.MarketType) ([]string, error) {
	return o.rest.fetchSymbols(ctx, market)
}

func (o *Okx) FetchL2Snapshot(ctx context.Context, market models.MarketType, symbol string) ([]byte, error) {
	return o.rest.fetchL2Snapshot(ctx, market, symbol)
}

type protocol struct {
	wsclient.NopProtocolBase
}

type channelArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

func serializeCommand(op string, channels []string) (string, error) {
	args := make([]channelArg, 0, len(channels))
	for _, ch := range channels {
		parts := strings.SplitN(ch, channelSep, 2)
		if len(parts) != 2 {
			return "", fmt.Errorf("%w: okx channel %q missing instrument", models.ErrConfiguration, ch)
		}
		args = append(args, channelArg{Channel: parts[0], InstID: parts[1]})
	}
	cmd, err := json.Marshal(map[string]interface{}{"op": op, "args": args})
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

// The v5 endpoint drops connections idle for 30 seconds, so the client sends
// a text ping and the server echoes a text pong.
func (protocol) Heartbeat() (string, time.Duration) { return "ping", 20 * time.Second }

func (protocol) HandleFrame(raw []byte) (string, bool) {
	if string(raw) == "pong" {
		return "", true
	}
	var evt struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(raw, &evt); err == nil && evt.Event != "" {
		return "", true
	}
	return "", false
}
