package kucoin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cryptocrawl/internal/exchange"
	"cryptocrawl/internal/wsclient"
	"cryptocrawl/models"
)

const Name = "kucoin"

func init() {
	exchange.Register(New())
}

// Kucoin covers the spot venue and the futures venue. Websocket endpoints are
// not static: each connection bootstraps a token via bullet-public first.
type Kucoin struct {
	parser *parser
	rest   *restClient
}

func New() *Kucoin {
	return &Kucoin{parser: &parser{}, rest: newRESTClient()}
}

func (k *Kucoin) Name() string { return Name }

func (k *Kucoin) Markets() []models.MarketType {
	return []models.MarketType{
		models.Spot,
		models.LinearSwap,
		models.InverseSwap,
	}
}

func (k *Kucoin) Channels(models.MarketType) []models.MessageType {
	return []models.MessageType{models.Trade, models.L2Event, models.L2Snapshot}
}

func (k *Kucoin) Endpoint(ctx context.Context, market models.MarketType) (string, error) {
	return k.rest.bulletPublic(ctx, market)
}

func (k *Kucoin) Protocol(models.MarketType) wsclient.Protocol { return protocol{} }

func (k *Kucoin) ChannelName(msgType models.MessageType, market models.MarketType, symbol string) (string, error) {
	switch msgType {
	case models.Trade:
		if market == models.Spot {
			return "/market/match:" + symbol, nil
		}
		return "/contractMarket/execution:" + symbol, nil
	case models.L2Event:
		if market == models.Spot {
			return "/market/level2:" + symbol, nil
		}
		return "/contractMarket/level2:" + symbol, nil
	}
	return "", fmt.Errorf("%w: kucoin has no streaming %s channel", models.ErrUnsupportedChannel, msgType)
}

// Each connection tolerates up to 100 topics.
func (k *Kucoin) MaxSubscriptions(models.MarketType) int { return 100 }

func (k *Kucoin) Parser() exchange.Parser { return k.parser }

func (k *Kucoin) FetchSymbols(ctx context.Context, market models.MarketType) ([]string, error) {
	return k.rest.fetchSymbols(ctx, market)
}

func (k *Kucoin) FetchL2Snapshot(ctx context.Context, market models.MarketType, symbol string) ([]byte, error) {
	return k.rest.fetchL2Snapshot(ctx, market, symbol)
}

type protocol struct {
	wsclient.NopProtocolBase
}

type commandMessage struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Topic          string `json:"topic"`
	PrivateChannel bool   `json:"privateChannel"`
	Response       bool   `json:"response"`
}

func serializeCommands(verb string, channels []string) ([]string, error) {
	cmds := make([]string, 0, len(channels))
	for i, ch := range channels {
		cmd, err := json.Marshal(commandMessage{
			ID:       fmt.Sprintf("crawler-%d", i+1),
			Type:     verb,
			Topic:    ch,
			Response: true,
		})
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, string(cmd))
	}
	return cmds, nil
}

func (protocol) SubscribeCommands(channels []string) ([]string, error) {
	return serializeCommands("subscribe", channels)
}

func (protocol) UnsubscribeCommands(channels []string) ([]string, error) {
	return serializeCommands("unsubscribe", channels)
}

// The bullet response advertises an 18s ping interval.
func (protocol) Heartbeat() (string, time.Duration) {
	return `{"id":"crawler-ping","type":"ping"}`, 18 * time.Second
}

func (protocol) HandleFrame(raw []byte) (string, bool) {
	var frame struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return "", true
	}
	switch frame.Type {
	case "welcome", "ack", "pong", "error":
		return "", true
	}
	return "", false
}
