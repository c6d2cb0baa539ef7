package huobi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"cryptocrawl/internal/exchange"
	"cryptocrawl/internal/wsclient"
	"cryptocrawl/models"
)

const Name = "huobi"

const (
	spotWebsocketURL        = "wss://api.huobi.pro/ws"
	inverseFutureWSURL      = "wss://api.hbdm.com/ws"
	linearSwapWebsocketURL  = "wss://api.hbdm.com/linear-swap-ws"
	inverseSwapWebsocketURL = "wss://api.hbdm.com/swap-ws"
	optionWebsocketURL      = "wss://api.hbdm.com/option-ws"
)

func init() {
	exchange.Register(New())
}

// Huobi covers the pro spot venue and the hbdm contract venues. All of them
// gzip every frame and drive liveness with server-initiated pings.
type Huobi struct {
	parser *parser
	rest   *restClient
}

func New() *Huobi {
	return &Huobi{parser: &parser{}, rest: newRESTClient()}
}

func (h *Huobi) Name() string { return Name }

func (h *Huobi) Markets() []models.MarketType {
	return []models.MarketType{
		models.Spot,
		models.InverseFuture,
		models.LinearSwap,
		models.InverseSwap,
		models.Option,
	}
}

func (h *Huobi) Channels(models.MarketType) []models.MessageType {
	// No public funding stream on the market-data endpoints.
	return []models.MessageType{models.Trade, models.L2Event, models.L2Snapshot}
}

func (h *Huobi) Endpoint(_ context.Context, market models.MarketType) (string, error) {
	switch market {
	case models.Spot:
		return spotWebsocketURL, nil
	case models.InverseFuture:
		return inverseFutureWSURL, nil
	case models.LinearSwap:
		return linearSwapWebsocketURL, nil
	case models.InverseSwap:
		return inverseSwapWebsocketURL, nil
	case models.Option:
		return optionWebsocketURL, nil
	}
	return "", fmt.Errorf("%w: huobi does not offer %s", models.ErrUnsupportedMarketType, market)
}

func (h *Huobi) Protocol(models.MarketType) wsclient.Protocol { return protocol{} }

func (h *Huobi) ChannelName(msgType models.MessageType, market models.MarketType, symbol string) (string, error) {
	if market == models.Spot {
		symbol = strings.ToLower(symbol)
	}
	switch msgType {
	case models.Trade:
		return fmt.Sprintf("market.%s.trade.detail", symbol), nil
	case models.L2Event:
		if market == models.Spot {
			return fmt.Sprintf("market.%s.mbp.refresh.20", symbol), nil
		}
		return fmt.Sprintf("market.%s.depth.step0", symbol), nil
	}
	return "", fmt.Errorf("%w: huobi has no streaming %s channel", models.ErrUnsupportedChannel, msgType)
}

func (h *Huobi) MaxSubscriptions(models.MarketType) int { return 0 }

func (h *Huobi) Parser() exchange.Parser { return h.parser }

func (h *Huobi) FetchSymbols(ctx context.Context, market models.MarketType) ([]string, error) {
	return h.rest.fetchSymbols(ctx, market)
}

func (h *Huobi) FetchL2Snapshot(ctx context.Context, market models.MarketType, symbol string) ([]byte, error) {
	return h.rest.fetchL2Snapshot(ctx, market, symbol)
}

// protocol speaks the huobi market-data dialect: one sub command per channel,
// gzip on every inbound frame, {"ping":n} answered with {"pong":n}.
type protocol struct {
	wsclient.NopProtocolBase
}

func (protocol) SubscribeCommands(channels []string) ([]string, error) {
	cmds := make([]string, 0, len(channels))
	for _, ch := range channels {
		cmd, err := json.Marshal(map[string]string{"sub": ch, "id": "crawler"})
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, string(cmd))
	}
	return cmds, nil
}

func (protocol) UnsubscribeCommands(channels []string) ([]string, error) {
	cmds := make([]string, 0, len(channels))
	for _, ch := range channels {
		cmd, err := json.Marshal(map[string]string{"unsub": ch, "id": "crawler"})
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, string(cmd))
	}
	return cmds, nil
}

func (protocol) Heartbeat() (string, time.Duration) { return "", 0 }

func (protocol) Decompress(raw []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: huobi gzip: %v", models.ErrProtocol, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: huobi gzip: %v", models.ErrProtocol, err)
	}
	return out, nil
}

func (protocol) HandleFrame(raw []byte) (string, bool) {
	var ctl struct {
		Ping   *int64 `json:"ping"`
		Subbed string `json:"subbed"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &ctl); err != nil {
		return "", false
	}
	if ctl.Ping != nil {
		return fmt.Sprintf(`{"pong":%d}`, *ctl.Ping), true
	}
	if ctl.Subbed != "" || ctl.Status != "" {
		return "", true
	}
	return "", false
}
