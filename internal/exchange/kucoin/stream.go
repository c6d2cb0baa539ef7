package kucoin

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdkapi "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/api"
	futurespublic "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/generate/futures/futurespublic"
	sdktype "github.com/Kucoin/kucoin-universal-sdk/sdk/golang/pkg/types"

	"cryptocrawl/internal/pairs"
	"cryptocrawl/logger"
	"cryptocrawl/models"
)

// StreamsL2 reports that futures book deltas ride on the official SDK client
// rather than the generic engine.
func (k *Kucoin) StreamsL2(market models.MarketType) bool {
	return market != models.Spot
}

// StreamL2 subscribes to the level2 increment stream for every symbol and
// emits one single-level delta book per change until the context or duration
// runs out.
func (k *Kucoin) StreamL2(ctx context.Context, market models.MarketType, symbols []string, duration time.Duration, emit func(models.OrderBookMsg)) error {
	log := logger.GetLogger().WithComponent("kucoin_stream")

	transportOpt := sdktype.NewTransportOptionBuilder().
		SetTimeout(30 * time.Second).
		Build()
	wsOpt := sdktype.NewWebSocketClientOptionBuilder().Build()
	option := sdktype.NewClientOptionBuilder().
		WithFuturesEndpoint(futuresAPIBase).
		WithTransportOption(transportOpt).
		WithWebSocketClientOption(wsOpt).
		Build()

	client := sdkapi.NewClient(option)
	ws := client.WsService().NewFuturesPublicWS()
	if err := ws.Start(); err != nil {
		return fmt.Errorf("%w: kucoin futures websocket: %v", models.ErrConnection, err)
	}
	defer ws.Stop()

	subscribed := 0
	for _, symbol := range symbols {
		_, err := ws.OrderbookIncrement(symbol, func(topic, subject string, data *futurespublic.OrderbookIncrementEvent) error {
			sym := strings.TrimPrefix(topic, "/contractMarket/level2:")
			pair, err := pairs.Normalize(sym, Name)
			if err != nil {
				return nil
			}
			side, level, err := parseContractChange(market, pair, data.Change)
			if err != nil {
				log.WithFields(logger.Fields{"symbol": sym}).WithError(err).Warn("dropping malformed level2 change")
				return nil
			}
			book := models.OrderBookMsg{
				Exchange:  Name,
				Market:    market,
				Symbol:    sym,
				Pair:      pair,
				MsgType:   models.L2Event,
				Timestamp: data.Timestamp,
				Snapshot:  false,
			}
			if side == "buy" {
				book.Bids = []models.OrderMsg{level}
			} else {
				book.Asks = []models.OrderMsg{level}
			}
			emit(book)
			return nil
		})
		if err != nil {
			log.WithFields(logger.Fields{"symbol": symbol}).WithError(err).Warn("failed to subscribe")
			continue
		}
		subscribed++
	}
	if subscribed == 0 {
		return fmt.Errorf("%w: kucoin futures level2: no symbol subscribed", models.ErrConnection)
	}

	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	} else {
		<-ctx.Done()
	}
	return nil
}
