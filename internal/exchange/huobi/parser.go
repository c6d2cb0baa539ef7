package huobi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"cryptocrawl/internal/pairs"
	"cryptocrawl/internal/quantity"
	"cryptocrawl/models"
)

type parser struct{}

// channelSymbol pulls the instrument out of a channel path such as
// market.btcusdt.trade.detail or market.BTC-USDT.depth.step0.
func channelSymbol(ch string) (string, error) {
	parts := strings.Split(ch, ".")
	if len(parts) < 3 || parts[0] != "market" {
		return "", fmt.Errorf("%w: huobi: unexpected channel %q", models.ErrMalformedPayload, ch)
	}
	return parts[1], nil
}

type tradeMessage struct {
	Channel string `json:"ch"`
	Tick    struct {
		Data []struct {
			TradeID   int64   `json:"tradeId"`
			Timestamp int64   `json:"ts"`
			Amount    float64 `json:"amount"`
			Price     float64 `json:"price"`
			Direction string  `json:"direction"`
		} `json:"data"`
	} `json:"tick"`
}

func (p *parser) ParseTrade(market models.MarketType, raw []byte) ([]models.TradeMsg, error) {
	var msg tradeMessage
	if err := json.Unmarshal(raw, &msg); err != nil || !strings.Contains(msg.Channel, ".trade.") {
		return nil, fmt.Errorf("%w: huobi trade: unexpected payload", models.ErrMalformedPayload)
	}
	symbol, err := channelSymbol(msg.Channel)
	if err != nil {
		return nil, err
	}
	pair, err := pairs.Normalize(symbol, Name)
	if err != nil {
		return nil, err
	}

	trades := make([]models.TradeMsg, 0, len(msg.Tick.Data))
	for _, t := range msg.Tick.Data {
		base, quote, contract, err := quantity.Calc(Name, market, pair, t.Price, t.Amount)
		if err != nil {
			return nil, err
		}
		side := models.Buy
		if t.Direction == "sell" {
			side = models.Sell
		}
		trades = append(trades, models.TradeMsg{
			Exchange:         Name,
			Market:           market,
			Symbol:           symbol,
			Pair:             pair,
			MsgType:          models.Trade,
			Timestamp:        t.Timestamp,
			Price:            t.Price,
			QuantityBase:     base,
			QuantityQuote:    quote,
			QuantityContract: contract,
			Side:             side,
			TradeID:          strconv.FormatInt(t.TradeID, 10),
		})
	}
	if len(trades) == 0 {
		return nil, fmt.Errorf("%w: huobi trade: empty tick", models.ErrMalformedPayload)
	}
	return trades, nil
}

type depthMessage struct {
	Channel   string `json:"ch"`
	Timestamp int64  `json:"ts"`
	Tick      struct {
		Bids [][]float64 `json:"bids"`
		Asks [][]float64 `json:"asks"`
	} `json:"tick"`
}

// ParseL2 handles both spot mbp.refresh and contract depth.step0 frames. Both
// carry full books, so every message is a snapshot.
func (p *parser) ParseL2(market models.MarketType, raw []byte) ([]models.OrderBookMsg, error) {
	var msg depthMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: huobi l2: unexpected payload", models.ErrMalformedPayload)
	}
	if !strings.Contains(msg.Channel, ".mbp.") && !strings.Contains(msg.Channel, ".depth.") {
		return nil, fmt.Errorf("%w: huobi l2: unexpected channel %q", models.ErrMalformedPayload, msg.Channel)
	}
	symbol, err := channelSymbol(msg.Channel)
	if err != nil {
		return nil, err
	}
	pair, err := pairs.Normalize(symbol, Name)
	if err != nil {
		return nil, err
	}

	asks, err := parseLevels(market, pair, msg.Tick.Asks)
	if err != nil {
		return nil, err
	}
	bids, err := parseLevels(market, pair, msg.Tick.Bids)
	if err != nil {
		return nil, err
	}
	return []models.OrderBookMsg{{
		Exchange:  Name,
		Market:    market,
		Symbol:    symbol,
		Pair:      pair,
		MsgType:   models.L2Event,
		Timestamp: msg.Timestamp,
		Asks:      asks,
		Bids:      bids,
		Snapshot:  true,
	}}, nil
}

func parseLevels(market models.MarketType, pair string, raw [][]float64) ([]models.OrderMsg, error) {
	levels := make([]models.OrderMsg, 0, len(raw))
	for _, lv := range raw {
		if len(lv) < 2 {
			return nil, fmt.Errorf("%w: huobi l2: short level", models.ErrMalformedPayload)
		}
		base, quote, contract, err := quantity.Calc(Name, market, pair, lv[0], lv[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, models.OrderMsg{
			Price:            lv[0],
			QuantityBase:     base,
			QuantityQuote:    quote,
			QuantityContract: contract,
		})
	}
	return levels, nil
}

func (p *parser) ParseFundingRate(models.MarketType, []byte) ([]models.FundingRateMsg, error) {
	return nil, fmt.Errorf("%w: huobi exposes no public funding stream", models.ErrUnsupportedChannel)
}
