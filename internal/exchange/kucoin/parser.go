package kucoin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"cryptocrawl/internal/pairs"
	"cryptocrawl/internal/quantity"
	"cryptocrawl/models"
)

type parser struct{}

// flexNumber decodes numerics the venue serializes as strings on spot and as
// bare numbers on futures.
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(raw []byte) error {
	raw = bytes.Trim(raw, `"`)
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return err
	}
	*f = flexNumber(v)
	return nil
}

type wsMessage struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	Subject string          `json:"subject"`
	Data    json.RawMessage `json:"data"`
}

func decode(raw []byte) (*wsMessage, error) {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Topic == "" || len(msg.Data) == 0 {
		return nil, fmt.Errorf("%w: kucoin: unexpected payload", models.ErrMalformedPayload)
	}
	return &msg, nil
}

func topicSymbol(topic string) string {
	if i := strings.LastIndex(topic, ":"); i >= 0 {
		return topic[i+1:]
	}
	return ""
}

type rawTrade struct {
	Symbol  string     `json:"symbol"`
	Side    string     `json:"side"`
	Size    flexNumber `json:"size"`
	Price   flexNumber `json:"price"`
	TradeID string     `json:"tradeId"`
	Time    string     `json:"time"`
	TS      int64      `json:"ts"`
}

func (p *parser) ParseTrade(market models.MarketType, raw []byte) ([]models.TradeMsg, error) {
	msg, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(msg.Topic, "/market/match:") && !strings.HasPrefix(msg.Topic, "/contractMarket/execution:") {
		return nil, fmt.Errorf("%w: kucoin trade: unexpected topic %q", models.ErrMalformedPayload, msg.Topic)
	}
	var t rawTrade
	if err := json.Unmarshal(msg.Data, &t); err != nil || t.Symbol == "" {
		return nil, fmt.Errorf("%w: kucoin trade: bad data object", models.ErrMalformedPayload)
	}

	// Trade times are nanoseconds, as a string on spot and an integer on
	// futures.
	ns := t.TS
	if ns == 0 {
		if ns, err = strconv.ParseInt(t.Time, 10, 64); err != nil {
			return nil, fmt.Errorf("%w: kucoin trade: bad timestamp", models.ErrMalformedPayload)
		}
	}

	pair, err := pairs.Normalize(t.Symbol, Name)
	if err != nil {
		return nil, err
	}
	base, quote, contract, err := quantity.Calc(Name, market, pair, float64(t.Price), float64(t.Size))
	if err != nil {
		return nil, err
	}
	side := models.Buy
	if t.Side == "sell" {
		side = models.Sell
	}
	return []models.TradeMsg{{
		Exchange:         Name,
		Market:           market,
		Symbol:           t.Symbol,
		Pair:             pair,
		MsgType:          models.Trade,
		Timestamp:        ns / 1_000_000,
		Price:            float64(t.Price),
		QuantityBase:     base,
		QuantityQuote:    quote,
		QuantityContract: contract,
		Side:             side,
		TradeID:          t.TradeID,
	}}, nil
}

type spotL2Data struct {
	Symbol  string `json:"symbol"`
	Time    int64  `json:"time"`
	Changes struct {
		Asks [][]string `json:"asks"`
		Bids [][]string `json:"bids"`
	} `json:"changes"`
}

type contractL2Data struct {
	Sequence  int64  `json:"sequence"`
	Change    string `json:"change"`
	Timestamp int64  `json:"timestamp"`
}

func (p *parser) ParseL2(market models.MarketType, raw []byte) ([]models.OrderBookMsg, error) {
	msg, err := decode(raw)
	if err != nil {
		return nil, err
	}
	symbol := topicSymbol(msg.Topic)
	pair, err := pairs.Normalize(symbol, Name)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.HasPrefix(msg.Topic, "/market/level2:"):
		var data spotL2Data
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: kucoin l2: bad data object", models.ErrMalformedPayload)
		}
		asks, err := parseSpotLevels(market, pair, data.Changes.Asks)
		if err != nil {
			return nil, err
		}
		bids, err := parseSpotLevels(market, pair, data.Changes.Bids)
		if err != nil {
			return nil, err
		}
		return []models.OrderBookMsg{{
			Exchange:  Name,
			Market:    market,
			Symbol:    symbol,
			Pair:      pair,
			MsgType:   models.L2Event,
			Timestamp: data.Time,
			Asks:      asks,
			Bids:      bids,
			Snapshot:  false,
		}}, nil

	case strings.HasPrefix(msg.Topic, "/contractMarket/level2:"):
		var data contractL2Data
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.Change == "" {
			return nil, fmt.Errorf("%w: kucoin l2: bad data object", models.ErrMalformedPayload)
		}
		side, level, err := parseContractChange(market, pair, data.Change)
		if err != nil {
			return nil, err
		}
		book := models.OrderBookMsg{
			Exchange:  Name,
			Market:    market,
			Symbol:    symbol,
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
		return []models.OrderBookMsg{book}, nil
	}
	return nil, fmt.Errorf("%w: kucoin l2: unexpected topic %q", models.ErrMalformedPayload, msg.Topic)
}

// Spot change rows are [price, size, sequence].
func parseSpotLevels(market models.MarketType, pair string, raw [][]string) ([]models.OrderMsg, error) {
	levels := make([]models.OrderMsg, 0, len(raw))
	for _, lv := range raw {
		if len(lv) < 2 {
			return nil, fmt.Errorf("%w: kucoin l2: short level", models.ErrMalformedPayload)
		}
		price, err1 := strconv.ParseFloat(lv[0], 64)
		size, err2 := strconv.ParseFloat(lv[1], 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: kucoin l2: bad level numerics", models.ErrMalformedPayload)
		}
		base, quote, contract, err := quantity.Calc(Name, market, pair, price, size)
		if err != nil {
			return nil, err
		}
		levels = append(levels, models.OrderMsg{
			Price:            price,
			QuantityBase:     base,
			QuantityQuote:    quote,
			QuantityContract: contract,
		})
	}
	return levels, nil
}

// Contract deltas pack one level into "price,side,size".
func parseContractChange(market models.MarketType, pair, change string) (string, models.OrderMsg, error) {
	var side, priceStr, sizeStr string
	for _, part := range strings.Split(change, ",") {
		part = strings.TrimSpace(part)
		switch part {
		case "buy", "sell":
			side = part
		default:
			if priceStr == "" {
				priceStr = part
			} else if sizeStr == "" {
				sizeStr = part
			}
		}
	}
	price, err1 := strconv.ParseFloat(priceStr, 64)
	size, err2 := strconv.ParseFloat(sizeStr, 64)
	if side == "" || err1 != nil || err2 != nil {
		return "", models.OrderMsg{}, fmt.Errorf("%w: kucoin l2: bad change %q", models.ErrMalformedPayload, change)
	}
	base, quote, contract, err := quantity.Calc(Name, market, pair, price, size)
	if err != nil {
		return "", models.OrderMsg{}, err
	}
	return side, models.OrderMsg{
		Price:            price,
		QuantityBase:     base,
		QuantityQuote:    quote,
		QuantityContract: contract,
	}, nil
}

func (p *parser) ParseFundingRate(models.MarketType, []byte) ([]models.FundingRateMsg, error) {
	return nil, fmt.Errorf("%w: kucoin exposes no public funding stream", models.ErrUnsupportedChannel)
}
