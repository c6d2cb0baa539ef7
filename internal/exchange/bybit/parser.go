package bybit

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

type wsMessage struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	TS    int64           `json:"ts"`
	Data  json.RawMessage `json:"data"`
}

func decode(raw []byte, wantTopic string) (*wsMessage, error) {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil || !strings.HasPrefix(msg.Topic, wantTopic) || len(msg.Data) == 0 {
		return nil, fmt.Errorf("%w: bybit: expected %s payload", models.ErrMalformedPayload, wantTopic)
	}
	return &msg, nil
}

type rawTrade struct {
	Timestamp int64  `json:"T"`
	Symbol    string `json:"s"`
	Side      string `json:"S"`
	Volume    string `json:"v"`
	Price     string `json:"p"`
	TradeID   string `json:"i"`
}

func (p *parser) ParseTrade(market models.MarketType, raw []byte) ([]models.TradeMsg, error) {
	msg, err := decode(raw, "publicTrade.")
	if err != nil {
		return nil, err
	}
	var data []rawTrade
	if err := json.Unmarshal(msg.Data, &data); err != nil || len(data) == 0 {
		return nil, fmt.Errorf("%w: bybit trade: bad data array", models.ErrMalformedPayload)
	}

	trades := make([]models.TradeMsg, 0, len(data))
	for _, t := range data {
		price, err1 := strconv.ParseFloat(t.Price, 64)
		vol, err2 := strconv.ParseFloat(t.Volume, 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: bybit trade: bad numeric fields", models.ErrMalformedPayload)
		}
		pair, err := pairs.Normalize(t.Symbol, Name)
		if err != nil {
			return nil, err
		}
		base, quote, contract, err := quantity.Calc(Name, market, pair, price, vol)
		if err != nil {
			return nil, err
		}
		side := models.Buy
		if t.Side == "Sell" {
			side = models.Sell
		}
		trades = append(trades, models.TradeMsg{
			Exchange:         Name,
			Market:           market,
			Symbol:           t.Symbol,
			Pair:             pair,
			MsgType:          models.Trade,
			Timestamp:        t.Timestamp,
			Price:            price,
			QuantityBase:     base,
			QuantityQuote:    quote,
			QuantityContract: contract,
			Side:             side,
			TradeID:          t.TradeID,
		})
	}
	return trades, nil
}

type rawBook struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
}

func (p *parser) ParseL2(market models.MarketType, raw []byte) ([]models.OrderBookMsg, error) {
	msg, err := decode(raw, "orderbook.")
	if err != nil {
		return nil, err
	}
	var book rawBook
	if err := json.Unmarshal(msg.Data, &book); err != nil || book.Symbol == "" {
		return nil, fmt.Errorf("%w: bybit l2: bad data object", models.ErrMalformedPayload)
	}
	pair, err := pairs.Normalize(book.Symbol, Name)
	if err != nil {
		return nil, err
	}
	asks, err := parseLevels(market, pair, book.Asks)
	if err != nil {
		return nil, err
	}
	bids, err := parseLevels(market, pair, book.Bids)
	if err != nil {
		return nil, err
	}
	return []models.OrderBookMsg{{
		Exchange:  Name,
		Market:    market,
		Symbol:    book.Symbol,
		Pair:      pair,
		MsgType:   models.L2Event,
		Timestamp: msg.TS,
		Asks:      asks,
		Bids:      bids,
		Snapshot:  msg.Type == "snapshot",
	}}, nil
}

func parseLevels(market models.MarketType, pair string, raw [][]string) ([]models.OrderMsg, error) {
	levels := make([]models.OrderMsg, 0, len(raw))
	for _, lv := range raw {
		if len(lv) < 2 {
			return nil, fmt.Errorf("%w: bybit l2: short level", models.ErrMalformedPayload)
		}
		price, err1 := strconv.ParseFloat(lv[0], 64)
		size, err2 := strconv.ParseFloat(lv[1], 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: bybit l2: bad level numerics", models.ErrMalformedPayload)
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

type rawTicker struct {
	Symbol          string `json:"symbol"`
	FundingRate     string `json:"fundingRate"`
	NextFundingTime string `json:"nextFundingTime"`
}

// ParseFundingRate reads the tickers topic. Delta frames without a funding
// field parse to an empty batch.
func (p *parser) ParseFundingRate(market models.MarketType, raw []byte) ([]models.FundingRateMsg, error) {
	msg, err := decode(raw, "tickers.")
	if err != nil {
		return nil, err
	}
	var tick rawTicker
	if err := json.Unmarshal(msg.Data, &tick); err != nil || tick.Symbol == "" {
		return nil, fmt.Errorf("%w: bybit ticker: bad data object", models.ErrMalformedPayload)
	}
	if tick.FundingRate == "" {
		return nil, nil
	}
	rate, err := strconv.ParseFloat(tick.FundingRate, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bybit ticker: bad funding rate", models.ErrMalformedPayload)
	}
	var fundingTime int64
	if tick.NextFundingTime != "" {
		if fundingTime, err = strconv.ParseInt(tick.NextFundingTime, 10, 64); err != nil {
			return nil, fmt.Errorf("%w: bybit ticker: bad funding time", models.ErrMalformedPayload)
		}
	}
	pair, err := pairs.Normalize(tick.Symbol, Name)
	if err != nil {
		return nil, err
	}
	return []models.FundingRateMsg{{
		Exchange:    Name,
		Market:      market,
		Symbol:      tick.Symbol,
		Pair:        pair,
		MsgType:     models.FundingRate,
		Timestamp:   msg.TS,
		FundingRate: rate,
		FundingTime: fundingTime,
	}}, nil
}
