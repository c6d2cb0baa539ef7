package binance

import (
	"encoding/json"
	"fmt"
	"strconv"

	"cryptocrawl/internal/pairs"
	"cryptocrawl/internal/quantity"
	"cryptocrawl/models"
)

// Streams arrive wrapped in the combined-stream envelope. Raw payloads from
// single-stream endpoints are accepted too.
type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

func unwrap(raw []byte) []byte {
	var env streamEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 {
		return env.Data
	}
	return raw
}

type parser struct{}

type aggTradeEvent struct {
	Event     string `json:"e"`
	Symbol    string `json:"s"`
	TradeID   int64  `json:"a"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
	Maker     bool   `json:"m"`
}

func (p *parser) ParseTrade(market models.MarketType, raw []byte) ([]models.TradeMsg, error) {
	var evt aggTradeEvent
	if err := json.Unmarshal(unwrap(raw), &evt); err != nil || evt.Event != "aggTrade" {
		return nil, fmt.Errorf("%w: binance trade: unexpected payload", models.ErrMalformedPayload)
	}

	price, err1 := strconv.ParseFloat(evt.Price, 64)
	qty, err2 := strconv.ParseFloat(evt.Quantity, 64)
	if err1 != nil || err2 != nil {
		return nil, fmt.Errorf("%w: binance trade: bad numeric fields", models.ErrMalformedPayload)
	}

	pair, err := pairs.Normalize(evt.Symbol, Name)
	if err != nil {
		return nil, err
	}
	base, quote, contract, err := quantity.Calc(Name, market, pair, price, qty)
	if err != nil {
		return nil, err
	}

	// m=true means the buyer is the maker, so the taker sold.
	side := models.Buy
	if evt.Maker {
		side = models.Sell
	}

	return []models.TradeMsg{{
		Exchange:         Name,
		Market:           market,
		Symbol:           evt.Symbol,
		Pair:             pair,
		MsgType:          models.Trade,
		Timestamp:        evt.TradeTime,
		Price:            price,
		QuantityBase:     base,
		QuantityQuote:    quote,
		QuantityContract: contract,
		Side:             side,
		TradeID:          strconv.FormatInt(evt.TradeID, 10),
	}}, nil
}

type depthEvent struct {
	Event     string     `json:"e"`
	EventTime int64      `json:"E"`
	Symbol    string     `json:"s"`
	Bids      [][]string `json:"b"`
	Asks      [][]string `json:"a"`
}

func (p *parser) ParseL2(market models.MarketType, raw []byte) ([]models.OrderBookMsg, error) {
	var evt depthEvent
	if err := json.Unmarshal(unwrap(raw), &evt); err != nil || evt.Event != "depthUpdate" {
		return nil, fmt.Errorf("%w: binance l2: unexpected payload", models.ErrMalformedPayload)
	}

	pair, err := pairs.Normalize(evt.Symbol, Name)
	if err != nil {
		return nil, err
	}

	asks, err := parseLevels(market, pair, evt.Asks)
	if err != nil {
		return nil, err
	}
	bids, err := parseLevels(market, pair, evt.Bids)
	if err != nil {
		return nil, err
	}

	return []models.OrderBookMsg{{
		Exchange:  Name,
		Market:    market,
		Symbol:    evt.Symbol,
		Pair:      pair,
		MsgType:   models.L2Event,
		Timestamp: evt.EventTime,
		Asks:      asks,
		Bids:      bids,
		// The diff depth stream only ever carries deltas; full books come
		// from the REST snapshot channel.
		Snapshot: false,
	}}, nil
}

func parseLevels(market models.MarketType, pair string, raw [][]string) ([]models.OrderMsg, error) {
	levels := make([]models.OrderMsg, 0, len(raw))
	for _, lv := range raw {
		if len(lv) < 2 {
			return nil, fmt.Errorf("%w: binance l2: short level", models.ErrMalformedPayload)
		}
		price, err1 := strconv.ParseFloat(lv[0], 64)
		qty, err2 := strconv.ParseFloat(lv[1], 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: binance l2: bad level numerics", models.ErrMalformedPayload)
		}
		base, quote, contract, err := quantity.Calc(Name, market, pair, price, qty)
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

type markPriceEvent struct {
	Event       string `json:"e"`
	EventTime   int64  `json:"E"`
	Symbol      string `json:"s"`
	FundingRate string `json:"r"`
	NextFunding int64  `json:"T"`
}

func (p *parser) ParseFundingRate(market models.MarketType, raw []byte) ([]models.FundingRateMsg, error) {
	var evt markPriceEvent
	if err := json.Unmarshal(unwrap(raw), &evt); err != nil || evt.Event != "markPriceUpdate" {
		return nil, fmt.Errorf("%w: binance funding: unexpected payload", models.ErrMalformedPayload)
	}
	rate, err := strconv.ParseFloat(evt.FundingRate, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: binance funding: bad rate", models.ErrMalformedPayload)
	}
	pair, err := pairs.Normalize(evt.Symbol, Name)
	if err != nil {
		return nil, err
	}
	return []models.FundingRateMsg{{
		Exchange:    Name,
		Market:      market,
		Symbol:      evt.Symbol,
		Pair:        pair,
		MsgType:     models.FundingRate,
		Timestamp:   evt.EventTime,
		FundingRate: rate,
		FundingTime: evt.NextFunding,
	}}, nil
}
