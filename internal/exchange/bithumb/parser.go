package bithumb

import (
	"encoding/json"
	"fmt"
	"strconv"

	"cryptocrawl/internal/pairs"
	"cryptocrawl/internal/quantity"
	"cryptocrawl/models"
)

// Message codes on the realtime feed: 00006 marks the full payload sent on
// subscribe, 00007 marks incremental updates.
const (
	codeSnapshot = "00006"
	codeUpdate   = "00007"
)

type parser struct{}

type wsMessage struct {
	Code      string          `json:"code"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	Topic     string          `json:"topic"`
}

func decode(raw []byte, wantTopic string) (*wsMessage, error) {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Topic != wantTopic || len(msg.Data) == 0 {
		return nil, fmt.Errorf("%w: bithumb: expected %s payload", models.ErrMalformedPayload, wantTopic)
	}
	if msg.Code != codeSnapshot && msg.Code != codeUpdate {
		return nil, fmt.Errorf("%w: bithumb: unknown code %q", models.ErrMalformedPayload, msg.Code)
	}
	return &msg, nil
}

type rawTrade struct {
	Price  string `json:"p"`
	Side   string `json:"s"`
	Symbol string `json:"symbol"`
	Time   string `json:"t"`
	Volume string `json:"v"`
}

func (p *parser) ParseTrade(market models.MarketType, raw []byte) ([]models.TradeMsg, error) {
	msg, err := decode(raw, "TRADE")
	if err != nil {
		return nil, err
	}

	// The snapshot sent on subscribe is an array of recent trades; updates
	// are single objects.
	var data []rawTrade
	if msg.Code == codeSnapshot {
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: bithumb trade: bad snapshot array", models.ErrMalformedPayload)
		}
	} else {
		var one rawTrade
		if err := json.Unmarshal(msg.Data, &one); err != nil {
			return nil, fmt.Errorf("%w: bithumb trade: bad data object", models.ErrMalformedPayload)
		}
		data = []rawTrade{one}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: bithumb trade: empty payload", models.ErrMalformedPayload)
	}

	trades := make([]models.TradeMsg, 0, len(data))
	for _, t := range data {
		price, err1 := strconv.ParseFloat(t.Price, 64)
		vol, err2 := strconv.ParseFloat(t.Volume, 64)
		seconds, err3 := strconv.ParseInt(t.Time, 10, 64)
		if err1 != nil || err2 != nil || err3 != nil || t.Symbol == "" {
			return nil, fmt.Errorf("%w: bithumb trade: bad fields", models.ErrMalformedPayload)
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
		if t.Side == "sell" {
			side = models.Sell
		}
		ts := seconds * 1000
		trades = append(trades, models.TradeMsg{
			Exchange:         Name,
			Market:           market,
			Symbol:           t.Symbol,
			Pair:             pair,
			MsgType:          models.Trade,
			Timestamp:        ts,
			Price:            price,
			QuantityBase:     base,
			QuantityQuote:    quote,
			QuantityContract: contract,
			Side:             side,
			// The feed assigns no trade identifiers; the timestamp is the
			// closest stable stand-in.
			TradeID: strconv.FormatInt(ts, 10),
		})
	}
	return trades, nil
}

type rawBook struct {
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"s"`
	Symbol string     `json:"symbol"`
}

func (p *parser) ParseL2(market models.MarketType, raw []byte) ([]models.OrderBookMsg, error) {
	msg, err := decode(raw, "ORDERBOOK")
	if err != nil {
		return nil, err
	}
	var book rawBook
	if err := json.Unmarshal(msg.Data, &book); err != nil || book.Symbol == "" {
		return nil, fmt.Errorf("%w: bithumb l2: bad data object", models.ErrMalformedPayload)
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
		Timestamp: msg.Timestamp,
		Asks:      asks,
		Bids:      bids,
		Snapshot:  msg.Code == codeSnapshot,
	}}, nil
}

func parseLevels(market models.MarketType, pair string, raw [][]string) ([]models.OrderMsg, error) {
	levels := make([]models.OrderMsg, 0, len(raw))
	for _, lv := range raw {
		if len(lv) < 2 {
			return nil, fmt.Errorf("%w: bithumb l2: short level", models.ErrMalformedPayload)
		}
		price, err1 := strconv.ParseFloat(lv[0], 64)
		vol, err2 := strconv.ParseFloat(lv[1], 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: bithumb l2: bad level numerics", models.ErrMalformedPayload)
		}
		base, quote, contract, err := quantity.Calc(Name, market, pair, price, vol)
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

func (p *parser) ParseFundingRate(models.MarketType, []byte) ([]models.FundingRateMsg, error) {
	return nil, fmt.Errorf("%w: bithumb lists no derivative markets", models.ErrUnsupportedChannel)
}
