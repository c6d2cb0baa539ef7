package okx

import (
	"encoding/json"
	"fmt"
	"strconv"

	"cryptocrawl/internal/pairs"
	"cryptocrawl/internal/quantity"
	"cryptocrawl/models"
)

type parser struct{}

type wsMessage struct {
	Arg struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

func decode(raw []byte, wantChannel string) (*wsMessage, error) {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Arg.Channel != wantChannel || len(msg.Data) == 0 {
		return nil, fmt.Errorf("%w: okx: expected %s payload", models.ErrMalformedPayload, wantChannel)
	}
	return &msg, nil
}

type rawTrade struct {
	InstID  string `json:"instId"`
	TradeID string `json:"tradeId"`
	Price   string `json:"px"`
	Size    string `json:"sz"`
	Side    string `json:"side"`
	TS      string `json:"ts"`
}

func (p *parser) ParseTrade(market models.MarketType, raw []byte) ([]models.TradeMsg, error) {
	msg, err := decode(raw, "trades")
	if err != nil {
		return nil, err
	}
	var data []rawTrade
	if err := json.Unmarshal(msg.Data, &data); err != nil || len(data) == 0 {
		return nil, fmt.Errorf("%w: okx trade: bad data array", models.ErrMalformedPayload)
	}

	trades := make([]models.TradeMsg, 0, len(data))
	for _, t := range data {
		price, err1 := strconv.ParseFloat(t.Price, 64)
		size, err2 := strconv.ParseFloat(t.Size, 64)
		ts, err3 := strconv.ParseInt(t.TS, 10, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("%w: okx trade: bad numeric fields", models.ErrMalformedPayload)
		}
		pair, err := pairs.Normalize(t.InstID, Name)
		if err != nil {
			return nil, err
		}
		base, quote, contract, err := quantity.Calc(Name, market, pair, price, size)
		if err != nil {
			return nil, err
		}
		side := models.Buy
		if t.Side == "sell" {
			side = models.Sell
		}
		trades = append(trades, models.TradeMsg{
			Exchange:         Name,
			Market:           market,
			Symbol:           t.InstID,
			Pair:             pair,
			MsgType:          models.Trade,
			Timestamp:        ts,
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
	Asks [][]string `json:"asks"`
	Bids [][]string `json:"bids"`
	TS   string     `json:"ts"`
}

func (p *parser) ParseL2(market models.MarketType, raw []byte) ([]models.OrderBookMsg, error) {
	msg, err := decode(raw, "books")
	if err != nil {
		return nil, err
	}
	var data []rawBook
	if err := json.Unmarshal(msg.Data, &data); err != nil || len(data) == 0 {
		return nil, fmt.Errorf("%w: okx l2: bad data array", models.ErrMalformedPayload)
	}
	pair, err := pairs.Normalize(msg.Arg.InstID, Name)
	if err != nil {
		return nil, err
	}

	books := make([]models.OrderBookMsg, 0, len(data))
	for _, b := range data {
		ts, err := strconv.ParseInt(b.TS, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: okx l2: bad timestamp", models.ErrMalformedPayload)
		}
		asks, err := parseLevels(market, pair, b.Asks)
		if err != nil {
			return nil, err
		}
		bids, err := parseLevels(market, pair, b.Bids)
		if err != nil {
			return nil, err
		}
		books = append(books, models.OrderBookMsg{
			Exchange:  Name,
			Market:    market,
			Symbol:    msg.Arg.InstID,
			Pair:      pair,
			MsgType:   models.L2Event,
			Timestamp: ts,
			Asks:      asks,
			Bids:      bids,
			// The venue labels the first frame "snapshot" and the rest
			// "update".
			Snapshot: msg.Action == "snapshot",
		})
	}
	return books, nil
}

// Book levels are [price, size, liquidated orders, order count]; only the
// first two matter here.
func parseLevels(market models.MarketType, pair string, raw [][]string) ([]models.OrderMsg, error) {
	levels := make([]models.OrderMsg, 0, len(raw))
	for _, lv := range raw {
		if len(lv) < 2 {
			return nil, fmt.Errorf("%w: okx l2: short level", models.ErrMalformedPayload)
		}
		price, err1 := strconv.ParseFloat(lv[0], 64)
		size, err2 := strconv.ParseFloat(lv[1], 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: okx l2: bad level numerics", models.ErrMalformedPayload)
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

type rawFunding struct {
	InstID      string `json:"instId"`
	FundingRate string `json:"fundingRate"`
	FundingTime string `json:"fundingTime"`
}

func (p *parser) ParseFundingRate(market models.MarketType, raw []byte) ([]models.FundingRateMsg, error) {
	msg, err := decode(raw, "funding-rate")
	if err != nil {
		return nil, err
	}
	var data []rawFunding
	if err := json.Unmarshal(msg.Data, &data); err != nil || len(data) == 0 {
		return nil, fmt.Errorf("%w: okx funding: bad data array", models.ErrMalformedPayload)
	}

	rates := make([]models.FundingRateMsg, 0, len(data))
	for _, f := range data {
		rate, err1 := strconv.ParseFloat(f.FundingRate, 64)
		ft, err2 := strconv.ParseInt(f.FundingTime, 10, 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: okx funding: bad numeric fields", models.ErrMalformedPayload)
		}
		pair, err := pairs.Normalize(f.InstID, Name)
		if err != nil {
			return nil, err
		}
		rates = append(rates, models.FundingRateMsg{
			Exchange:    Name,
			Market:      market,
			Symbol:      f.InstID,
			Pair:        pair,
			MsgType:     models.FundingRate,
			Timestamp:   ft,
			FundingRate: rate,
			FundingTime: ft,
		})
	}
	return rates, nil
}
