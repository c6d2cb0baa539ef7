package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	bybit "github.com/bybit-exchange/bybit.go.api"

	"cryptocrawl/internal/exchange"
	"cryptocrawl/models"
)

const restAPIBase = "https://api.bybit.com"

type restClient struct {
	sdk  *bybit.Client
	http *http.Client
}

func newRESTClient() *restClient {
	return &restClient{
		sdk:  bybit.NewBybitHttpClient("", "", bybit.WithBaseURL(restAPIBase)),
		http: exchange.NewHTTPClient(10 * time.Second),
	}
}

// category maps a market type onto the v5 product category.
func category(market models.MarketType) (string, error) {
	switch market {
	case models.Spot:
		return "spot", nil
	case models.LinearSwap:
		return "linear", nil
	case models.InverseSwap, models.InverseFuture:
		return "inverse", nil
	}
	return "", fmt.Errorf("%w: bybit does not offer %s", models.ErrUnsupportedMarketType, market)
}

type instrumentsResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []struct {
			Symbol       string `json:"symbol"`
			Status       string `json:"status"`
			ContractType string `json:"contractType"`
		} `json:"list"`
	} `json:"result"`
}

func (r *restClient) fetchSymbols(ctx context.Context, market models.MarketType) ([]string, error) {
	cat, err := category(market)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/v5/market/instruments-info?category=%s&limit=1000", restAPIBase, url.QueryEscape(cat))
	var resp instrumentsResponse
	if err := exchange.GetJSON(ctx, r.http, u, &resp); err != nil {
		return nil, fmt.Errorf("%w: bybit %s instruments: %v", models.ErrDiscovery, market, err)
	}
	if resp.RetCode != 0 {
		return nil, fmt.Errorf("%w: bybit %s instruments: %s", models.ErrDiscovery, market, resp.RetMsg)
	}
	var symbols []string
	for _, inst := range resp.Result.List {
		if inst.Status != "Trading" {
			continue
		}
		// The inverse category mixes perpetuals and delivery futures.
		if market == models.InverseSwap && inst.ContractType != "InversePerpetual" {
			continue
		}
		if market == models.InverseFuture && inst.ContractType != "InverseFutures" {
			continue
		}
		symbols = append(symbols, inst.Symbol)
	}
	return symbols, nil
}

func (r *restClient) fetchL2Snapshot(ctx context.Context, market models.MarketType, symbol string) ([]byte, error) {
	cat, err := category(market)
	if err != nil {
		return nil, err
	}
	params := map[string]interface{}{
		"category": cat,
		"symbol":   symbol,
		"limit":    200,
	}
	resp, err := r.sdk.NewUtaBybitServiceWithParams(params).GetOrderBookInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: bybit orderbook %s: %v", models.ErrConnection, symbol, err)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("%w: bybit orderbook %s: %v", models.ErrMalformedPayload, symbol, err)
	}
	return raw, nil
}
