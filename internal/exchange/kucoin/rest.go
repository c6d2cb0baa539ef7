package kucoin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"cryptocrawl/internal/exchange"
	"cryptocrawl/models"
)

const (
	spotAPIBase    = "https://api.kucoin.com"
	futuresAPIBase = "https://api-futures.kucoin.com"
)

type restClient struct {
	http *http.Client
}

func newRESTClient() *restClient {
	return &restClient{http: exchange.NewHTTPClient(10 * time.Second)}
}

func apiBase(market models.MarketType) string {
	if market == models.Spot {
		return spotAPIBase
	}
	return futuresAPIBase
}

type bulletResponse struct {
	Code string `json:"code"`
	Data struct {
		Token           string `json:"token"`
		InstanceServers []struct {
			Endpoint string `json:"endpoint"`
		} `json:"instanceServers"`
	} `json:"data"`
}

// bulletPublic trades a REST round trip for a tokenized websocket URL.
func (r *restClient) bulletPublic(ctx context.Context, market models.MarketType) (string, error) {
	u := apiBase(market) + "/api/v1/bullet-public"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrConnection, err)
	}
	res, err := r.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: kucoin bullet-public: %v", models.ErrConnection, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: kucoin bullet-public returned %d", models.ErrConnection, res.StatusCode)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrConnection, err)
	}

	var resp bulletResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: kucoin bullet-public: %v", models.ErrMalformedPayload, err)
	}
	if resp.Code != "200000" || len(resp.Data.InstanceServers) == 0 || resp.Data.Token == "" {
		return "", fmt.Errorf("%w: kucoin bullet-public: code %q", models.ErrProtocol, resp.Code)
	}
	return resp.Data.InstanceServers[0].Endpoint + "?token=" + resp.Data.Token, nil
}

type spotSymbolsResponse struct {
	Code string `json:"code"`
	Data []struct {
		Symbol        string `json:"symbol"`
		EnableTrading bool   `json:"enableTrading"`
	} `json:"data"`
}

type contractsResponse struct {
	Code string `json:"code"`
	Data []struct {
		Symbol    string `json:"symbol"`
		Status    string `json:"status"`
		IsInverse bool   `json:"isInverse"`
	} `json:"data"`
}

func (r *restClient) fetchSymbols(ctx context.Context, market models.MarketType) ([]string, error) {
	if market == models.Spot {
		var resp spotSymbolsResponse
		if err := exchange.GetJSON(ctx, r.http, spotAPIBase+"/api/v2/symbols", &resp); err != nil {
			return nil, fmt.Errorf("%w: kucoin spot symbols: %v", models.ErrDiscovery, err)
		}
		if resp.Code != "200000" {
			return nil, fmt.Errorf("%w: kucoin spot symbols: code %q", models.ErrDiscovery, resp.Code)
		}
		var symbols []string
		for _, s := range resp.Data {
			if s.EnableTrading {
				symbols = append(symbols, s.Symbol)
			}
		}
		return symbols, nil
	}

	var resp contractsResponse
	if err := exchange.GetJSON(ctx, r.http, futuresAPIBase+"/api/v1/contracts/active", &resp); err != nil {
		return nil, fmt.Errorf("%w: kucoin contracts: %v", models.ErrDiscovery, err)
	}
	if resp.Code != "200000" {
		return nil, fmt.Errorf("%w: kucoin contracts: code %q", models.ErrDiscovery, resp.Code)
	}
	var symbols []string
	for _, c := range resp.Data {
		if c.Status != "Open" {
			continue
		}
		if c.IsInverse == (market == models.InverseSwap) {
			symbols = append(symbols, c.Symbol)
		}
	}
	return symbols, nil
}

func (r *restClient) fetchL2Snapshot(ctx context.Context, market models.MarketType, symbol string) ([]byte, error) {
	var u string
	if market == models.Spot {
		u = fmt.Sprintf("%s/api/v1/market/orderbook/level2_100?symbol=%s", spotAPIBase, url.QueryEscape(symbol))
	} else {
		u = fmt.Sprintf("%s/api/v1/level2/snapshot?symbol=%s", futuresAPIBase, url.QueryEscape(symbol))
	}
	return exchange.GetRaw(ctx, r.http, u)
}
