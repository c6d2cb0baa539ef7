package bithumb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"cryptocrawl/internal/exchange"
	"cryptocrawl/models"
)

const restAPIBase = "https://global-openapi.bithumb.pro/openapi/v1"

type restClient struct {
	http *http.Client
}

func newRESTClient() *restClient {
	return &restClient{http: exchange.NewHTTPClient(10 * time.Second)}
}

type spotConfigResponse struct {
	Code string `json:"code"`
	Data struct {
		SpotConfig []struct {
			Symbol string `json:"symbol"`
		} `json:"spotConfig"`
	} `json:"data"`
}

func (r *restClient) fetchSymbols(ctx context.Context) ([]string, error) {
	var resp spotConfigResponse
	if err := exchange.GetJSON(ctx, r.http, restAPIBase+"/spot/config", &resp); err != nil {
		return nil, fmt.Errorf("%w: bithumb spot config: %v", models.ErrDiscovery, err)
	}
	if resp.Code != "0" {
		return nil, fmt.Errorf("%w: bithumb spot config: code %q", models.ErrDiscovery, resp.Code)
	}
	var symbols []string
	for _, s := range resp.Data.SpotConfig {
		if s.Symbol != "" {
			symbols = append(symbols, s.Symbol)
		}
	}
	return symbols, nil
}

func (r *restClient) fetchL2Snapshot(ctx context.Context, symbol string) ([]byte, error) {
	u := fmt.Sprintf("%s/spot/orderBook?symbol=%s", restAPIBase, url.QueryEscape(symbol))
	return exchange.GetRaw(ctx, r.http, u)
}
