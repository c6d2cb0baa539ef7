package okx

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"cryptocrawl/internal/exchange"
	"cryptocrawl/models"
)

const restAPIBase = "https://www.okx.com"

type restClient struct {
	http *http.Client
}

func newRESTClient() *restClient {
	return &restClient{http: exchange.NewHTTPClient(10 * time.Second)}
}

type instrumentsResponse struct {
	Code string `json:"code"`
	Data []struct {
		InstID string `json:"instId"`
		CtType string `json:"ctType"`
		State  string `json:"state"`
	} `json:"data"`
}

func (r *restClient) fetchSymbols(ctx context.Context, market models.MarketType) ([]string, error) {
	if market == models.Option {
		return r.fetchOptionSymbols(ctx)
	}

	var instType, ctType string
	switch market {
	case models.Spot:
		instType = "SPOT"
	case models.LinearFuture:
		instType, ctType = "FUTURES", "linear"
	case models.InverseFuture:
		instType, ctType = "FUTURES", "inverse"
	case models.LinearSwap:
		instType, ctType = "SWAP", "linear"
	case models.InverseSwap:
		instType, ctType = "SWAP", "inverse"
	default:
		return nil, fmt.Errorf("%w: okx does not offer %s", models.ErrUnsupportedMarketType, market)
	}

	u := fmt.Sprintf("%s/api/v5/public/instruments?instType=%s", restAPIBase, instType)
	var resp instrumentsResponse
	if err := exchange.GetJSON(ctx, r.http, u, &resp); err != nil {
		return nil, fmt.Errorf("%w: okx %s instruments: %v", models.ErrDiscovery, market, err)
	}
	if resp.Code != "0" {
		return nil, fmt.Errorf("%w: okx %s instruments: code %s", models.ErrDiscovery, market, resp.Code)
	}
	var symbols []string
	for _, inst := range resp.Data {
		if inst.State != "live" {
			continue
		}
		if ctType != "" && inst.CtType != ctType {
			continue
		}
		symbols = append(symbols, inst.InstID)
	}
	return symbols, nil
}

// Option instruments are listed per underlying, so discovery walks the
// underlying index first.
func (r *restClient) fetchOptionSymbols(ctx context.Context) ([]string, error) {
	var ulyResp struct {
		Code string     `json:"code"`
		Data [][]string `json:"data"`
	}
	u := restAPIBase + "/api/v5/public/underlying?instType=OPTION"
	if err := exchange.GetJSON(ctx, r.http, u, &ulyResp); err != nil {
		return nil, fmt.Errorf("%w: okx option underlyings: %v", models.ErrDiscovery, err)
	}
	if ulyResp.Code != "0" || len(ulyResp.Data) == 0 {
		return nil, fmt.Errorf("%w: okx option underlyings: empty response", models.ErrDiscovery)
	}

	var symbols []string
	for _, uly := range ulyResp.Data[0] {
		iu := fmt.Sprintf("%s/api/v5/public/instruments?instType=OPTION&uly=%s", restAPIBase, url.QueryEscape(uly))
		var resp instrumentsResponse
		if err := exchange.GetJSON(ctx, r.http, iu, &resp); err != nil {
			return nil, fmt.Errorf("%w: okx option instruments %s: %v", models.ErrDiscovery, uly, err)
		}
		for _, inst := range resp.Data {
			if inst.State == "live" {
				symbols = append(symbols, inst.InstID)
			}
		}
	}
	return symbols, nil
}

func (r *restClient) fetchL2Snapshot(ctx context.Context, _ models.MarketType, symbol string) ([]byte, error) {
	u := fmt.Sprintf("%s/api/v5/market/books?instId=%s&sz=400", restAPIBase, url.QueryEscape(symbol))
	return exchange.GetRaw(ctx, r.http, u)
}
