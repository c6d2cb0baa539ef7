package huobi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"cryptocrawl/internal/exchange"
	"cryptocrawl/models"
)

const (
	spotAPIBase     = "https://api.huobi.pro"
	contractAPIBase = "https://api.hbdm.com"
)

type restClient struct {
	http *http.Client
}

func newRESTClient() *restClient {
	return &restClient{http: exchange.NewHTTPClient(10 * time.Second)}
}

type spotSymbolsResponse struct {
	Status string `json:"status"`
	Data   []struct {
		Symbol string `json:"symbol"`
		State  string `json:"state"`
	} `json:"data"`
}

type contractInfoResponse struct {
	Status string `json:"status"`
	Data   []struct {
		ContractCode   string `json:"contract_code"`
		ContractStatus int    `json:"contract_status"`
	} `json:"data"`
}

func (r *restClient) fetchSymbols(ctx context.Context, market models.MarketType) ([]string, error) {
	if market == models.Spot {
		var resp spotSymbolsResponse
		if err := exchange.GetJSON(ctx, r.http, spotAPIBase+"/v1/common/symbols", &resp); err != nil {
			return nil, fmt.Errorf("%w: huobi spot symbols: %v", models.ErrDiscovery, err)
		}
		if resp.Status != "ok" {
			return nil, fmt.Errorf("%w: huobi spot symbols: status %q", models.ErrDiscovery, resp.Status)
		}
		var symbols []string
		for _, s := range resp.Data {
			if s.State == "online" {
				symbols = append(symbols, s.Symbol)
			}
		}
		return symbols, nil
	}

	path, err := contractInfoPath(market)
	if err != nil {
		return nil, err
	}
	var resp contractInfoResponse
	if err := exchange.GetJSON(ctx, r.http, contractAPIBase+path, &resp); err != nil {
		return nil, fmt.Errorf("%w: huobi %s contracts: %v", models.ErrDiscovery, market, err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("%w: huobi %s contracts: status %q", models.ErrDiscovery, market, resp.Status)
	}
	var symbols []string
	for _, c := range resp.Data {
		if c.ContractStatus == 1 {
			symbols = append(symbols, c.ContractCode)
		}
	}
	return symbols, nil
}

func contractInfoPath(market models.MarketType) (string, error) {
	switch market {
	case models.InverseFuture:
		return "/api/v1/contract_contract_info", nil
	case models.LinearSwap:
		return "/linear-swap-api/v1/swap_contract_info", nil
	case models.InverseSwap:
		return "/swap-api/v1/swap_contract_info", nil
	case models.Option:
		return "/option-api/v1/option_contract_info", nil
	}
	return "", fmt.Errorf("%w: huobi does not offer %s", models.ErrUnsupportedMarketType, market)
}

func (r *restClient) fetchL2Snapshot(ctx context.Context, market models.MarketType, symbol string) ([]byte, error) {
	var u string
	switch market {
	case models.Spot:
		u = fmt.Sprintf("%s/market/depth?symbol=%s&type=step0", spotAPIBase, url.QueryEscape(symbol))
	case models.InverseFuture:
		u = fmt.Sprintf("%s/market/depth?symbol=%s&type=step0", contractAPIBase, url.QueryEscape(symbol))
	case models.LinearSwap:
		u = fmt.Sprintf("%s/linear-swap-ex/market/depth?contract_code=%s&type=step0", contractAPIBase, url.QueryEscape(symbol))
	case models.InverseSwap:
		u = fmt.Sprintf("%s/swap-ex/market/depth?contract_code=%s&type=step0", contractAPIBase, url.QueryEscape(symbol))
	case models.Option:
		u = fmt.Sprintf("%s/option-ex/market/depth?contract_code=%s&type=step0", contractAPIBase, url.QueryEscape(symbol))
	default:
		return nil, fmt.Errorf("%w: huobi does not offer %s", models.ErrUnsupportedMarketType, market)
	}
	return exchange.GetRaw(ctx, r.http, u)
}
