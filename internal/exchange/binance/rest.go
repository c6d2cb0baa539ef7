package binance

import (
	"context"
	"encoding/json"
	"fmt"

	binancesdk "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/delivery"
	"github.com/adshao/go-binance/v2/futures"

	"cryptocrawl/models"
)

// restClient wraps the three public SDK clients: spot, USDT-margined and
// coin-margined. Market data needs no credentials.
type restClient struct {
	spot     *binancesdk.Client
	futures  *futures.Client
	delivery *delivery.Client
}

func newRESTClient() *restClient {
	return &restClient{
		spot:     binancesdk.NewClient("", ""),
		futures:  futures.NewClient("", ""),
		delivery: delivery.NewClient("", ""),
	}
}

func (r *restClient) fetchSymbols(ctx context.Context, market models.MarketType) ([]string, error) {
	switch market {
	case models.Spot:
		info, err := r.spot.NewExchangeInfoService().Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: binance spot exchangeInfo: %v", models.ErrDiscovery, err)
		}
		var symbols []string
		for _, s := range info.Symbols {
			if s.Status == "TRADING" {
				symbols = append(symbols, s.Symbol)
			}
		}
		return symbols, nil

	case models.LinearFuture, models.LinearSwap:
		info, err := r.futures.NewExchangeInfoService().Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: binance futures exchangeInfo: %v", models.ErrDiscovery, err)
		}
		var symbols []string
		for _, s := range info.Symbols {
			if s.Status != "TRADING" {
				continue
			}
			perpetual := s.ContractType == "PERPETUAL"
			if perpetual == (market == models.LinearSwap) {
				symbols = append(symbols, s.Symbol)
			}
		}
		return symbols, nil

	case models.InverseFuture, models.InverseSwap:
		info, err := r.delivery.NewExchangeInfoService().Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: binance delivery exchangeInfo: %v", models.ErrDiscovery, err)
		}
		var symbols []string
		for _, s := range info.Symbols {
			if s.ContractStatus != "TRADING" {
				continue
			}
			perpetual := s.ContractType == "PERPETUAL"
			if perpetual == (market == models.InverseSwap) {
				symbols = append(symbols, s.Symbol)
			}
		}
		return symbols, nil
	}
	return nil, fmt.Errorf("%w: binance does not offer %s", models.ErrUnsupportedMarketType, market)
}

func (r *restClient) fetchL2Snapshot(ctx context.Context, market models.MarketType, symbol string) ([]byte, error) {
	var (
		book interface{}
		err  error
	)
	switch market {
	case models.Spot:
		book, err = r.spot.NewDepthService().Symbol(symbol).Limit(1000).Do(ctx)
	case models.LinearFuture, models.LinearSwap:
		book, err = r.futures.NewDepthService().Symbol(symbol).Limit(1000).Do(ctx)
	case models.InverseFuture, models.InverseSwap:
		book, err = r.delivery.NewDepthService().Symbol(symbol).Limit(1000).Do(ctx)
	default:
		return nil, fmt.Errorf("%w: binance does not offer %s", models.ErrUnsupportedMarketType, market)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: binance depth %s: %v", models.ErrConnection, symbol, err)
	}
	raw, err := json.Marshal(book)
	if err != nil {
		return nil, fmt.Errorf("%w: binance depth %s: %v", models.ErrMalformedPayload, symbol, err)
	}
	return raw, nil
}
