package quantity

import (
	"fmt"
	"strings"

	"cryptocrawl/models"
)

// Explicit contract value entries keyed by exchange.market.pair. Values are
// base-currency units for linear contracts and quote-currency (USD) units for
// inverse contracts.
var contractValues = map[string]float64{
	"okx.linear_swap.BTC/USDT":   0.01,
	"okx.linear_swap.ETH/USDT":   0.1,
	"okx.linear_future.BTC/USDT": 0.01,
	"okx.linear_future.ETH/USDT": 0.1,

	"kucoin.linear_swap.BTC/USDT": 0.001,
	"kucoin.linear_swap.ETH/USDT": 0.01,

	"bybit.inverse_swap.BTC/USD":   1,
	"bybit.inverse_swap.ETH/USD":   1,
	"bybit.inverse_future.BTC/USD": 1,

	"kucoin.inverse_swap.BTC/USD": 1,
}

// ContractValue returns the fixed notional value of one contract for the
// given instrument.
func ContractValue(exchange string, market models.MarketType, pair string) (float64, error) {
	if !market.IsContract() {
		return 0, fmt.Errorf("%w: %s is not a contract market", models.ErrConfiguration, market)
	}
	key := fmt.Sprintf("%s.%s.%s", strings.ToLower(exchange), market, pair)
	if v, ok := contractValues[key]; ok {
		return v, nil
	}
	if market.IsInverse() {
		// Venue convention for inverse contracts: 100 USD for BTC, 10 USD
		// for everything else (okx, huobi).
		if strings.HasPrefix(pair, "BTC/") {
			return 100, nil
		}
		return 10, nil
	}
	// Linear contracts and options default to sizes reported in base units.
	return 1, nil
}

// Calc derives base, quote and contract quantities from the raw quantity an
// exchange reports for one price level or trade.
//
// Non-contract markets treat qty as a base amount and derive quote as
// price*base. Contract markets treat qty as a contract count: linear
// contracts convert through a base-unit contract value, inverse contracts
// through a quote-unit value, and the remaining leg is back-derived via the
// price.
func Calc(exchange string, market models.MarketType, pair string, price, qty float64) (base, quote float64, contract *float64, err error) {
	if !market.IsContract() {
		return qty, price * qty, nil, nil
	}

	cv, err := ContractValue(exchange, market, pair)
	if err != nil {
		return 0, 0, nil, err
	}
	count := qty
	if market.IsInverse() {
		quote = count * cv
		if price != 0 {
			base = quote / price
		}
	} else {
		base = count * cv
		quote = base * price
	}
	return base, quote, &count, nil
}
