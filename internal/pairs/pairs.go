package pairs

import (
	"fmt"
	"strings"

	"cryptocrawl/models"
)

// Known quote currencies, longest suffix first so USDT wins over USD and BTC
// pairs do not shadow stablecoin pairs.
var quoteCurrencies = []string{
	"USDT", "USDC", "BUSD", "TUSD", "FDUSD", "USDD",
	"USD", "EUR", "KRW", "TRY", "BRL", "DAI",
	"BTC", "ETH", "BNB",
}

// Normalize converts an exchange-native symbol into the canonical
// exchange-independent pair string, e.g. BTCUSDT -> BTC/USDT. It is
// deterministic and idempotent: a string already in canonical form is
// returned unchanged.
func Normalize(symbol, exchange string) (string, error) {
	if symbol == "" {
		return "", fmt.Errorf("%w: empty symbol for %s", models.ErrConfiguration, exchange)
	}
	if strings.Contains(symbol, "/") {
		return strings.ToUpper(symbol), nil
	}

	var pair string
	switch strings.ToLower(exchange) {
	case "binance":
		pair = normalizeBinance(symbol)
	case "huobi":
		pair = normalizeHuobi(symbol)
	case "okx", "okex":
		pair = normalizeOkx(symbol)
	case "bybit":
		pair = splitConcat(strings.ToUpper(symbol))
	case "kucoin":
		pair = normalizeKucoin(symbol)
	case "bithumb":
		pair = dashedPair(symbol)
	default:
		pair = splitConcat(strings.ToUpper(symbol))
	}

	if pair == "" {
		return "", fmt.Errorf("%w: cannot normalize %s symbol %q", models.ErrConfiguration, exchange, symbol)
	}
	return pair, nil
}

func normalizeBinance(symbol string) string {
	symbol = strings.ToUpper(symbol)
	// Delivery symbols look like BTCUSD_PERP or BTCUSD_240628.
	if i := strings.Index(symbol, "_"); i > 0 {
		symbol = symbol[:i]
	}
	return splitConcat(symbol)
}

func normalizeHuobi(symbol string) string {
	symbol = strings.ToUpper(symbol)
	if strings.Contains(symbol, "-") {
		return dashedPair(symbol)
	}
	// Inverse future codes carry a delivery alias (BTC_CQ) or date (BTC210625).
	if i := strings.Index(symbol, "_"); i > 0 {
		return symbol[:i] + "/USD"
	}
	if base := strings.TrimRight(symbol, "0123456789"); base != symbol && base != "" {
		return base + "/USD"
	}
	return splitConcat(symbol)
}

func normalizeOkx(symbol string) string {
	parts := strings.Split(strings.ToUpper(symbol), "-")
	// BTC-USDT, BTC-USDT-SWAP, BTC-USD-210625, BTC-USD-210625-40000-C
	if len(parts) >= 2 {
		return parts[0] + "/" + parts[1]
	}
	return ""
}

func normalizeKucoin(symbol string) string {
	symbol = strings.ToUpper(symbol)
	if strings.Contains(symbol, "-") {
		return dashedPair(symbol)
	}
	// Contract codes end in M (XBTUSDM, XBTUSDTM) and use XBT for BTC.
	symbol = strings.TrimSuffix(symbol, "M")
	if strings.HasPrefix(symbol, "XBT") {
		symbol = "BTC" + symbol[3:]
	}
	return splitConcat(symbol)
}

func dashedPair(symbol string) string {
	parts := strings.Split(strings.ToUpper(symbol), "-")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	return parts[0] + "/" + parts[1]
}

// splitConcat splits a concatenated symbol such as BTCUSDT on a known quote
// currency suffix.
func splitConcat(symbol string) string {
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(symbol, quote) && len(symbol) > len(quote) {
			return symbol[:len(symbol)-len(quote)] + "/" + quote
		}
	}
	return ""
}
