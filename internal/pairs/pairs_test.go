package pairs

import (
	"errors"
	"testing"

	"cryptocrawl/models"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		exchange string
		symbol   string
		want     string
	}{
		{"binance", "BTCUSDT", "BTC/USDT"},
		{"binance", "btcusdt", "BTC/USDT"},
		{"binance", "BTCUSD_PERP", "BTC/USD"},
		{"binance", "ETHUSD_240628", "ETH/USD"},
		{"huobi", "btcusdt", "BTC/USDT"},
		{"huobi", "BTC_CQ", "BTC/USD"},
		{"huobi", "BTC210625", "BTC/USD"},
		{"huobi", "BTC-USDT", "BTC/USDT"},
		{"okx", "BTC-USDT", "BTC/USDT"},
		{"okx", "BTC-USDT-SWAP", "BTC/USDT"},
		{"okx", "BTC-USD-210625-40000-C", "BTC/USD"},
		{"bybit", "BTCUSDT", "BTC/USDT"},
		{"bybit", "BTCUSD", "BTC/USD"},
		{"kucoin", "BTC-USDT", "BTC/USDT"},
		{"kucoin", "XBTUSDM", "BTC/USD"},
		{"kucoin", "XBTUSDTM", "BTC/USDT"},
		{"bithumb", "BTC-USDT", "BTC/USDT"},
	}
	for _, tc := range cases {
		got, err := Normalize(tc.symbol, tc.exchange)
		if err != nil {
			t.Fatalf("Normalize(%q, %q): %v", tc.symbol, tc.exchange, err)
		}
		if got != tc.want {
			t.Errorf("Normalize(%q, %q) = %q, want %q", tc.symbol, tc.exchange, got, tc.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	first, err := Normalize("BTC-USDT-SWAP", "okx")
	if err != nil {
		t.Fatal(err)
	}
	second, err := Normalize(first, "okx")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("not idempotent: %q -> %q", first, second)
	}
}

func TestNormalizeUnknown(t *testing.T) {
	if _, err := Normalize("???", "binance"); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
	if _, err := Normalize("", "okx"); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for empty symbol, got %v", err)
	}
}
