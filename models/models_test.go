package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseMarketType(t *testing.T) {
	cases := map[string]MarketType{
		"spot":           Spot,
		"SPOT":           Spot,
		" linear_swap ":  LinearSwap,
		"inverse_future": InverseFuture,
		"option":         Option,
	}
	for in, want := range cases {
		got, err := ParseMarketType(in)
		if err != nil || got != want {
			t.Errorf("ParseMarketType(%q) = %v, %v; want %v", in, got, err, want)
		}
	}

	if _, err := ParseMarketType("margin"); !errors.Is(err, ErrUnsupportedMarketType) {
		t.Errorf("err = %v, want ErrUnsupportedMarketType", err)
	}
}

func TestMarketTypeProperties(t *testing.T) {
	if Spot.IsContract() {
		t.Error("spot is not a contract market")
	}
	if !InverseSwap.IsInverse() || !InverseFuture.IsInverse() {
		t.Error("inverse markets must report inverse")
	}
	if LinearSwap.IsInverse() {
		t.Error("linear swap is not inverse")
	}
	if !LinearSwap.IsSwap() || InverseFuture.IsSwap() {
		t.Error("swap detection wrong")
	}
}

func TestParseMessageType(t *testing.T) {
	got, err := ParseMessageType("L2_Event")
	if err != nil || got != L2Event {
		t.Fatalf("ParseMessageType = %v, %v", got, err)
	}
	if _, err := ParseMessageType("ticker"); !errors.Is(err, ErrUnsupportedChannel) {
		t.Errorf("err = %v, want ErrUnsupportedChannel", err)
	}
}

func TestMessageJSONShape(t *testing.T) {
	msg := NewMessage("okx", LinearSwap, "BTC-USDT-SWAP", "BTC/USDT", Trade, 1622378000000, []byte(`{"px":"1"}`))
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"exchange", "market_type", "symbol", "pair", "msg_type", "timestamp", "raw"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing %q in envelope JSON", key)
		}
	}
	if string(decoded["raw"]) != `{"px":"1"}` {
		t.Errorf("raw = %s, want embedded JSON, not a quoted string", decoded["raw"])
	}
}
