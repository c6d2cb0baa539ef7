package bithumb

import (
	"errors"
	"math"
	"testing"

	"cryptocrawl/models"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestParseTradeUpdate(t *testing.T) {
	raw := []byte(`{"code":"00007","data":{"p":"35000","s":"sell","symbol":"BTC-USDT","t":"1622376000","v":"0.04"},"timestamp":1622376000123,"topic":"TRADE"}`)

	trades, err := (&parser{}).ParseTrade(models.Spot, raw)
	if err != nil {
		t.Fatalf("ParseTrade: %v", err)
	}
	tr := trades[0]
	if tr.Pair != "BTC/USDT" {
		t.Errorf("pair = %q", tr.Pair)
	}
	if tr.Side != models.Sell {
		t.Errorf("side = %q", tr.Side)
	}
	if tr.Timestamp != 1622376000000 {
		t.Errorf("timestamp = %d, want seconds scaled to ms", tr.Timestamp)
	}
	if tr.TradeID != "1622376000000" {
		t.Errorf("trade id = %q", tr.TradeID)
	}
	if !approx(tr.QuantityQuote, 0.04*35000) {
		t.Errorf("quote = %v", tr.QuantityQuote)
	}
}

func TestParseTradeSnapshotArray(t *testing.T) {
	raw := []byte(`{"code":"00006","data":[{"p":"35000","s":"buy","symbol":"BTC-USDT","t":"1622376001","v":"0.1"},{"p":"35001","s":"sell","symbol":"BTC-USDT","t":"1622376002","v":"0.2"}],"timestamp":1622376002500,"topic":"TRADE"}`)

	trades, err := (&parser{}).ParseTrade(models.Spot, raw)
	if err != nil {
		t.Fatalf("ParseTrade: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("got %d trades, want the full snapshot batch", len(trades))
	}
	if trades[0].Side != models.Buy || trades[1].Side != models.Sell {
		t.Errorf("sides = %q/%q", trades[0].Side, trades[1].Side)
	}
}

func TestParseL2SnapshotFlagFollowsCode(t *testing.T) {
	snapshot := []byte(`{"code":"00006","data":{"b":[["34999","0.5"]],"s":[["35001","0.7"]],"symbol":"BTC-USDT","ver":"1"},"timestamp":1622376003000,"topic":"ORDERBOOK"}`)
	update := []byte(`{"code":"00007","data":{"b":[],"s":[["35001","0"]],"symbol":"BTC-USDT","ver":"2"},"timestamp":1622376004000,"topic":"ORDERBOOK"}`)

	books, err := (&parser{}).ParseL2(models.Spot, snapshot)
	if err != nil {
		t.Fatalf("ParseL2 snapshot: %v", err)
	}
	if !books[0].Snapshot {
		t.Error("code 00006 must map to a snapshot")
	}
	if !approx(books[0].Asks[0].QuantityBase, 0.7) {
		t.Errorf("ask base = %v", books[0].Asks[0].QuantityBase)
	}

	books, err = (&parser{}).ParseL2(models.Spot, update)
	if err != nil {
		t.Fatalf("ParseL2 update: %v", err)
	}
	if books[0].Snapshot {
		t.Error("code 00007 must map to a delta")
	}
}

func TestParseRejectsUnknownCode(t *testing.T) {
	raw := []byte(`{"code":"00009","data":{"p":"35000","s":"buy","symbol":"BTC-USDT","t":"1622376000","v":"0.04"},"topic":"TRADE"}`)
	if _, err := (&parser{}).ParseTrade(models.Spot, raw); !errors.Is(err, models.ErrMalformedPayload) {
		t.Errorf("trade err = %v, want ErrMalformedPayload", err)
	}
	book := []byte(`{"code":"00009","data":{"b":[],"s":[],"symbol":"BTC-USDT"},"topic":"ORDERBOOK"}`)
	if _, err := (&parser{}).ParseL2(models.Spot, book); !errors.Is(err, models.ErrMalformedPayload) {
		t.Errorf("l2 err = %v, want ErrMalformedPayload", err)
	}
}

func TestParseRejectsForeignTopic(t *testing.T) {
	raw := []byte(`{"code":"00007","data":{"p":"1"},"topic":"TICKER"}`)
	if _, err := (&parser{}).ParseTrade(models.Spot, raw); !errors.Is(err, models.ErrMalformedPayload) {
		t.Errorf("err = %v, want ErrMalformedPayload", err)
	}
}

func TestHandleFrameControl(t *testing.T) {
	if _, control := (protocol{}).HandleFrame([]byte(`{"code":"00000","data":"pong","timestamp":1622376005000}`)); !control {
		t.Error("pong must be consumed")
	}
	if _, control := (protocol{}).HandleFrame([]byte(`{"code":"00007","data":{"p":"1"},"topic":"TRADE"}`)); control {
		t.Error("data frames must pass through")
	}
}
