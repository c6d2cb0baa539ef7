package bybit

import (
	"errors"
	"math"
	"testing"

	"cryptocrawl/models"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestParseTradeSpot(t *testing.T) {
	raw := []byte(`{"topic":"publicTrade.BTCUSDT","type":"snapshot","ts":1672304486868,"data":[{"T":1672304486865,"s":"BTCUSDT","S":"Buy","v":"0.001","p":"16578.50","i":"20f43950-d8dd-5b31-9112-a178eb6023af","BT":false}]}`)

	trades, err := (&parser{}).ParseTrade(models.Spot, raw)
	if err != nil {
		t.Fatalf("ParseTrade: %v", err)
	}
	tr := trades[0]
	if tr.Pair != "BTC/USDT" {
		t.Errorf("pair = %q", tr.Pair)
	}
	if tr.Side != models.Buy {
		t.Errorf("side = %q", tr.Side)
	}
	if tr.Timestamp != 1672304486865 {
		t.Errorf("timestamp = %d, want per-trade time", tr.Timestamp)
	}
	if !approx(tr.QuantityQuote, 0.001*16578.50) {
		t.Errorf("quote = %v", tr.QuantityQuote)
	}
	if tr.TradeID != "20f43950-d8dd-5b31-9112-a178eb6023af" {
		t.Errorf("trade id = %q", tr.TradeID)
	}
}

func TestParseTradeInverseSwap(t *testing.T) {
	raw := []byte(`{"topic":"publicTrade.BTCUSD","type":"snapshot","ts":1672304487000,"data":[{"T":1672304486999,"s":"BTCUSD","S":"Sell","v":"300","p":"30000","i":"t1"}]}`)

	trades, err := (&parser{}).ParseTrade(models.InverseSwap, raw)
	if err != nil {
		t.Fatalf("ParseTrade: %v", err)
	}
	tr := trades[0]
	if tr.QuantityContract == nil || !approx(*tr.QuantityContract, 300) {
		t.Fatalf("contract = %v, want 300", tr.QuantityContract)
	}
	// Inverse contracts here are 1 USD apiece.
	if !approx(tr.QuantityQuote, 300) {
		t.Errorf("quote = %v, want 300", tr.QuantityQuote)
	}
	if !approx(tr.QuantityBase, 0.01) {
		t.Errorf("base = %v, want 0.01", tr.QuantityBase)
	}
}

func TestParseL2SnapshotThenDelta(t *testing.T) {
	snapshot := []byte(`{"topic":"orderbook.50.BTCUSDT","type":"snapshot","ts":1672304484978,"data":{"s":"BTCUSDT","b":[["16493.50","0.006"]],"a":[["16611.00","0.029"]],"u":18521288,"seq":7961638724}}`)
	delta := []byte(`{"topic":"orderbook.50.BTCUSDT","type":"delta","ts":1672304485000,"data":{"s":"BTCUSDT","b":[],"a":[["16611.00","0"]],"u":18521289,"seq":7961638725}}`)

	books, err := (&parser{}).ParseL2(models.Spot, snapshot)
	if err != nil {
		t.Fatalf("ParseL2 snapshot: %v", err)
	}
	if !books[0].Snapshot {
		t.Error("type=snapshot must map to a snapshot book")
	}

	books, err = (&parser{}).ParseL2(models.Spot, delta)
	if err != nil {
		t.Fatalf("ParseL2 delta: %v", err)
	}
	if books[0].Snapshot {
		t.Error("type=delta must map to a delta book")
	}
	if !approx(books[0].Asks[0].QuantityBase, 0) {
		t.Errorf("deletion level base = %v, want 0", books[0].Asks[0].QuantityBase)
	}
}

func TestParseFundingRateSkipsDeltaWithoutRate(t *testing.T) {
	withRate := []byte(`{"topic":"tickers.BTCUSDT","type":"snapshot","ts":1673272861686,"data":{"symbol":"BTCUSDT","fundingRate":"-0.000212","nextFundingTime":"1673280000000"}}`)
	withoutRate := []byte(`{"topic":"tickers.BTCUSDT","type":"delta","ts":1673272861700,"data":{"symbol":"BTCUSDT","lastPrice":"17216.00"}}`)

	rates, err := (&parser{}).ParseFundingRate(models.LinearSwap, withRate)
	if err != nil {
		t.Fatalf("ParseFundingRate: %v", err)
	}
	if len(rates) != 1 || !approx(rates[0].FundingRate, -0.000212) {
		t.Fatalf("rates = %+v", rates)
	}

	rates, err = (&parser{}).ParseFundingRate(models.LinearSwap, withoutRate)
	if err != nil {
		t.Fatalf("ParseFundingRate delta: %v", err)
	}
	if len(rates) != 0 {
		t.Errorf("delta without rate must yield no records, got %d", len(rates))
	}
}

func TestParseRejectsForeignTopic(t *testing.T) {
	raw := []byte(`{"topic":"kline.1.BTCUSDT","type":"snapshot","data":[{}]}`)
	if _, err := (&parser{}).ParseTrade(models.Spot, raw); !errors.Is(err, models.ErrMalformedPayload) {
		t.Errorf("err = %v, want ErrMalformedPayload", err)
	}
}

func TestHandleFrameControl(t *testing.T) {
	if _, control := (protocol{}).HandleFrame([]byte(`{"success":true,"op":"subscribe","conn_id":"x"}`)); !control {
		t.Error("subscribe acks must be consumed")
	}
	if _, control := (protocol{}).HandleFrame([]byte(`{"op":"pong"}`)); !control {
		t.Error("pongs must be consumed")
	}
	if _, control := (protocol{}).HandleFrame([]byte(`{"topic":"publicTrade.BTCUSDT","data":[]}`)); control {
		t.Error("data frames must pass through")
	}
}
