package huobi

import (
	"bytes"
	"compress/gzip"
	"errors"
	"math"
	"testing"

	"cryptocrawl/models"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestParseTradeSpot(t *testing.T) {
	raw := []byte(`{"ch":"market.btcusdt.trade.detail","ts":1622373000000,"tick":{"id":130601629635,"ts":1622373000123,"data":[{"id":1.3060162963522334e+22,"ts":1622373000123,"tradeId":102523573486,"amount":0.5,"price":36000,"direction":"sell"}]}}`)

	trades, err := (&parser{}).ParseTrade(models.Spot, raw)
	if err != nil {
		t.Fatalf("ParseTrade: %v", err)
	}
	tr := trades[0]
	if tr.Pair != "BTC/USDT" {
		t.Errorf("pair = %q", tr.Pair)
	}
	if tr.Side != models.Sell {
		t.Errorf("side = %q, want sell", tr.Side)
	}
	if tr.Timestamp != 1622373000123 {
		t.Errorf("timestamp = %d", tr.Timestamp)
	}
	if !approx(tr.QuantityQuote, 0.5*36000) {
		t.Errorf("quote = %v", tr.QuantityQuote)
	}
	if tr.TradeID != "102523573486" {
		t.Errorf("trade id = %q", tr.TradeID)
	}
}

func TestParseTradeInverseSwap(t *testing.T) {
	raw := []byte(`{"ch":"market.BTC-USD.trade.detail","ts":1622373001000,"tick":{"data":[{"tradeId":77,"ts":1622373001000,"amount":4,"price":40000,"direction":"buy"}]}}`)

	trades, err := (&parser{}).ParseTrade(models.InverseSwap, raw)
	if err != nil {
		t.Fatalf("ParseTrade: %v", err)
	}
	tr := trades[0]
	if tr.QuantityContract == nil || !approx(*tr.QuantityContract, 4) {
		t.Fatalf("contract = %v, want 4", tr.QuantityContract)
	}
	// 4 contracts at 100 USD each.
	if !approx(tr.QuantityQuote, 400) {
		t.Errorf("quote = %v, want 400", tr.QuantityQuote)
	}
	if !approx(tr.QuantityBase, 0.01) {
		t.Errorf("base = %v, want 0.01", tr.QuantityBase)
	}
}

func TestParseL2IsSnapshot(t *testing.T) {
	raw := []byte(`{"ch":"market.btcusdt.mbp.refresh.20","ts":1622373002000,"tick":{"seqNum":123,"bids":[[36000.1,0.3]],"asks":[[36000.2,0.4],[36000.3,1.1]]}}`)

	books, err := (&parser{}).ParseL2(models.Spot, raw)
	if err != nil {
		t.Fatalf("ParseL2: %v", err)
	}
	book := books[0]
	if !book.Snapshot {
		t.Error("mbp.refresh frames are full books and must be snapshots")
	}
	if len(book.Asks) != 2 || len(book.Bids) != 1 {
		t.Fatalf("levels = %d asks / %d bids", len(book.Asks), len(book.Bids))
	}
	if !approx(book.Bids[0].QuantityQuote, 36000.1*0.3) {
		t.Errorf("bid quote = %v", book.Bids[0].QuantityQuote)
	}
}

func TestParseRejectsForeignSchema(t *testing.T) {
	if _, err := (&parser{}).ParseTrade(models.Spot, []byte(`{"op":"ping"}`)); !errors.Is(err, models.ErrMalformedPayload) {
		t.Errorf("err = %v, want ErrMalformedPayload", err)
	}
	if _, err := (&parser{}).ParseL2(models.Spot, []byte(`{"ch":"market.btcusdt.trade.detail"}`)); !errors.Is(err, models.ErrMalformedPayload) {
		t.Errorf("err = %v, want ErrMalformedPayload", err)
	}
}

func TestProtocolPingPong(t *testing.T) {
	reply, control := protocol{}.HandleFrame([]byte(`{"ping":1622373003000}`))
	if !control {
		t.Fatal("ping frame must be consumed as a control frame")
	}
	if reply != `{"pong":1622373003000}` {
		t.Errorf("reply = %q", reply)
	}

	if _, control := (protocol{}).HandleFrame([]byte(`{"ch":"market.btcusdt.trade.detail","tick":{}}`)); control {
		t.Error("data frames must pass through")
	}
}

func TestProtocolDecompress(t *testing.T) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	w.Write([]byte(`{"ping":1}`))
	w.Close()

	out, err := protocol{}.Decompress(buf.Bytes())
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if string(out) != `{"ping":1}` {
		t.Errorf("out = %s", out)
	}

	if _, err := (protocol{}).Decompress([]byte("plain text")); !errors.Is(err, models.ErrProtocol) {
		t.Errorf("err = %v, want ErrProtocol", err)
	}
}
