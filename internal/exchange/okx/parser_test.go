package okx

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"cryptocrawl/models"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestParseTradeLinearSwap(t *testing.T) {
	raw := []byte(`{"arg":{"channel":"trades","instId":"BTC-USDT-SWAP"},"data":[{"instId":"BTC-USDT-SWAP","tradeId":"242720720","px":"40000","sz":"5","side":"buy","ts":"1622374000000"}]}`)

	trades, err := (&parser{}).ParseTrade(models.LinearSwap, raw)
	if err != nil {
		t.Fatalf("ParseTrade: %v", err)
	}
	tr := trades[0]
	if tr.Pair != "BTC/USDT" {
		t.Errorf("pair = %q", tr.Pair)
	}
	if tr.QuantityContract == nil || !approx(*tr.QuantityContract, 5) {
		t.Fatalf("contract = %v, want 5", tr.QuantityContract)
	}
	// One BTC linear contract is 0.01 BTC.
	if !approx(tr.QuantityBase, 0.05) {
		t.Errorf("base = %v, want 0.05", tr.QuantityBase)
	}
	if !approx(tr.QuantityQuote, 0.05*40000) {
		t.Errorf("quote = %v", tr.QuantityQuote)
	}
	if tr.TradeID != "242720720" {
		t.Errorf("trade id = %q", tr.TradeID)
	}
}

func TestParseL2SnapshotAction(t *testing.T) {
	snapshot := []byte(`{"arg":{"channel":"books","instId":"BTC-USDT"},"action":"snapshot","data":[{"asks":[["31527.1","0.2","0","2"]],"bids":[["31526.9","1.5","0","1"]],"ts":"1622374001000"}]}`)
	update := []byte(`{"arg":{"channel":"books","instId":"BTC-USDT"},"action":"update","data":[{"asks":[["31528.0","0","0","0"]],"bids":[],"ts":"1622374002000"}]}`)

	books, err := (&parser{}).ParseL2(models.Spot, snapshot)
	if err != nil {
		t.Fatalf("ParseL2 snapshot: %v", err)
	}
	if !books[0].Snapshot {
		t.Error("action=snapshot must map to a snapshot book")
	}
	if !approx(books[0].Bids[0].QuantityBase, 1.5) {
		t.Errorf("bid base = %v", books[0].Bids[0].QuantityBase)
	}

	books, err = (&parser{}).ParseL2(models.Spot, update)
	if err != nil {
		t.Fatalf("ParseL2 update: %v", err)
	}
	if books[0].Snapshot {
		t.Error("action=update must map to a delta book")
	}
	if !approx(books[0].Asks[0].QuantityBase, 0) {
		t.Errorf("deletion level base = %v, want 0", books[0].Asks[0].QuantityBase)
	}
}

func TestParseFundingRate(t *testing.T) {
	raw := []byte(`{"arg":{"channel":"funding-rate","instId":"BTC-USD-SWAP"},"data":[{"instId":"BTC-USD-SWAP","fundingRate":"0.00017","fundingTime":"1622390400000"}]}`)

	rates, err := (&parser{}).ParseFundingRate(models.InverseSwap, raw)
	if err != nil {
		t.Fatalf("ParseFundingRate: %v", err)
	}
	fr := rates[0]
	if !approx(fr.FundingRate, 0.00017) {
		t.Errorf("rate = %v", fr.FundingRate)
	}
	if fr.Pair != "BTC/USD" {
		t.Errorf("pair = %q", fr.Pair)
	}
}

func TestParseRejectsWrongChannel(t *testing.T) {
	raw := []byte(`{"arg":{"channel":"tickers","instId":"BTC-USDT"},"data":[{}]}`)
	if _, err := (&parser{}).ParseTrade(models.Spot, raw); !errors.Is(err, models.ErrMalformedPayload) {
		t.Errorf("err = %v, want ErrMalformedPayload", err)
	}
}

func TestSubscribeCommandShape(t *testing.T) {
	cmds, err := protocol{}.SubscribeCommands([]string{"trades:BTC-USDT", "books:ETH-USDT"})
	if err != nil {
		t.Fatalf("SubscribeCommands: %v", err)
	}
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1 batched command", len(cmds))
	}
	var cmd struct {
		Op   string       `json:"op"`
		Args []channelArg `json:"args"`
	}
	if err := json.Unmarshal([]byte(cmds[0]), &cmd); err != nil {
		t.Fatal(err)
	}
	if cmd.Op != "subscribe" || len(cmd.Args) != 2 {
		t.Fatalf("cmd = %+v", cmd)
	}
	if cmd.Args[0].Channel != "trades" || cmd.Args[0].InstID != "BTC-USDT" {
		t.Errorf("args[0] = %+v", cmd.Args[0])
	}
}

func TestHandleFrameControl(t *testing.T) {
	if _, control := (protocol{}).HandleFrame([]byte("pong")); !control {
		t.Error("pong must be consumed")
	}
	if _, control := (protocol{}).HandleFrame([]byte(`{"event":"subscribe","arg":{"channel":"trades"}}`)); !control {
		t.Error("subscribe acks must be consumed")
	}
	if _, control := (protocol{}).HandleFrame([]byte(`{"arg":{"channel":"trades"},"data":[]}`)); control {
		t.Error("data frames must pass through")
	}
}
