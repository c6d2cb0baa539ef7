package sink

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"cryptocrawl/models"
)

func sampleMessage(symbol string) *models.Message {
	return models.NewMessage("binance", models.Spot, symbol, "BTC/USDT",
		models.Trade, 1622377000000, []byte(`{"price":35000}`))
}

func TestWriterSinkEncodesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)
	s.Write(sampleMessage("BTCUSDT"))
	s.Write(sampleMessage("ETHUSDT"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	var msg models.Message
	if err := json.Unmarshal([]byte(lines[0]), &msg); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if msg.Exchange != "binance" || msg.MsgType != models.Trade || msg.Timestamp != 1622377000000 {
		t.Errorf("decoded = %+v", msg)
	}
	if string(msg.Raw) != `{"price":35000}` {
		t.Errorf("raw = %s", msg.Raw)
	}
}

func TestChannelSinkDropsWhenFull(t *testing.T) {
	s := NewChannelSink(1)
	s.Write(sampleMessage("BTCUSDT"))
	s.Write(sampleMessage("ETHUSDT")) // dropped, channel full

	select {
	case msg := <-s.Messages():
		if msg.Symbol != "BTCUSDT" {
			t.Errorf("symbol = %q", msg.Symbol)
		}
	default:
		t.Fatal("expected one buffered message")
	}
	select {
	case msg := <-s.Messages():
		t.Fatalf("unexpected second message %+v", msg)
	default:
	}
}

func TestCreateParquetRoundTripsRecords(t *testing.T) {
	msgs := []*models.Message{sampleMessage("BTCUSDT"), sampleMessage("ETHUSDT")}
	data, err := createParquet(msgs)
	if err != nil {
		t.Fatalf("createParquet: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty parquet output")
	}
	// PAR1 magic frames every parquet file.
	if !bytes.HasPrefix(data, []byte("PAR1")) || !bytes.HasSuffix(data, []byte("PAR1")) {
		t.Error("output does not look like a parquet file")
	}
}
