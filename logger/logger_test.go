package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestConfigure(t *testing.T) {
	l := Logger()
	if err := l.Configure("debug", "json", "stdout", 0); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := l.Configure("nope", "json", "stdout", 0); err == nil {
		t.Error("expected error for invalid level")
	}
	if err := l.Configure("info", "xml", "stdout", 0); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestWithComponentFields(t *testing.T) {
	l := Logger()
	var buf bytes.Buffer
	l.SetOutput(&buf)

	l.WithComponent("engine").WithFields(Fields{"symbol": "BTC-USDT"}).Info("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not json: %v", err)
	}
	if entry["component"] != "engine" {
		t.Errorf("component = %v, want engine", entry["component"])
	}
	if entry["symbol"] != "BTC-USDT" {
		t.Errorf("symbol = %v, want BTC-USDT", entry["symbol"])
	}
	if entry["message"] != "hello" {
		t.Errorf("message = %v, want hello", entry["message"])
	}
}
