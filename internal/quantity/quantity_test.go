package quantity

import (
	"math"
	"testing"

	"cryptocrawl/models"
)

const tolerance = 1e-9

func TestCalcSpot(t *testing.T) {
	base, quote, contract, err := Calc("binance", models.Spot, "BTC/USDT", 50000, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if contract != nil {
		t.Error("spot market must not report a contract quantity")
	}
	if base != 0.5 {
		t.Errorf("base = %v, want 0.5", base)
	}
	if math.Abs(quote-base*50000) > tolerance {
		t.Errorf("quote = %v, want price*base = %v", quote, base*50000)
	}
}

func TestCalcInverseRoundTrip(t *testing.T) {
	price := 40000.0
	base, quote, contract, err := Calc("okx", models.InverseSwap, "BTC/USD", price, 7)
	if err != nil {
		t.Fatal(err)
	}
	if contract == nil {
		t.Fatal("contract market must report a contract quantity")
	}
	cv, err := ContractValue("okx", models.InverseSwap, "BTC/USD")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(quote-*contract*cv) > tolerance {
		t.Errorf("quote = %v, want contract*value = %v", quote, *contract*cv)
	}
	if math.Abs(base-quote/price) > tolerance {
		t.Errorf("base = %v, want quote/price = %v", base, quote/price)
	}
}

func TestCalcLinearRoundTrip(t *testing.T) {
	price := 40000.0
	base, quote, contract, err := Calc("okx", models.LinearSwap, "BTC/USDT", price, 3)
	if err != nil {
		t.Fatal(err)
	}
	if contract == nil {
		t.Fatal("contract market must report a contract quantity")
	}
	cv, err := ContractValue("okx", models.LinearSwap, "BTC/USDT")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(base-*contract*cv) > tolerance {
		t.Errorf("base = %v, want contract*value = %v", base, *contract*cv)
	}
	if math.Abs(quote-base*price) > tolerance {
		t.Errorf("quote = %v, want base*price = %v", quote, base*price)
	}
}

func TestContractValueSpotRejected(t *testing.T) {
	if _, err := ContractValue("binance", models.Spot, "BTC/USDT"); err == nil {
		t.Error("expected error for spot market")
	}
}
