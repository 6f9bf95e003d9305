package events

import (
	"math/big"
	"testing"

	"horus/crypto"
)

func testAddress(suffix byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

func TestPositionOpenedEvent(t *testing.T) {
	addr := testAddress(0x07)
	evt := PositionOpened{
		Account:   addr,
		Borrowed:  big.NewInt(1000),
		DebtUsed:  big.NewInt(900),
		PairUsed:  big.NewInt(450),
		Liquidity: big.NewInt(636),
	}.Event()
	if evt.Type != TypePositionOpened {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if evt.Attr("addr") != addr.String() {
		t.Fatalf("unexpected addr attr: %s", evt.Attr("addr"))
	}
	if evt.Attr("borrowed") != "1000" || evt.Attr("liquidity") != "636" {
		t.Fatalf("unexpected attrs: %+v", evt.Attributes)
	}
}

func TestNilAmountsRenderAsZero(t *testing.T) {
	evt := RewardsUnderpaid{Account: testAddress(0x01)}.Event()
	if evt.Attr("owed") != "0" || evt.Attr("paid") != "0" {
		t.Fatalf("expected zero amounts, got %+v", evt.Attributes)
	}
}

func TestCollectorKeepsOrder(t *testing.T) {
	var c Collector
	c.Emit(RateUpdated{Rate: big.NewInt(1)})
	c.Emit(CeilingUpdated{Ceiling: big.NewInt(2)})
	c.Emit(nil)
	got := c.Types()
	if len(got) != 2 || got[0] != TypeRateUpdated || got[1] != TypeCeilingUpdated {
		t.Fatalf("unexpected types: %v", got)
	}
}
