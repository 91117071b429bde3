package fetch

import (
	"testing"

	"github.com/shopspring/decimal"
)

const sampleLine = "sh600063=皖维高新,10.00,10.90,11.00,12.00,9.50,10.99,11.01," +
	"1000,11000.00," +
	"100,10.99,200,10.98,300,10.97,400,10.96,500,10.95," +
	"110,11.01,210,11.02,310,11.03,410,11.04,510,11.05," +
	"2022-03-01,10:30:00"

func TestParseRtQuot(t *testing.T) {
	quots, err := parseRtQuot(sampleLine + "\n")
	if err != nil {
		t.Fatalf("parseRtQuot: %v", err)
	}
	q, ok := quots["sh600063"]
	if !ok {
		t.Fatal("code missing from result")
	}

	if q.Name != "皖维高新" {
		t.Errorf("name = %s", q.Name)
	}
	checks := []struct {
		field string
		got   decimal.Decimal
		want  string
	}{
		{"open", q.Open, "10.00"},
		{"pre_close", q.PreClose, "10.90"},
		{"now", q.Now, "11.00"},
		{"high", q.High, "12.00"},
		{"low", q.Low, "9.50"},
		{"buy", q.Buy, "10.99"},
		{"sell", q.Sell, "11.01"},
		{"amount", q.Amount, "11000.00"},
	}
	for _, c := range checks {
		if !c.got.Equal(decimal.RequireFromString(c.want)) {
			t.Errorf("%s = %s, want %s", c.field, c.got, c.want)
		}
	}
	if q.Vol != 1000 {
		t.Errorf("vol = %d, want 1000", q.Vol)
	}
	if q.Bid[0].Volume != 100 || !q.Bid[0].Price.Equal(decimal.RequireFromString("10.99")) {
		t.Errorf("bid[0] = %+v", q.Bid[0])
	}
	if q.Ask[4].Volume != 510 || !q.Ask[4].Price.Equal(decimal.RequireFromString("11.05")) {
		t.Errorf("ask[4] = %+v", q.Ask[4])
	}
	if q.Time.Hour() != 10 || q.Time.Minute() != 30 {
		t.Errorf("time = %s", q.Time)
	}
}

func TestParseRtQuotMultipleLines(t *testing.T) {
	second := "sh601456=国联证券,10.00,10.90,11.00,12.00,9.50,10.99,11.01," +
		"1000,11000.00," +
		"100,10.99,200,10.98,300,10.97,400,10.96,500,10.95," +
		"110,11.01,210,11.02,310,11.03,410,11.04,510,11.05," +
		"2022-03-01,10:30:01"

	quots, err := parseRtQuot(sampleLine + "\n" + second + "\n\n")
	if err != nil {
		t.Fatalf("parseRtQuot: %v", err)
	}
	if len(quots) != 2 {
		t.Fatalf("codes = %d, want 2", len(quots))
	}
}

func TestParseRtQuotShortPayload(t *testing.T) {
	if _, err := parseRtQuot("sh600063=bad,1,2,3\n"); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func TestMinuteBarConversion(t *testing.T) {
	raw := minuteBar{
		Day:    "2022-03-01 10:30:00",
		Open:   "10.5",
		High:   "11.2",
		Low:    "10.1",
		Close:  "11.0",
		Volume: "123456",
	}
	bar, err := raw.toStockBar()
	if err != nil {
		t.Fatalf("toStockBar: %v", err)
	}
	if !bar.High.Equal(decimal.RequireFromString("11.2")) || bar.Vol != 123456 {
		t.Errorf("bar = %+v", bar)
	}

	raw.Open = "n/a"
	if _, err := raw.toStockBar(); err == nil {
		t.Fatal("expected error for malformed open")
	}
}

func TestIsIndex(t *testing.T) {
	if !IsIndex("sh000001") {
		t.Error("sh000001 should be an index")
	}
	if IsIndex("sh600063") {
		t.Error("sh600063 is not an index")
	}
}
