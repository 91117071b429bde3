package risk

import (
	"context"
	"testing"

	"github.com/quantfisher/ashare-trader/internal/types"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func acctWithPosition(profit, profitRate string, available int64) *types.Account {
	acct := types.NewAccount("risk-test", types.AcctBacktest, types.KindStock)
	acct.Position["sh600063"] = &types.Position{
		Code:            "sh600063",
		Name:            "test",
		Volume:          available,
		VolumeAvailable: available,
		NowPrice:        dec("11"),
		Profit:          dec(profit),
		ProfitRate:      dec(profitRate),
	}
	return acct
}

func TestSimpleStopThresholds(t *testing.T) {
	tests := []struct {
		name       string
		opts       map[string]string
		profit     string
		profitRate string
		available  int64
		wantSell   bool
	}{
		{"stop gain hit", map[string]string{"profit": "100"}, "150", "0.05", 100, true},
		{"stop gain not hit", map[string]string{"profit": "100"}, "50", "0.05", 100, false},
		{"stop gain rate hit", map[string]string{"profit_rate": "0.1"}, "150", "0.15", 100, true},
		{"stop loss hit", map[string]string{"lost": "100"}, "-150", "-0.05", 100, true},
		{"stop loss not hit", map[string]string{"lost": "100"}, "-50", "-0.05", 100, false},
		{"stop loss rate hit", map[string]string{"lost_rate": "0.1"}, "-150", "-0.15", 100, true},
		{"no thresholds", map[string]string{}, "9999", "1", 100, false},
		{"nothing sellable", map[string]string{"profit": "100"}, "150", "0.05", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := NewSimpleStop()
			acct := acctWithPosition(tt.profit, tt.profitRate, tt.available)
			if err := policy.OnInit(context.Background(), acct, tt.opts); err != nil {
				t.Fatalf("OnInit: %v", err)
			}

			signals, err := policy.OnRisk(context.Background(), acct, nil)
			if err != nil {
				t.Fatalf("OnRisk: %v", err)
			}

			if tt.wantSell && len(signals) != 1 {
				t.Fatalf("signals = %d, want 1", len(signals))
			}
			if !tt.wantSell && len(signals) != 0 {
				t.Fatalf("unexpected signals: %+v", signals)
			}
			if tt.wantSell {
				sig := signals[0]
				if sig.Signal != types.SignalSell {
					t.Errorf("signal = %s, want sell", sig.Signal)
				}
				if sig.Volume != tt.available {
					t.Errorf("volume = %d, want %d", sig.Volume, tt.available)
				}
			}
		})
	}
}

func TestSimpleStopBadOption(t *testing.T) {
	policy := NewSimpleStop()
	err := policy.OnInit(context.Background(), nil, map[string]string{"profit": "not-a-number"})
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRegistry(t *testing.T) {
	r, err := New("simple-stop")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.Name() != "simple-stop" {
		t.Errorf("Name() = %s", r.Name())
	}
	if _, err := New("no-such-policy"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
