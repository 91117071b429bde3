package broker

import (
	"context"
	"testing"

	"github.com/quantfisher/ashare-trader/internal/types"
	"github.com/shopspring/decimal"
)

func collectPushes() (PushFunc, *[]*types.BrokerEvent) {
	var pushes []*types.BrokerEvent
	return func(ev *types.BrokerEvent) { pushes = append(pushes, ev) }, &pushes
}

func TestSimFillsBuyInFull(t *testing.T) {
	sim := NewSim()
	push, pushes := collectPushes()
	if err := sim.OnInit(context.Background(), push, nil); err != nil {
		t.Fatalf("OnInit: %v", err)
	}

	entrust := &types.Entrust{
		EntrustID:   "e-1",
		Code:        "sh600063",
		EntrustType: types.EntrustBuy,
		Status:      types.EntrustStatusCommit,
		Price:       decimal.RequireFromString("11"),
		Volume:      100,
	}
	if err := sim.OnEntrust(context.Background(), entrust); err != nil {
		t.Fatalf("OnEntrust: %v", err)
	}

	if len(*pushes) != 1 {
		t.Fatalf("pushes = %d, want 1", len(*pushes))
	}
	got := (*pushes)[0]
	if got.Type != types.BrokerPushEntrust {
		t.Fatalf("push type = %s", got.Type)
	}
	if got.Entrust.Status != types.EntrustStatusDeal {
		t.Errorf("status = %s, want deal", got.Entrust.Status)
	}
	if got.Entrust.VolumeDeal != 100 || got.Entrust.VolumeCancel != 0 {
		t.Errorf("volumes = %d/%d, want 100/0", got.Entrust.VolumeDeal, got.Entrust.VolumeCancel)
	}
	if got.Entrust.BrokerEntrustID == "" {
		t.Error("broker entrust id missing")
	}
	// The original request is not mutated.
	if entrust.Status != types.EntrustStatusCommit {
		t.Error("request entrust mutated in place")
	}
}

func TestSimConfirmsCancel(t *testing.T) {
	sim := NewSim()
	push, pushes := collectPushes()
	sim.OnInit(context.Background(), push, nil)

	sim.OnEntrust(context.Background(), &types.Entrust{
		EntrustID:   "e-2",
		Code:        "sh600063",
		EntrustType: types.EntrustCancel,
		Volume:      50,
	})

	got := (*pushes)[0].Entrust
	if got.Status != types.EntrustStatusCancel {
		t.Errorf("status = %s, want cancel", got.Status)
	}
	if got.VolumeDeal != 0 || got.VolumeCancel != 50 {
		t.Errorf("volumes = %d/%d, want 0/50", got.VolumeDeal, got.VolumeCancel)
	}
}
