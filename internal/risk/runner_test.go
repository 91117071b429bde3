package risk

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quantfisher/ashare-trader/internal/types"
)

// countingRisk counts OnRisk invocations and always emits one signal.
type countingRisk struct {
	calls atomic.Int64
}

func (c *countingRisk) Name() string { return "counting" }
func (c *countingRisk) OnInit(context.Context, *types.Account, map[string]string) error {
	return nil
}
func (c *countingRisk) OnDestroy(context.Context) error { return nil }
func (c *countingRisk) OnRisk(context.Context, *types.Account, *types.QuotData) ([]*types.Signal, error) {
	c.calls.Add(1)
	return []*types.Signal{{Signal: types.SignalSell, Code: "sh600063", Volume: 100}}, nil
}

func snapshot() *types.Account {
	return types.NewAccount("risk-runner-test", types.AcctBacktest, types.KindStock)
}

func feedAndClose(r *Runner, events ...*types.QuotData) {
	for _, q := range events {
		r.Quots() <- q
	}
}

func TestRunnerIgnoresBarsOutsideTrading(t *testing.T) {
	policy := &countingRisk{}
	r := NewRunner(policy, nil, snapshot, func() bool { return false }, nil)
	done := make(chan struct{})
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(context.Background(), done) }()

	opts := types.QuotOpts{}
	now := time.Now()
	feedAndClose(r,
		types.NewQuotStatus(types.QuotEventStart, opts, now),
		types.NewQuotBars(types.QuotBarMap{}),
		types.NewQuotStatus(types.QuotEventEnd, opts, now),
	)

	if err := <-errCh; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if n := policy.calls.Load(); n != 0 {
		t.Errorf("OnRisk calls = %d, want 0 outside trading", n)
	}
}

func TestRunnerEvaluatesWhileTrading(t *testing.T) {
	policy := &countingRisk{}
	r := NewRunner(policy, nil, snapshot, func() bool { return true }, nil)
	done := make(chan struct{})
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(context.Background(), done) }()

	opts := types.QuotOpts{}
	now := time.Now()
	bars := types.NewQuotBars(types.QuotBarMap{})
	feedAndClose(r, bars, bars,
		types.NewQuotStatus(types.QuotEventEnd, opts, now))

	var got []types.Event
	for ev := range r.Events() {
		got = append(got, ev)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if n := policy.calls.Load(); n != 2 {
		t.Errorf("OnRisk calls = %d, want 2", n)
	}
	if len(got) != 2 {
		t.Fatalf("signals = %d, want 2", len(got))
	}
	sig := got[0].Signal
	if sig.Source.Type != types.SourceRisk || sig.Source.Name != "counting" {
		t.Errorf("source = %+v, want risk:counting", sig.Source)
	}
	if sig.SignalID == "" {
		t.Error("signal id not stamped")
	}
}

func TestRunnerPassthroughWithoutPolicy(t *testing.T) {
	r := NewRunner(nil, nil, snapshot, func() bool { return true }, nil)
	done := make(chan struct{})
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(context.Background(), done) }()

	r.Quots() <- types.NewQuotBars(types.QuotBarMap{})
	r.Quots() <- types.NewQuotStatus(types.QuotEventEnd, types.QuotOpts{}, time.Now())

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pass-through did not exit on quot end")
	}

	if _, ok := <-r.Events(); ok {
		t.Error("pass-through emitted an event")
	}
}
