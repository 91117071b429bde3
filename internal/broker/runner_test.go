package broker

import (
	"context"
	"testing"
	"time"

	"github.com/quantfisher/ashare-trader/internal/types"
	"github.com/shopspring/decimal"
)

func TestRunnerRoutesEntrustAndQuits(t *testing.T) {
	r := NewRunner(NewSim(), nil, nil)
	done := make(chan struct{})
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(context.Background(), done) }()

	r.Entrusts() <- types.NewEntrustEvent(&types.Entrust{
		EntrustID:   "e-1",
		Code:        "sz000001",
		EntrustType: types.EntrustSell,
		Price:       decimal.RequireFromString("10"),
		Volume:      100,
	})

	select {
	case ev := <-r.Pushes():
		if ev.Type != types.EventBroker || ev.Broker.Entrust.Status != types.EntrustStatusDeal {
			t.Fatalf("push = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no push for entrust")
	}

	// The quit sentinel drains the task; the push channel closes.
	r.Entrusts() <- types.NewNoneEvent(types.CmdQuit)
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not quit")
	}
	if _, ok := <-r.Pushes(); ok {
		t.Error("push channel not closed after quit")
	}
}

// pollBroker pushes a fund sync on every poll.
type pollBroker struct {
	push PushFunc
}

func (p *pollBroker) Name() string { return "poll" }
func (p *pollBroker) OnInit(_ context.Context, push PushFunc, _ map[string]string) error {
	p.push = push
	return nil
}
func (p *pollBroker) OnDestroy(context.Context) error { return nil }
func (p *pollBroker) OnEntrust(context.Context, *types.Entrust) error {
	return nil
}
func (p *pollBroker) OnPoll(context.Context) error {
	p.push(&types.BrokerEvent{
		Type: types.BrokerPushFundSync,
		Fund: &types.FundSync{Total: decimal.NewFromInt(1)},
	})
	return nil
}

func TestRunnerPollsPeriodically(t *testing.T) {
	r := NewRunner(&pollBroker{}, nil, nil)
	r.poll = 10 * time.Millisecond

	done := make(chan struct{})
	go r.Run(context.Background(), done)
	defer close(done)

	select {
	case ev := <-r.Pushes():
		if ev.Broker.Type != types.BrokerPushFundSync {
			t.Fatalf("push = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poll never fired")
	}
}

func TestRunnerStopsOnShutdown(t *testing.T) {
	r := NewRunner(NewSim(), nil, nil)
	done := make(chan struct{})
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(context.Background(), done) }()

	close(done)
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}
