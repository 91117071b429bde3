package hub

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quantfisher/ashare-trader/internal/account"
	"github.com/quantfisher/ashare-trader/internal/broker"
	"github.com/quantfisher/ashare-trader/internal/strategy"
	"github.com/quantfisher/ashare-trader/internal/types"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// scriptQuot replays a fixed event script, one event per poll.
type scriptQuot struct {
	mu     sync.Mutex
	events []*types.QuotData
	i      int
	added  [][]string
}

func (s *scriptQuot) AddCodes(_ context.Context, codes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, codes)
	return nil
}

func (s *scriptQuot) GetQuot(context.Context) (*types.QuotData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.i >= len(s.events) {
		return nil, nil
	}
	ev := s.events[s.i]
	s.i++
	return ev, nil
}

func (s *scriptQuot) addedCodes() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.added...)
}

func testBook(typ types.AcctType) *account.Book {
	acct := types.NewAccount("hub-test", typ, types.KindStock)
	acct.CashInit = dec("10000")
	acct.CashAvailable = acct.CashInit
	acct.BrokerFee = dec("0.00025")
	acct.TransferFee = dec("0.00002")
	acct.TaxFee = dec("0.001")
	return account.NewBook(acct)
}

func barEvent(code, close string, end time.Time) *types.QuotData {
	c := dec(close)
	return types.NewQuotBars(types.QuotBarMap{
		code: {
			Frequency: types.Freq1Day,
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Start:     end.Add(-24 * time.Hour),
			End:       end,
			Quot:      types.Quot{Code: code, Now: c, Time: end},
		},
	})
}

func backtestScript(code, close string) *scriptQuot {
	opts := types.QuotOpts{Frequency: types.Freq1Day, Codes: []string{code}}
	end := time.Date(2022, 3, 1, 15, 0, 0, 0, time.Local)
	return &scriptQuot{events: []*types.QuotData{
		types.NewQuotStatus(types.QuotEventStart, opts, end),
		types.NewQuotStatus(types.QuotEventMorningStart, opts, end),
		barEvent(code, close, end),
		types.NewQuotStatus(types.QuotEventNoonEnd, opts, end),
		types.NewQuotStatus(types.QuotEventEnd, opts, end),
	}}
}

func runHub(t *testing.T, book *account.Book, opts Opts) error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- Run(context.Background(), book, opts, nil) }()

	select {
	case err := <-errCh:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("hub did not terminate")
		return nil
	}
}

// The simulation-fill round trip: strategy buys on the first bar, the sim
// broker fills in full, the account books the position and deal.
func TestHubSimulationFill(t *testing.T) {
	book := testBook(types.AcctBacktest)
	err := runHub(t, book, Opts{
		Quot:     backtestScript("sh600063", "11"),
		Interval: 20 * time.Millisecond,
		Strategy: strategy.NewHoldside(),
		Broker:   broker.NewSim(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	acct := book.Snapshot()
	if acct.Status != types.AcctStopped {
		t.Errorf("status = %s, want stopped", acct.Status)
	}
	if acct.EndTime == nil {
		t.Error("end time not set on quot end")
	}

	pos := acct.Position["sh600063"]
	if pos == nil {
		t.Fatal("no position after simulated fill")
	}
	if pos.Volume != 100 || !pos.Price.Equal(dec("11")) {
		t.Errorf("position = %d @ %s, want 100 @ 11", pos.Volume, pos.Price)
	}
	if pos.Volume != pos.VolumeAvailable+pos.VolumeFrozen {
		t.Error("volume invariant broken")
	}

	// cash reduced by 100*11 + fee (5 floor + 0.022 transfer)
	if !acct.CashAvailable.Equal(dec("8894.978")) {
		t.Errorf("CashAvailable = %s, want 8894.978", acct.CashAvailable)
	}

	if len(acct.Entrust) != 1 || acct.Entrust[0].Status != types.EntrustStatusDeal {
		t.Fatalf("entrust = %+v, want one dealt entrust", acct.Entrust)
	}
	if acct.Entrust[0].BrokerEntrustID == "" {
		t.Error("broker entrust id not recorded")
	}
	if len(acct.Deal) != 1 || acct.Deal[0].Volume != 100 {
		t.Fatalf("deal = %+v, want one fill of 100", acct.Deal)
	}
	if len(acct.Signal) != 1 {
		t.Errorf("signal history = %d, want 1", len(acct.Signal))
	}
	if acct.Signal[0].Source.Type != types.SourceStrategy {
		t.Errorf("signal source = %s, want strategy", acct.Signal[0].Source.Type)
	}
	if acct.Signal[0].SignalID == "" {
		t.Error("signal id not stamped")
	}
}

// subscribeStrategy asks for one extra code on session open.
type subscribeStrategy struct {
	strategy.Holdside
	code string
}

func (s *subscribeStrategy) Name() string { return "subscribe-test" }

func (s *subscribeStrategy) OnOpen(context.Context, *types.Account, *types.QuotData) ([]types.Event, error) {
	return []types.Event{types.NewSubscribeEvent([]string{s.code})}, nil
}

func TestHubForwardsSubscribe(t *testing.T) {
	book := testBook(types.AcctBacktest)
	script := backtestScript("sh600063", "11")
	err := runHub(t, book, Opts{
		Quot:     script,
		Interval: 20 * time.Millisecond,
		Strategy: &subscribeStrategy{Holdside: *strategy.NewHoldside(), code: "sh601456"},
		Broker:   broker.NewSim(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	found := false
	for _, codes := range script.addedCodes() {
		for _, c := range codes {
			if c == "sh601456" {
				found = true
			}
		}
	}
	if !found {
		t.Error("subscribe never reached the quotation engine")
	}
}

// failBroker rejects every entrust.
type failBroker struct{}

func (failBroker) Name() string { return "fail" }
func (failBroker) OnInit(context.Context, broker.PushFunc, map[string]string) error {
	return nil
}
func (failBroker) OnDestroy(context.Context) error { return nil }
func (failBroker) OnEntrust(context.Context, *types.Entrust) error {
	return errors.New("wire unplugged")
}
func (failBroker) OnPoll(context.Context) error { return nil }

// A broker crash publishes on the exception channel and tears the account
// down with an exceptional result.
func TestHubBrokerCrashTearsDown(t *testing.T) {
	book := testBook(types.AcctBacktest)
	err := runHub(t, book, Opts{
		Quot:     backtestScript("sh600063", "11"),
		Interval: 20 * time.Millisecond,
		Strategy: strategy.NewHoldside(),
		Broker:   failBroker{},
	})
	if err == nil {
		t.Fatal("expected exceptional result")
	}
	if !strings.Contains(err.Error(), string(types.TargetBroker)) {
		t.Errorf("error %q does not name the broker task", err)
	}
	if book.Snapshot().Status != types.AcctStopped {
		t.Error("account not stopped after teardown")
	}
}

// initFailStrategy fails during OnInit.
type initFailStrategy struct{ strategy.Holdside }

func (initFailStrategy) Name() string { return "init-fail" }
func (initFailStrategy) OnInit(context.Context, *types.Account, map[string]string) error {
	return errors.New("missing option")
}

func TestHubStrategyInitFailureTearsDown(t *testing.T) {
	book := testBook(types.AcctBacktest)
	err := runHub(t, book, Opts{
		Quot:     backtestScript("sh600063", "11"),
		Interval: 20 * time.Millisecond,
		Strategy: &initFailStrategy{},
		Broker:   broker.NewSim(),
	})
	if err == nil {
		t.Fatal("expected exceptional result")
	}
	if !strings.Contains(err.Error(), string(types.TargetStrategy)) {
		t.Errorf("error %q does not name the strategy task", err)
	}
}

// External shutdown stops every runner and the hub without an error.
func TestHubExternalShutdown(t *testing.T) {
	book := testBook(types.AcctSimulation)
	// A script that never ends: quot_start then silence.
	script := &scriptQuot{events: []*types.QuotData{
		types.NewQuotStatus(types.QuotEventStart, types.QuotOpts{}, time.Now()),
	}}

	sd := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(context.Background(), book, Opts{
			Quot:     script,
			Interval: 20 * time.Millisecond,
			Strategy: strategy.NewHoldside(),
			Broker:   broker.NewSim(),
		}, sd)
	}()

	time.Sleep(50 * time.Millisecond)
	close(sd)

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("hub did not stop on external shutdown")
	}
	if book.Snapshot().Status != types.AcctStopped {
		t.Error("account not stopped")
	}
}
