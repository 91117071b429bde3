// Package hub implements the per-account task coordinator: it spawns the
// quotation, strategy, risk and broker tasks under a start barrier,
// multiplexes their event streams, updates the account book, and enforces
// orderly shutdown.
package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quantfisher/ashare-trader/internal/account"
	"github.com/quantfisher/ashare-trader/internal/broker"
	"github.com/quantfisher/ashare-trader/internal/fetch"
	"github.com/quantfisher/ashare-trader/internal/metrics"
	"github.com/quantfisher/ashare-trader/internal/quotation"
	"github.com/quantfisher/ashare-trader/internal/risk"
	"github.com/quantfisher/ashare-trader/internal/strategy"
	"github.com/quantfisher/ashare-trader/internal/types"
)

// Opts wires one account's collaborators.
type Opts struct {
	QuotOpts types.QuotOpts
	Fetcher  fetch.Fetcher
	Store    quotation.HistoryStore

	Strategy     strategy.Strategy
	StrategyOpts map[string]string

	// Risk may be nil: the risk task then runs pass-through.
	Risk     risk.Risk
	RiskOpts map[string]string

	Broker     broker.Broker
	BrokerOpts map[string]string

	// Quot overrides the quotation built from the account type. Tests use
	// this to inject scripted engines.
	Quot     quotation.Quotation
	Interval time.Duration

	Logger   *slog.Logger
	Recorder *metrics.Recorder
}

// Run executes one account until its quotation stream ends, a task fails,
// or sd broadcasts shutdown. It returns a non-nil error when a task failed.
func Run(ctx context.Context, book *account.Book, opts Opts, sd <-chan struct{}) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	acctID := book.AccountID()
	logger = logger.With("account", acctID)
	rec := opts.Recorder

	logger.Info("start running account", "type", book.Type())

	quot := opts.Quot
	interval := opts.Interval
	fatalFetch := book.Type() == types.AcctBacktest
	if quot == nil {
		if book.Type() == types.AcctBacktest {
			quot = quotation.NewBacktest(opts.QuotOpts, opts.Fetcher, opts.Store)
			interval = quotation.BacktestInterval
		} else {
			quot = quotation.NewRt(opts.QuotOpts, opts.Fetcher)
			interval = quotation.LiveInterval
		}
	} else if interval == 0 {
		interval = quotation.BacktestInterval
	}

	qr := quotation.NewRunner(quot, interval, fatalFetch, logger)
	sr := strategy.NewRunner(opts.Strategy, opts.StrategyOpts, book.Snapshot, logger)
	rr := risk.NewRunner(opts.Risk, opts.RiskOpts, book.Snapshot, book.IsTrading, logger)
	br := broker.NewRunner(opts.Broker, opts.BrokerOpts, logger)

	bar := newBarrier(5)
	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() { closeOnce.Do(func() { close(done) }) }

	except := make(chan types.TaskTarget, 1)
	var join sync.WaitGroup

	spawn := func(target types.TaskTarget, run func(context.Context, <-chan struct{}) error) {
		join.Add(1)
		go func() {
			defer join.Done()
			bar.wait()
			if err := run(ctx, done); err != nil {
				logger.Error("task failed", "task", target, "err", err)
				rec.RecordTaskException(acctID, string(target))
				select {
				case except <- target:
				default:
				}
				// The failed runner cannot drain its peers anymore, so the
				// broadcast happens here rather than in the hub loop.
				closeDone()
			}
		}()
	}

	spawn(types.TargetBroker, br.Run)
	spawn(types.TargetRisk, rr.Run)
	spawn(types.TargetStrategy, sr.Run)
	spawn(types.TargetQuotation, qr.Run)

	bar.wait()
	book.SetStatus(types.AcctRunning)
	rec.RecordAccountStarted()

	quotCh := qr.Quots()
	stratCh := sr.Events()
	riskCh := rr.Events()
	pushCh := br.Pushes()

	forward := func(ch chan<- *types.QuotData, q *types.QuotData) {
		select {
		case ch <- q:
		case <-done:
		}
	}
	toBroker := func(ev types.Event) {
		select {
		case br.Entrusts() <- ev:
		case <-done:
		}
	}
	handleSignal := func(sig *types.Signal) {
		book.OnSignal(sig)
		rec.RecordSignal(acctID, string(sig.Source.Type))

		entrust := account.NewEntrustFromSignal(sig)
		book.OnEntrust(entrust)
		rec.RecordEntrust(acctID, string(entrust.EntrustType))

		toBroker(types.NewEntrustEvent(entrust))
	}

	var (
		isExcept   bool
		failedTask types.TaskTarget
		quitSent   bool
	)

loop:
	for {
		if quotCh == nil && stratCh == nil && riskCh == nil {
			if pushCh == nil {
				break
			}
			if !quitSent {
				quitSent = true
				toBroker(types.NewNoneEvent(types.CmdQuit))
			}
		}

		select {
		case target := <-except:
			isExcept = true
			failedTask = target
			closeDone()
			break loop

		case q, ok := <-quotCh:
			if !ok {
				logger.Info("quotation task ended")
				quotCh = nil
				continue
			}
			book.OnQuot(q)
			rec.RecordQuotEvent(acctID, string(q.Event))
			if q.Event == types.QuotEventQuot {
				netValue, profit, positions := book.Aggregates()
				rec.RecordAccountState(acctID, netValue, profit, positions)
			}

			forward(sr.Quots(), q)
			forward(rr.Quots(), q)

			if q.Event == types.QuotEventEnd {
				logger.Info("quotation stream end")
				quotCh = nil
			}

		case ev, ok := <-stratCh:
			if !ok {
				logger.Info("strategy task ended")
				stratCh = nil
				continue
			}
			switch ev.Type {
			case types.EventSignal:
				handleSignal(ev.Signal)
			case types.EventSubscribe:
				if quotCh != nil {
					select {
					case qr.Subscribe() <- ev:
					case <-done:
					}
				}
			default:
				logger.Warn("unexpected strategy event", "type", ev.Type)
			}

		case ev, ok := <-riskCh:
			if !ok {
				logger.Info("risk task ended")
				riskCh = nil
				continue
			}
			switch ev.Type {
			case types.EventSignal:
				handleSignal(ev.Signal)
			default:
				logger.Warn("unexpected risk event", "type", ev.Type)
			}

		case ev, ok := <-pushCh:
			if !ok {
				logger.Info("broker task ended")
				pushCh = nil
				continue
			}
			if ev.Type != types.EventBroker || ev.Broker == nil {
				logger.Warn("unexpected broker push", "type", ev.Type)
				continue
			}
			book.OnBrokerPush(ev.Broker)
			if ev.Broker.Type == types.BrokerPushEntrust && ev.Broker.Entrust != nil {
				if ev.Broker.Entrust.Status == types.EntrustStatusDeal ||
					ev.Broker.Entrust.Status == types.EntrustStatusPartDeal {
					rec.RecordDeal(acctID, string(ev.Broker.Entrust.EntrustType))
				}
			}

		case <-sd:
			logger.Info("external shutdown")
			closeDone()
			break loop
		}
	}

	closeDone()
	logger.Info("waiting for subtasks")
	join.Wait()

	// A failure may have landed after the loop exited on closed channels.
	if !isExcept {
		select {
		case failedTask = <-except:
			isExcept = true
		default:
		}
	}

	book.SetStatus(types.AcctStopped)
	rec.RecordAccountStopped()
	logger.Info("account stopped")

	if isExcept {
		return fmt.Errorf("account %s: %s task failed", acctID, failedTask)
	}
	return nil
}
