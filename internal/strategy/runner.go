package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/quantfisher/ashare-trader/internal/types"
)

// SnapshotFunc yields a read-only clone of the account.
type SnapshotFunc func() *types.Account

// Runner hosts a strategy as the account's strategy task.
type Runner struct {
	strat    Strategy
	opts     map[string]string
	snapshot SnapshotFunc
	logger   *slog.Logger

	quots chan *types.QuotData
	out   chan types.Event
}

// NewRunner creates the strategy task.
func NewRunner(strat Strategy, opts map[string]string, snapshot SnapshotFunc, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		strat:    strat,
		opts:     opts,
		snapshot: snapshot,
		logger:   logger.With("strategy", strat.Name()),
		quots:    make(chan *types.QuotData, 64),
		out:      make(chan types.Event, 16),
	}
}

// Quots returns the incoming quotation channel.
func (r *Runner) Quots() chan<- *types.QuotData {
	return r.quots
}

// Events returns the outgoing event stream. Closed when the task exits.
func (r *Runner) Events() <-chan types.Event {
	return r.out
}

// Run drives the strategy lifecycle until quot-end or shutdown. The
// outgoing channel is closed on exit so the hub observes strategy-end.
func (r *Runner) Run(ctx context.Context, done <-chan struct{}) error {
	defer close(r.out)

	if err := r.strat.OnInit(ctx, r.snapshot(), r.opts); err != nil {
		return fmt.Errorf("%w: strategy %s: %v", types.ErrPluginInit, r.strat.Name(), err)
	}
	defer func() {
		if err := r.strat.OnDestroy(ctx); err != nil {
			r.logger.Error("strategy destroy failed", "err", err)
		}
	}()

	for {
		select {
		case <-done:
			r.logger.Info("strategy task shutdown")
			return nil
		case quot, ok := <-r.quots:
			if !ok {
				r.logger.Info("strategy quot channel closed")
				return nil
			}

			events, err := r.dispatch(ctx, quot)
			if err != nil {
				return fmt.Errorf("strategy %s: %w", r.strat.Name(), err)
			}
			r.emit(done, events)

			if quot.Event == types.QuotEventEnd {
				r.logger.Info("strategy sees quot end")
				return nil
			}
		}
	}
}

func (r *Runner) dispatch(ctx context.Context, quot *types.QuotData) ([]types.Event, error) {
	acct := r.snapshot()
	switch quot.Event {
	case types.QuotEventQuot:
		return r.strat.OnQuot(ctx, acct, quot)
	case types.QuotEventStart, types.QuotEventMorningStart, types.QuotEventNoonStart:
		return r.strat.OnOpen(ctx, acct, quot)
	case types.QuotEventMorningEnd, types.QuotEventNoonEnd, types.QuotEventEnd:
		return r.strat.OnClose(ctx, acct, quot)
	}
	return nil, nil
}

// emit stamps attribution on signal events and forwards everything to the
// hub.
func (r *Runner) emit(done <-chan struct{}, events []types.Event) {
	for _, ev := range events {
		if ev.Type == types.EventSignal && ev.Signal != nil {
			ev.Signal.SignalID = uuid.NewString()
			ev.Signal.Source = types.SignalSource{Type: types.SourceStrategy, Name: r.strat.Name()}
			if ev.Signal.Time.IsZero() {
				ev.Signal.Time = time.Now()
			}
		}
		select {
		case r.out <- ev:
		case <-done:
			return
		}
	}
}
