package risk

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

// IsTradingFunc reports whether the account is inside a trading session.
type IsTradingFunc func() bool

// Runner hosts a risk policy as the account's risk task.
//
// The policy only evaluates while the account is trading: position state is
// only coherent between session open and close.
type Runner struct {
	policy    Risk
	opts      map[string]string
	snapshot  SnapshotFunc
	isTrading IsTradingFunc
	logger    *slog.Logger

	quots chan *types.QuotData
	out   chan types.Event
}

// NewRunner creates the risk task. A nil policy yields a pass-through task
// that applies no risk control.
func NewRunner(policy Risk, opts map[string]string, snapshot SnapshotFunc, isTrading IsTradingFunc, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if policy != nil {
		logger = logger.With("risk", policy.Name())
	}
	return &Runner{
		policy:    policy,
		opts:      opts,
		snapshot:  snapshot,
		isTrading: isTrading,
		logger:    logger,
		quots:     make(chan *types.QuotData, 64),
		out:       make(chan types.Event, 16),
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

// Run drains incoming quots until quot-end or shutdown. The outgoing
// channel is closed on exit so the hub observes risk-end.
func (r *Runner) Run(ctx context.Context, done <-chan struct{}) error {
	defer close(r.out)

	if r.policy == nil {
		r.logger.Info("no risk policy, running pass-through")
		return r.runPassthrough(done)
	}

	if err := r.policy.OnInit(ctx, r.snapshot(), r.opts); err != nil {
		return fmt.Errorf("%w: risk %s: %v", types.ErrPluginInit, r.policy.Name(), err)
	}
	defer func() {
		if err := r.policy.OnDestroy(ctx); err != nil {
			r.logger.Error("risk destroy failed", "err", err)
		}
	}()

	for {
		select {
		case <-done:
			r.logger.Info("risk task shutdown")
			return nil
		case quot, ok := <-r.quots:
			if !ok {
				r.logger.Info("risk quot channel closed")
				return nil
			}
			if quot.Event == types.QuotEventEnd {
				r.logger.Info("risk sees quot end")
				return nil
			}
			if quot.Event != types.QuotEventQuot || !r.isTrading() {
				continue
			}

			signals, err := r.policy.OnRisk(ctx, r.snapshot(), quot)
			if err != nil {
				return fmt.Errorf("risk %s: %w", r.policy.Name(), err)
			}
			r.emit(done, signals)
		}
	}
}

func (r *Runner) runPassthrough(done <-chan struct{}) error {
	for {
		select {
		case <-done:
			return nil
		case quot, ok := <-r.quots:
			if !ok {
				return nil
			}
			if quot.Event == types.QuotEventEnd {
				return nil
			}
		}
	}
}

// emit stamps attribution and forwards signals to the hub.
func (r *Runner) emit(done <-chan struct{}, signals []*types.Signal) {
	for _, sig := range signals {
		sig.SignalID = uuid.NewString()
		sig.Source = types.SignalSource{Type: types.SourceRisk, Name: r.policy.Name()}
		if sig.Time.IsZero() {
			sig.Time = time.Now()
		}
		select {
		case r.out <- types.NewSignalEvent(sig):
		case <-done:
			return
		}
	}
}
