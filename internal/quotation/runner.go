package quotation

import (
	"context"
	"log/slog"
	"time"

	"github.com/quantfisher/ashare-trader/internal/types"
)

// Poll intervals per mode.
const (
	LiveInterval     = time.Second
	BacktestInterval = 50 * time.Millisecond
)

// Runner hosts a Quotation as the account's quotation task.
type Runner struct {
	quot     Quotation
	interval time.Duration
	logger   *slog.Logger

	out  chan *types.QuotData
	subs chan types.Event

	fatalFetch bool
}

// NewRunner creates the quotation task. fatalFetch makes fetch errors
// terminate the task (backtest determinism); live mode retries on the next
// tick instead.
func NewRunner(quot Quotation, interval time.Duration, fatalFetch bool, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		quot:       quot,
		interval:   interval,
		logger:     logger,
		out:        make(chan *types.QuotData, 64),
		subs:       make(chan types.Event, 16),
		fatalFetch: fatalFetch,
	}
}

// Quots returns the outgoing quotation stream. Closed when the task exits.
func (r *Runner) Quots() <-chan *types.QuotData {
	return r.out
}

// Subscribe returns the channel accepting Subscribe events.
func (r *Runner) Subscribe() chan<- types.Event {
	return r.subs
}

// Run polls the quotation until QuotEnd or shutdown. The outgoing channel
// is closed on exit so the hub observes quotation-end.
func (r *Runner) Run(ctx context.Context, done <-chan struct{}) error {
	defer close(r.out)

	for {
		select {
		case <-done:
			r.logger.Info("quotation task shutdown")
			return nil
		case ev := <-r.subs:
			r.handleEvent(ctx, ev)
			continue
		default:
		}

		q, err := r.quot.GetQuot(ctx)
		if err != nil {
			if r.fatalFetch {
				r.logger.Error("quotation fetch failed", "err", err)
				return err
			}
			r.logger.Warn("quotation fetch failed, retrying next tick", "err", err)
		}

		if q != nil {
			select {
			case r.out <- q:
			case <-done:
				r.logger.Info("quotation task shutdown")
				return nil
			}
			if q.Event == types.QuotEventEnd {
				r.logger.Info("quotation stream end")
				return nil
			}
		}

		select {
		case <-done:
			r.logger.Info("quotation task shutdown")
			return nil
		case ev := <-r.subs:
			r.handleEvent(ctx, ev)
		case <-time.After(r.interval):
		}
	}
}

func (r *Runner) handleEvent(ctx context.Context, ev types.Event) {
	switch ev.Type {
	case types.EventSubscribe:
		if err := r.quot.AddCodes(ctx, ev.Codes); err != nil {
			r.logger.Error("subscribe failed", "codes", ev.Codes, "err", err)
		}
	default:
		// Protocol violation: log and drop.
		r.logger.Warn("unexpected event on quotation channel", "type", ev.Type)
	}
}
