package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantfisher/ashare-trader/internal/types"
)

// PollInterval is the period of the broker self-poll.
const PollInterval = 3 * time.Second

// Runner hosts a broker adapter as the account's broker task.
type Runner struct {
	broker Broker
	opts   map[string]string
	logger *slog.Logger

	poll time.Duration

	in  chan types.Event
	out chan types.Event
}

// NewRunner creates the broker task.
func NewRunner(b Broker, opts map[string]string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		broker: b,
		opts:   opts,
		logger: logger.With("broker", b.Name()),
		poll:   PollInterval,
		in:     make(chan types.Event, 64),
		out:    make(chan types.Event, 64),
	}
}

// Entrusts returns the channel accepting entrust events (and the QUIT
// sentinel).
func (r *Runner) Entrusts() chan<- types.Event {
	return r.in
}

// Pushes returns the outgoing broker push stream. Closed when the task
// exits.
func (r *Runner) Pushes() <-chan types.Event {
	return r.out
}

// Run routes entrusts to the broker and polls it until the QUIT sentinel or
// shutdown arrives. The push channel is closed on exit so the hub observes
// broker-end; the broker drains outstanding entrusts before quitting.
func (r *Runner) Run(ctx context.Context, done <-chan struct{}) error {
	defer close(r.out)

	push := func(ev *types.BrokerEvent) {
		select {
		case r.out <- types.NewBrokerPushEvent(ev):
		case <-done:
		}
	}

	if err := r.broker.OnInit(ctx, push, r.opts); err != nil {
		return fmt.Errorf("%w: broker %s: %v", types.ErrPluginInit, r.broker.Name(), err)
	}
	defer func() {
		if err := r.broker.OnDestroy(ctx); err != nil {
			r.logger.Error("broker destroy failed", "err", err)
		}
	}()

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			r.logger.Info("broker task shutdown")
			return nil
		case ev := <-r.in:
			switch ev.Type {
			case types.EventEntrust:
				if ev.Entrust == nil {
					continue
				}
				if err := r.broker.OnEntrust(ctx, ev.Entrust); err != nil {
					return fmt.Errorf("broker %s entrust: %w", r.broker.Name(), err)
				}
			case types.EventNone:
				if ev.Cmd == types.CmdQuit {
					r.logger.Info("broker quit")
					return nil
				}
			default:
				// Protocol violation: log and drop.
				r.logger.Warn("unexpected event on broker channel", "type", ev.Type)
			}
		case <-ticker.C:
			if err := r.broker.OnPoll(ctx); err != nil {
				return fmt.Errorf("broker %s poll: %w", r.broker.Name(), err)
			}
		}
	}
}
