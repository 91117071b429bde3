package metrics

import "github.com/shopspring/decimal"

// Recorder provides methods for recording engine metrics. A nil Recorder is
// a no-op, so callers never guard.
type Recorder struct{}

// NewRecorder creates a metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordAccountStarted marks an account as running.
func (r *Recorder) RecordAccountStarted() {
	if r == nil {
		return
	}
	AccountsRunning.Inc()
}

// RecordAccountStopped marks an account as stopped.
func (r *Recorder) RecordAccountStopped() {
	if r == nil {
		return
	}
	AccountsRunning.Dec()
}

// RecordQuotEvent records one quotation event dispatch.
func (r *Recorder) RecordQuotEvent(account, event string) {
	if r == nil {
		return
	}
	QuotEventsTotal.WithLabelValues(account, event).Inc()
}

// RecordSignal records a signal arriving at the hub.
func (r *Recorder) RecordSignal(account, source string) {
	if r == nil {
		return
	}
	SignalsTotal.WithLabelValues(account, source).Inc()
}

// RecordEntrust records an entrust forwarded to the broker.
func (r *Recorder) RecordEntrust(account, typ string) {
	if r == nil {
		return
	}
	EntrustsTotal.WithLabelValues(account, typ).Inc()
}

// RecordDeal records a fill applied to the account.
func (r *Recorder) RecordDeal(account, typ string) {
	if r == nil {
		return
	}
	DealsTotal.WithLabelValues(account, typ).Inc()
}

// RecordTaskException records a runner failure.
func (r *Recorder) RecordTaskException(account, task string) {
	if r == nil {
		return
	}
	TaskExceptionsTotal.WithLabelValues(account, task).Inc()
}

// RecordAccountState records the post-bar account aggregates.
func (r *Recorder) RecordAccountState(account string, netValue, profit decimal.Decimal, positions int) {
	if r == nil {
		return
	}
	AccountNetValue.WithLabelValues(account).Set(netValue.InexactFloat64())
	AccountProfit.WithLabelValues(account).Set(profit.InexactFloat64())
	PositionsOpen.WithLabelValues(account).Set(float64(positions))
}
