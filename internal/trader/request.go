package trader

import (
	"fmt"
	"time"

	"github.com/quantfisher/ashare-trader/internal/types"
)

// SpawnRequest is one account spawn order as received on the listen port.
type SpawnRequest struct {
	AccountID string         `json:"account_id"`
	Type      types.AcctType `json:"type"`
	Kind      types.Kind     `json:"kind,omitempty"`
	InitCash  float64        `json:"init_cash,omitempty"`

	Frequency int64    `json:"frequency"`
	Codes     []string `json:"codes"`
	StartDate string   `json:"start_date,omitempty"`
	EndDate   string   `json:"end_date,omitempty"`

	Strategy     string            `json:"strategy"`
	StrategyOpts map[string]string `json:"strategy_opts,omitempty"`
	Risk         string            `json:"risk,omitempty"`
	RiskOpts     map[string]string `json:"risk_opts,omitempty"`
	Broker       string            `json:"broker,omitempty"`
	BrokerOpts   map[string]string `json:"broker_opts,omitempty"`
}

// Validate checks the request shape.
func (r *SpawnRequest) Validate() error {
	if r.AccountID == "" {
		return fmt.Errorf("account_id is required")
	}
	switch r.Type {
	case types.AcctBacktest, types.AcctSimulation, types.AcctReal:
	default:
		return fmt.Errorf("type '%s' is not supported", r.Type)
	}
	if !types.ValidFrequency(r.Frequency) {
		return fmt.Errorf("%w: %d", types.ErrBadFrequency, r.Frequency)
	}
	if len(r.Codes) == 0 {
		return types.ErrNoCodes
	}
	if r.Strategy == "" {
		return fmt.Errorf("strategy is required")
	}
	for _, field := range []struct{ name, val string }{
		{"start_date", r.StartDate},
		{"end_date", r.EndDate},
	} {
		if field.val == "" {
			continue
		}
		if _, err := time.ParseInLocation("2006-01-02", field.val, time.Local); err != nil {
			return fmt.Errorf("parse %s: %w", field.name, err)
		}
	}
	return nil
}

// QuotOpts derives the subscription from the request.
func (r *SpawnRequest) QuotOpts(defaultKind types.Kind) types.QuotOpts {
	kind := r.Kind
	if kind == "" {
		kind = defaultKind
	}
	opts := types.QuotOpts{
		Kind:      kind,
		Frequency: r.Frequency,
		Codes:     append([]string(nil), r.Codes...),
	}
	if r.StartDate != "" {
		t, _ := time.ParseInLocation("2006-01-02", r.StartDate, time.Local)
		opts.StartDate = &t
	}
	if r.EndDate != "" {
		t, _ := time.ParseInLocation("2006-01-02", r.EndDate, time.Local)
		opts.EndDate = &t
	}
	return opts
}
