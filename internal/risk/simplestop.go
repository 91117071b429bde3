package risk

import (
	"context"
	"fmt"

	"github.com/quantfisher/ashare-trader/internal/types"
	"github.com/shopspring/decimal"
)

// SimpleStop sells out a position when its profit or profit rate moves past
// configured stop-gain/stop-loss thresholds. All thresholds are optional
// and expressed as positive numbers.
type SimpleStop struct {
	lost       *decimal.Decimal
	lostRate   *decimal.Decimal
	profit     *decimal.Decimal
	profitRate *decimal.Decimal
}

// NewSimpleStop creates an unconfigured policy; thresholds come from opts.
func NewSimpleStop() *SimpleStop {
	return &SimpleStop{}
}

func (s *SimpleStop) Name() string { return "simple-stop" }

func (s *SimpleStop) OnInit(_ context.Context, _ *types.Account, opts map[string]string) error {
	parse := func(key string) (*decimal.Decimal, error) {
		v, ok := opts[key]
		if !ok {
			return nil, nil
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", key, err)
		}
		return &d, nil
	}

	var err error
	if s.profit, err = parse("profit"); err != nil {
		return err
	}
	if s.profitRate, err = parse("profit_rate"); err != nil {
		return err
	}
	if s.lost, err = parse("lost"); err != nil {
		return err
	}
	if s.lostRate, err = parse("lost_rate"); err != nil {
		return err
	}
	return nil
}

func (s *SimpleStop) OnDestroy(context.Context) error { return nil }

func (s *SimpleStop) OnRisk(_ context.Context, acct *types.Account, _ *types.QuotData) ([]*types.Signal, error) {
	if s.profit == nil && s.profitRate == nil && s.lost == nil && s.lostRate == nil {
		return nil, nil
	}

	var signals []*types.Signal
	for _, pos := range acct.Position {
		if pos.VolumeAvailable <= 0 {
			continue
		}
		if s.triggered(pos) {
			signals = append(signals, &types.Signal{
				Signal: types.SignalSell,
				Name:   pos.Name,
				Code:   pos.Code,
				Price:  pos.NowPrice,
				Volume: pos.VolumeAvailable,
				Desc:   "simple-stop threshold hit",
			})
		}
	}
	return signals, nil
}

func (s *SimpleStop) triggered(pos *types.Position) bool {
	if s.profit != nil && pos.Profit.IsPositive() && s.profit.IsPositive() && pos.Profit.GreaterThan(*s.profit) {
		return true
	}
	if s.profitRate != nil && pos.ProfitRate.IsPositive() && s.profitRate.IsPositive() && pos.ProfitRate.GreaterThan(*s.profitRate) {
		return true
	}
	if s.lost != nil && pos.Profit.IsNegative() && pos.Profit.LessThan(s.lost.Abs().Neg()) {
		return true
	}
	if s.lostRate != nil && pos.ProfitRate.IsNegative() && pos.ProfitRate.LessThan(s.lostRate.Abs().Neg()) {
		return true
	}
	return false
}

var _ Risk = (*SimpleStop)(nil)
