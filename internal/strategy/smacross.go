package strategy

import (
	"context"
	"strconv"

	"github.com/quantfisher/ashare-trader/internal/types"
	"github.com/quantfisher/ashare-trader/pkg/indicator"
)

// SMACross trades a close-over-SMA crossover: buy when the close crosses
// above its moving average, sell the available volume when it crosses
// below.
type SMACross struct {
	period int
	volume int64

	sma   map[string]*indicator.SMA
	above map[string]bool
}

// NewSMACross creates the strategy with a 20-bar average and 100-share lots.
func NewSMACross() *SMACross {
	return &SMACross{
		period: 20,
		volume: 100,
		sma:    make(map[string]*indicator.SMA),
		above:  make(map[string]bool),
	}
}

func (s *SMACross) Name() string { return "smacross" }

func (s *SMACross) OnInit(_ context.Context, _ *types.Account, opts map[string]string) error {
	if v, ok := opts["period"]; ok {
		p, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		s.period = p
	}
	if v, ok := opts["volume"]; ok {
		vol, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		s.volume = vol
	}
	return nil
}

func (s *SMACross) OnDestroy(context.Context) error { return nil }

func (s *SMACross) OnOpen(context.Context, *types.Account, *types.QuotData) ([]types.Event, error) {
	return nil, nil
}

func (s *SMACross) OnClose(context.Context, *types.Account, *types.QuotData) ([]types.Event, error) {
	return nil, nil
}

func (s *SMACross) OnQuot(_ context.Context, acct *types.Account, quot *types.QuotData) ([]types.Event, error) {
	var events []types.Event
	for code, bar := range quot.Bars {
		sma, ok := s.sma[code]
		if !ok {
			sma = indicator.NewSMA(s.period)
			s.sma[code] = sma
		}
		avg := sma.Update(bar.Close)
		if !sma.Ready() {
			continue
		}

		above := bar.Close.GreaterThan(avg)
		wasAbove := s.above[code]
		s.above[code] = above

		switch {
		case above && !wasAbove:
			events = append(events, types.NewSignalEvent(&types.Signal{
				Signal: types.SignalBuy,
				Name:   bar.Quot.Name,
				Code:   code,
				Time:   bar.End,
				Price:  bar.Close,
				Volume: s.volume,
				Desc:   "close crossed above sma",
			}))
		case !above && wasAbove:
			pos, ok := acct.Position[code]
			if !ok || pos.VolumeAvailable <= 0 {
				continue
			}
			events = append(events, types.NewSignalEvent(&types.Signal{
				Signal: types.SignalSell,
				Name:   bar.Quot.Name,
				Code:   code,
				Time:   bar.End,
				Price:  bar.Close,
				Volume: pos.VolumeAvailable,
				Desc:   "close crossed below sma",
			}))
		}
	}
	return events, nil
}

var _ Strategy = (*SMACross)(nil)
