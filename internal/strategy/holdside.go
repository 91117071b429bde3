package strategy

import (
	"context"
	"strconv"

	"github.com/quantfisher/ashare-trader/internal/types"
)

// Holdside buys a fixed lot of every watched code on its first bar and
// holds. Useful as a plugin smoke test and as a benchmark baseline.
type Holdside struct {
	volume int64
	bought map[string]bool
}

// NewHoldside creates a holdside strategy with the default lot of 100.
func NewHoldside() *Holdside {
	return &Holdside{volume: 100, bought: make(map[string]bool)}
}

func (h *Holdside) Name() string { return "holdside" }

func (h *Holdside) OnInit(_ context.Context, _ *types.Account, opts map[string]string) error {
	if v, ok := opts["volume"]; ok {
		vol, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		h.volume = vol
	}
	return nil
}

func (h *Holdside) OnDestroy(context.Context) error { return nil }

func (h *Holdside) OnOpen(context.Context, *types.Account, *types.QuotData) ([]types.Event, error) {
	return nil, nil
}

func (h *Holdside) OnClose(context.Context, *types.Account, *types.QuotData) ([]types.Event, error) {
	return nil, nil
}

func (h *Holdside) OnQuot(_ context.Context, _ *types.Account, quot *types.QuotData) ([]types.Event, error) {
	var events []types.Event
	for code, bar := range quot.Bars {
		if h.bought[code] {
			continue
		}
		h.bought[code] = true
		events = append(events, types.NewSignalEvent(&types.Signal{
			Signal: types.SignalBuy,
			Name:   bar.Quot.Name,
			Code:   code,
			Time:   bar.End,
			Price:  bar.Close,
			Volume: h.volume,
			Desc:   "holdside initial buy",
		}))
	}
	return events, nil
}

var _ Strategy = (*Holdside)(nil)
