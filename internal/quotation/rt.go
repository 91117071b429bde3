package quotation

import (
	"context"
	"time"

	"github.com/quantfisher/ashare-trader/internal/fetch"
	"github.com/quantfisher/ashare-trader/internal/types"
)

// RtQuotation drives the session machine off the wall clock and aggregates
// vendor ticks into frequency-width bars.
type RtQuotation struct {
	session

	fetcher fetch.Fetcher
	bars    types.QuotBarMap

	// now is the clock source, swappable in tests.
	now func() time.Time
}

// NewRt creates a live quotation engine.
func NewRt(opts types.QuotOpts, fetcher fetch.Fetcher) *RtQuotation {
	return &RtQuotation{
		session: newSession(opts, fetch.IsTradeDate),
		fetcher: fetcher,
		now:     time.Now,
	}
}

// AddCodes extends the watched code set.
func (q *RtQuotation) AddCodes(_ context.Context, codes []string) error {
	q.addCodes(codes)
	return nil
}

// GetQuot returns the next due event: the one-time start marker, a session
// phase boundary, or an aggregated bar map once the current window closes.
func (q *RtQuotation) GetQuot(ctx context.Context) (*types.QuotData, error) {
	n := q.now()

	if !q.isStart {
		q.isStart = true
		return types.NewQuotStatus(types.QuotEventStart, q.opts, n), nil
	}

	if be := q.baseEvent(n); be != nil {
		return be, nil
	}
	if !q.isTrading() || len(q.opts.Codes) == 0 {
		return nil, nil
	}

	quots, err := q.fetcher.FetchRtQuot(ctx, q.opts.Codes)
	if err != nil {
		return nil, err
	}

	if bars := q.fold(quots, n); bars != nil {
		return types.NewQuotBars(bars), nil
	}
	return nil, nil
}

// fold merges one tick snapshot into the open bar table. When the window of
// the first code examined spans at least one frequency, the whole table is
// returned and cleared; all bars in it share the same window.
func (q *RtQuotation) fold(quots map[string]*types.Quot, n time.Time) types.QuotBarMap {
	if q.bars == nil {
		q.bars = make(types.QuotBarMap)
	}

	ready := false
	tested := false
	for code, tick := range quots {
		bar, ok := q.bars[code]
		if !ok {
			bar = &types.QuotBar{
				Frequency: q.opts.Frequency,
				Open:      tick.Now,
				High:      tick.Now,
				Low:       tick.Now,
				Close:     tick.Now,
				Start:     n,
				End:       n,
			}
			q.bars[code] = bar
		}

		if bar.High.LessThan(tick.Now) {
			bar.High = tick.Now
		}
		if bar.Low.GreaterThan(tick.Now) {
			bar.Low = tick.Now
		}
		bar.Close = tick.Now
		bar.End = tick.Time
		bar.Quot = *tick

		if !tested {
			tested = true
			if n.Unix()-bar.Start.Unix() >= q.opts.Frequency {
				ready = true
			}
		}
	}

	if !ready {
		return nil
	}
	out := q.bars
	q.bars = nil
	return out
}

var _ Quotation = (*RtQuotation)(nil)
