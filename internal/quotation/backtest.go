package quotation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/quantfisher/ashare-trader/internal/fetch"
	"github.com/quantfisher/ashare-trader/internal/history"
	"github.com/quantfisher/ashare-trader/internal/types"
)

// HistoryStore is the slice of the history store the replay engine needs.
type HistoryStore interface {
	FindDaily(ctx context.Context, coll history.Collection, code string, start, end *time.Time) ([]fetch.StockBar, error)
}

// BacktestQuotation replays persisted bars in chronological order, driving
// the session machine with a synthetic clock derived from each bar's end
// timestamp.
type BacktestQuotation struct {
	session

	fetcher fetch.Fetcher
	store   HistoryStore

	barIndex map[int64]types.QuotBarMap
	keys     []int64
	idx      int
	loaded   map[string]struct{}

	now func() time.Time
}

// NewBacktest creates a replay quotation engine. Intraday frequencies load
// from the fetcher; daily bars load from the history store.
func NewBacktest(opts types.QuotOpts, fetcher fetch.Fetcher, store HistoryStore) *BacktestQuotation {
	return &BacktestQuotation{
		session:  newSession(opts, fetch.IsTradeDate),
		fetcher:  fetcher,
		store:    store,
		barIndex: make(map[int64]types.QuotBarMap),
		loaded:   make(map[string]struct{}),
		now:      time.Now,
	}
}

// AddCodes loads history for any new codes and merges it into the replay
// index. Replay order stays ascending by bar end timestamp.
func (q *BacktestQuotation) AddCodes(ctx context.Context, codes []string) error {
	if !types.ValidFrequency(q.opts.Frequency) {
		return fmt.Errorf("%w: %d", types.ErrBadFrequency, q.opts.Frequency)
	}
	q.addCodes(codes)

	for _, code := range q.opts.Codes {
		if _, ok := q.loaded[code]; ok {
			continue
		}
		q.loaded[code] = struct{}{}

		bars, err := q.loadBars(ctx, code)
		if err != nil {
			return fmt.Errorf("load bars for %s: %w", code, err)
		}
		q.merge(code, bars)
	}

	q.keys = q.keys[:0]
	for t := range q.barIndex {
		q.keys = append(q.keys, t)
	}
	sort.Slice(q.keys, func(i, j int) bool { return q.keys[i] < q.keys[j] })
	return nil
}

func (q *BacktestQuotation) loadBars(ctx context.Context, code string) ([]fetch.StockBar, error) {
	if q.opts.Frequency < types.Freq1Day {
		return q.fetcher.FetchStockMinute(ctx, code, int(q.opts.Frequency/60))
	}
	if q.store == nil {
		return nil, nil
	}
	return q.store.FindDaily(ctx, history.CollectionFor(code), code, q.opts.StartDate, q.opts.EndDate)
}

func (q *BacktestQuotation) merge(code string, bars []fetch.StockBar) {
	for _, bar := range bars {
		t := bar.Time.Unix()
		slot, ok := q.barIndex[t]
		if !ok {
			slot = make(types.QuotBarMap)
			q.barIndex[t] = slot
		}
		if _, ok := slot[code]; ok {
			continue
		}

		slot[code] = &types.QuotBar{
			Frequency: q.opts.Frequency,
			Open:      bar.Open,
			High:      bar.High,
			Low:       bar.Low,
			Close:     bar.Close,
			Start:     bar.Time.Add(-time.Duration(q.opts.Frequency) * time.Second),
			End:       bar.Time,
			Quot: types.Quot{
				Code: code,
				Open: bar.Open,
				Now:  bar.Close,
				High: bar.High,
				Low:  bar.Low,
				Buy:  bar.Close,
				Sell: bar.Close,
				Vol:  bar.Vol,
				Time: bar.Time,
			},
		}
	}
}

// GetQuot returns the next replay event. After the index drains it finishes
// the final date's phases, emits QuotEnd once, then returns nothing further.
func (q *BacktestQuotation) GetQuot(ctx context.Context) (*types.QuotData, error) {
	if len(q.barIndex) == 0 && len(q.opts.Codes) > 0 && len(q.loaded) == 0 {
		if err := q.AddCodes(ctx, q.opts.Codes); err != nil {
			return nil, err
		}
	}

	if !q.isStart {
		q.isStart = true
		return types.NewQuotStatus(types.QuotEventStart, q.opts, q.now()), nil
	}

	if q.idx >= len(q.keys) {
		if len(q.keys) == 0 {
			return nil, nil
		}
		n := q.replayClock(q.keys[len(q.keys)-1], true)
		if be := q.baseEvent(n); be != nil {
			return be, nil
		}
		if !q.isEnd {
			q.isEnd = true
			return types.NewQuotStatus(types.QuotEventEnd, q.opts, n), nil
		}
		return nil, nil
	}

	t := q.keys[q.idx]
	n := q.replayClock(t, false)
	if be := q.baseEvent(n); be != nil {
		return be, nil
	}
	if q.tradeDate == nil {
		// Bar stored on a non-trading date: skip it.
		q.idx++
		return nil, nil
	}
	if len(q.opts.Codes) == 0 {
		return nil, nil
	}

	bars := q.barIndex[t]
	q.idx++
	return types.NewQuotBars(bars), nil
}

// replayClock derives the synthetic clock for a bar key. Daily bars carry a
// midnight timestamp, so the clock is shifted to the session open during
// replay and to the session close when draining the final date.
func (q *BacktestQuotation) replayClock(t int64, drain bool) time.Time {
	n := time.Unix(t, 0)
	if q.opts.Frequency != types.Freq1Day {
		return n
	}
	if drain {
		return n.Add(15 * time.Hour)
	}
	return n.Add(9*time.Hour + 30*time.Minute)
}

var _ Quotation = (*BacktestQuotation)(nil)
