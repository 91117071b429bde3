package quotation

import (
	"context"
	"testing"
	"time"

	"github.com/quantfisher/ashare-trader/internal/fetch"
	"github.com/quantfisher/ashare-trader/internal/history"
	"github.com/quantfisher/ashare-trader/internal/types"
	"github.com/shopspring/decimal"
)

// fakeStore serves daily bars from memory, keyed by code.
type fakeStore struct {
	bars map[string][]fetch.StockBar
}

func (s *fakeStore) FindDaily(_ context.Context, _ history.Collection, code string, start, end *time.Time) ([]fetch.StockBar, error) {
	var out []fetch.StockBar
	for _, bar := range s.bars[code] {
		if start != nil && bar.Time.Before(*start) {
			continue
		}
		if end != nil && bar.Time.After(*end) {
			continue
		}
		out = append(out, bar)
	}
	return out, nil
}

func dailyBar(day time.Time, open, high, low, cls string, vol int64) fetch.StockBar {
	return fetch.StockBar{
		Time:  day,
		Open:  decimal.RequireFromString(open),
		High:  decimal.RequireFromString(high),
		Low:   decimal.RequireFromString(low),
		Close: decimal.RequireFromString(cls),
		Vol:   vol,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func newDailyBacktest(store *fakeStore, codes []string, start, end time.Time) *BacktestQuotation {
	q := NewBacktest(types.QuotOpts{
		Kind:      types.KindStock,
		Frequency: types.Freq1Day,
		Codes:     codes,
		StartDate: &start,
		EndDate:   &end,
	}, nil, store)
	q.isTradeDate = tradeDay
	return q
}

// drainStream collects the full replay output.
func drainStream(t *testing.T, q *BacktestQuotation, limit int) []*types.QuotData {
	t.Helper()
	var events []*types.QuotData
	for i := 0; i < limit; i++ {
		ev, err := q.GetQuot(context.Background())
		if err != nil {
			t.Fatalf("GetQuot: %v", err)
		}
		if ev == nil {
			return events
		}
		events = append(events, ev)
		if ev.Event == types.QuotEventEnd {
			// One extra poll proves the stream stays silent.
			extra, err := q.GetQuot(context.Background())
			if err != nil {
				t.Fatalf("GetQuot after end: %v", err)
			}
			if extra != nil {
				t.Fatalf("event after quot_end: %+v", extra)
			}
			return events
		}
	}
	t.Fatalf("stream did not terminate within %d polls", limit)
	return nil
}

func TestBacktestSingleDayStream(t *testing.T) {
	d := day(2022, 3, 1)
	store := &fakeStore{bars: map[string][]fetch.StockBar{
		"sh600063": {dailyBar(d, "10", "12", "9.5", "11", 1000)},
	}}
	q := newDailyBacktest(store, []string{"sh600063"}, d, d)

	events := drainStream(t, q, 20)

	want := []types.QuotEvent{
		types.QuotEventStart,
		types.QuotEventMorningStart,
		types.QuotEventMorningEnd,
		types.QuotEventNoonStart,
		types.QuotEventNoonEnd,
		types.QuotEventQuot,
		types.QuotEventEnd,
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, ev := range events {
		if ev.Event != want[i] {
			t.Errorf("event %d = %s, want %s", i, ev.Event, want[i])
		}
	}

	bar := events[5].Bars["sh600063"]
	if bar == nil {
		t.Fatal("bar missing")
	}
	if !bar.Open.Equal(decimal.RequireFromString("10")) ||
		!bar.High.Equal(decimal.RequireFromString("12")) ||
		!bar.Low.Equal(decimal.RequireFromString("9.5")) ||
		!bar.Close.Equal(decimal.RequireFromString("11")) {
		t.Errorf("OHLC = %s/%s/%s/%s, want 10/12/9.5/11",
			bar.Open, bar.High, bar.Low, bar.Close)
	}
	if bar.Low.GreaterThan(bar.Open) || bar.High.LessThan(bar.Close) {
		t.Error("bar violates OHLC ordering")
	}
	if bar.Quot.Vol != 1000 {
		t.Errorf("vol = %d, want 1000", bar.Quot.Vol)
	}
	if got := bar.End.Sub(bar.Start); got != 24*time.Hour {
		t.Errorf("bar window = %s, want 24h", got)
	}
}

func TestBacktestMultiDayOrdering(t *testing.T) {
	d1, d2 := day(2022, 3, 1), day(2022, 3, 2)
	store := &fakeStore{bars: map[string][]fetch.StockBar{
		"sh600063": {
			dailyBar(d1, "10", "11", "9", "10.5", 100),
			dailyBar(d2, "10.5", "12", "10", "11.5", 200),
		},
	}}
	q := newDailyBacktest(store, []string{"sh600063"}, d1, d2)

	events := drainStream(t, q, 30)

	// Per-date: phases strictly ascending, one quot per date, quot_end once.
	var quotTimes []time.Time
	phaseSeen := make(map[string][]types.QuotEvent)
	ends := 0
	for _, ev := range events {
		switch ev.Event {
		case types.QuotEventQuot:
			for _, bar := range ev.Bars {
				quotTimes = append(quotTimes, bar.End)
			}
		case types.QuotEventEnd:
			ends++
		case types.QuotEventStart:
		default:
			key := ev.Status.Time.Format("2006-01-02")
			phaseSeen[key] = append(phaseSeen[key], ev.Event)
		}
	}

	if ends != 1 {
		t.Errorf("quot_end emitted %d times, want exactly 1", ends)
	}
	if len(quotTimes) != 2 {
		t.Fatalf("got %d quots, want 2", len(quotTimes))
	}
	if !quotTimes[0].Before(quotTimes[1]) {
		t.Error("quots out of chronological order")
	}
	for date, phases := range phaseSeen {
		wantOrder := []types.QuotEvent{
			types.QuotEventMorningStart,
			types.QuotEventMorningEnd,
			types.QuotEventNoonStart,
			types.QuotEventNoonEnd,
		}
		if len(phases) != len(wantOrder) {
			t.Errorf("date %s: %d phases, want 4", date, len(phases))
			continue
		}
		for i, p := range phases {
			if p != wantOrder[i] {
				t.Errorf("date %s: phase %d = %s, want %s", date, i, p, wantOrder[i])
			}
		}
	}
}

func TestBacktestLazySubscribeMerges(t *testing.T) {
	d := day(2022, 3, 1)
	store := &fakeStore{bars: map[string][]fetch.StockBar{
		"sh600063": {dailyBar(d, "10", "12", "9.5", "11", 1000)},
		"sh601456": {dailyBar(d, "20", "21", "19", "20.5", 500)},
	}}
	q := newDailyBacktest(store, []string{"sh600063"}, d, d)

	if err := q.AddCodes(context.Background(), []string{"sh601456"}); err != nil {
		t.Fatalf("AddCodes: %v", err)
	}

	events := drainStream(t, q, 20)
	var bars types.QuotBarMap
	for _, ev := range events {
		if ev.Event == types.QuotEventQuot {
			bars = ev.Bars
		}
	}
	if bars == nil {
		t.Fatal("no quot emitted")
	}
	if len(bars) != 2 {
		t.Fatalf("bar map has %d codes, want 2", len(bars))
	}
	if bars["sh601456"] == nil || !bars["sh601456"].Close.Equal(decimal.RequireFromString("20.5")) {
		t.Error("merged code missing or wrong close")
	}
}

func TestBacktestRejectsBadFrequency(t *testing.T) {
	q := NewBacktest(types.QuotOpts{Frequency: 77}, nil, &fakeStore{})
	if err := q.AddCodes(context.Background(), []string{"sh600063"}); err == nil {
		t.Fatal("expected frequency validation error")
	}
}
