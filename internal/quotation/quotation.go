// Package quotation implements the quotation engine: the session-phase state
// machine, tick-to-bar aggregation for live feeds, and chronological replay
// of persisted bars for backtests.
package quotation

import (
	"context"
	"time"

	"github.com/quantfisher/ashare-trader/internal/types"
)

// Quotation produces the ordered QuotData stream for one account.
// GetQuot returns at most one event per call; nil means nothing due yet.
type Quotation interface {
	// AddCodes extends the watched code set. Duplicates are ignored.
	AddCodes(ctx context.Context, codes []string) error

	// GetQuot returns the next due event, or nil.
	GetQuot(ctx context.Context) (*types.QuotData, error)
}

// Session phase times (local clock).
var (
	morningStart = clock{9, 30}
	morningEnd   = clock{11, 30}
	noonStart    = clock{13, 0}
	noonEnd      = clock{15, 0}

	phaseClocks = [4]clock{morningStart, morningEnd, noonStart, noonEnd}
	phaseEvents = [4]types.QuotEvent{
		types.QuotEventMorningStart,
		types.QuotEventMorningEnd,
		types.QuotEventNoonStart,
		types.QuotEventNoonEnd,
	}
)

type clock struct {
	hour, min int
}

func (c clock) on(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.hour, c.min, 0, 0, date.Location())
}

func (c clock) after(t time.Time) bool {
	return t.After(c.on(t))
}

// sameDate reports whether a and b fall on the same calendar day.
func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// tradeDateFunc is the trading-calendar oracle, swappable in tests.
type tradeDateFunc func(time.Time) bool

// session is the per-day phase state machine shared by both quotation modes.
// Phases are emitted exactly once per trade date, in ascending order, one
// per poll.
type session struct {
	opts types.QuotOpts

	isStart bool
	isEnd   bool

	tradeDate   *time.Time
	phases      [4]bool
	isTradeDate tradeDateFunc
}

func newSession(opts types.QuotOpts, oracle tradeDateFunc) session {
	return session{opts: opts, isTradeDate: oracle}
}

// isTrading reports whether the clock is inside a trading session:
// morning open..close or noon open..close.
func (s *session) isTrading() bool {
	return s.tradeDate != nil &&
		((s.phases[0] && !s.phases[1]) || (s.phases[2] && !s.phases[3]))
}

// emitPhase emits the first unemitted phase at or below idx, stamping it
// with t.
func (s *session) emitPhase(idx int, t time.Time) *types.QuotData {
	for i := 0; i <= idx; i++ {
		if !s.phases[i] {
			s.phases[i] = true
			return types.NewQuotStatus(phaseEvents[i], s.opts, t)
		}
	}
	return nil
}

// baseEvent advances the phase machine against clock now and returns the
// next due phase event, if any.
//
// When the cached trade date lags behind now, the missing phases of that
// date are drained first, one per call, each stamped with the date's
// canonical phase time.
func (s *session) baseEvent(now time.Time) *types.QuotData {
	if s.tradeDate != nil && !sameDate(*s.tradeDate, now) {
		for i := range s.phases {
			if !s.phases[i] {
				return s.emitPhase(i, phaseClocks[i].on(*s.tradeDate))
			}
		}
	}

	if s.tradeDate == nil || !sameDate(*s.tradeDate, now) {
		s.phases = [4]bool{}
		s.tradeDate = nil
		if !s.isTradeDate(now) {
			return nil
		}
		d := now
		s.tradeDate = &d
	}

	idx := 3
	switch {
	case morningStart.after(now) && !morningEnd.after(now):
		idx = 0
	case morningEnd.after(now) && !noonStart.after(now):
		idx = 1
	case noonStart.after(now) && !noonEnd.after(now):
		idx = 2
	}
	return s.emitPhase(idx, now)
}

// addCodes appends new codes to the subscription, ignoring duplicates.
func (s *session) addCodes(codes []string) []string {
	var added []string
	for _, code := range codes {
		if !containsCode(s.opts.Codes, code) {
			s.opts.Codes = append(s.opts.Codes, code)
			added = append(added, code)
		}
	}
	return added
}

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
