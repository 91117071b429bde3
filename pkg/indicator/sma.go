// Package indicator provides technical indicator calculations.
package indicator

import (
	"github.com/shopspring/decimal"
)

// SMA calculates a simple moving average over a fixed window.
type SMA struct {
	period int
	values []decimal.Decimal
	sum    decimal.Decimal
}

// NewSMA creates an SMA calculator with the given period.
func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{
		period: period,
		values: make([]decimal.Decimal, 0, period),
		sum:    decimal.Zero,
	}
}

// Update adds a new value and returns the current average. Returns zero
// until the window fills.
func (s *SMA) Update(value decimal.Decimal) decimal.Decimal {
	s.values = append(s.values, value)
	s.sum = s.sum.Add(value)

	if len(s.values) > s.period {
		s.sum = s.sum.Sub(s.values[0])
		s.values = s.values[1:]
	}

	if len(s.values) < s.period {
		return decimal.Zero
	}
	return s.sum.Div(decimal.NewFromInt(int64(s.period)))
}

// Ready reports whether the window has filled.
func (s *SMA) Ready() bool {
	return len(s.values) >= s.period
}

// Reset clears all data.
func (s *SMA) Reset() {
	s.values = s.values[:0]
	s.sum = decimal.Zero
}
