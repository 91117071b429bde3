package alerting

import (
	"time"

	"github.com/quantfisher/ashare-trader/internal/types"
	"github.com/shopspring/decimal"
)

// SessionSummary condenses one account's day for the summary alert.
type SessionSummary struct {
	Date          time.Time
	AccountID     string
	NetValue      decimal.Decimal
	HoldValue     decimal.Decimal
	CloseProfit   decimal.Decimal
	TotalProfit   decimal.Decimal
	ProfitRatePct decimal.Decimal
	OpenPositions int
	Entrusts      int
	Deals         int
	WinningDeals  int
	LosingDeals   int
}

// NewSessionSummary derives the summary from an account snapshot.
func NewSessionSummary(date time.Time, acct *types.Account) SessionSummary {
	s := SessionSummary{
		Date:          date,
		AccountID:     acct.AccountID,
		NetValue:      acct.TotalNetValue,
		HoldValue:     acct.TotalHoldValue,
		CloseProfit:   acct.CloseProfit,
		TotalProfit:   acct.TotalProfit,
		ProfitRatePct: acct.TotalProfitRate,
		OpenPositions: len(acct.Position),
		Entrusts:      len(acct.Entrust),
		Deals:         len(acct.Deal),
	}
	for _, d := range acct.Deal {
		if d.DealType != types.EntrustSell {
			continue
		}
		if d.Profit.IsPositive() {
			s.WinningDeals++
		} else if d.Profit.IsNegative() {
			s.LosingDeals++
		}
	}
	return s
}

// Fields renders the summary as alert key/value fields.
func (s SessionSummary) Fields() []any {
	return []any{
		"account", s.AccountID,
		"date", s.Date.Format("2006-01-02"),
		"net_value", s.NetValue.StringFixed(2),
		"hold_value", s.HoldValue.StringFixed(2),
		"close_profit", s.CloseProfit.StringFixed(2),
		"total_profit", s.TotalProfit.StringFixed(2),
		"profit_rate_pct", s.ProfitRatePct.StringFixed(2),
		"positions", s.OpenPositions,
		"entrusts", s.Entrusts,
		"deals", s.Deals,
	}
}
