package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar frequencies in seconds.
const (
	Freq1Min  = 60
	Freq5Min  = 5 * 60
	Freq15Min = 15 * 60
	Freq30Min = 30 * 60
	Freq60Min = 60 * 60
	Freq1Day  = 24 * 60 * 60
)

// ValidFrequency reports whether freq is one of the supported bar widths.
func ValidFrequency(freq int64) bool {
	switch freq {
	case Freq1Min, Freq5Min, Freq15Min, Freq30Min, Freq60Min, Freq1Day:
		return true
	}
	return false
}

// PriceLevel is one rung of the bid/ask ladder.
type PriceLevel struct {
	Volume int64           `json:"volume"`
	Price  decimal.Decimal `json:"price"`
}

// Quot is one tick snapshot for a single code as delivered by the vendor feed.
type Quot struct {
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Open     decimal.Decimal `json:"open"`
	PreClose decimal.Decimal `json:"pre_close"`
	Now      decimal.Decimal `json:"now"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Buy      decimal.Decimal `json:"buy"`
	Sell     decimal.Decimal `json:"sell"`
	Vol      int64           `json:"vol"`
	Amount   decimal.Decimal `json:"amount"`
	Bid      [5]PriceLevel   `json:"bid"`
	Ask      [5]PriceLevel   `json:"ask"`
	Time     time.Time       `json:"time"`
}

// QuotBar is a frequency-width OHLC aggregate plus the latest tick snapshot.
type QuotBar struct {
	Frequency int64           `json:"frequency"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Start     time.Time       `json:"start"`
	End       time.Time       `json:"end"`

	Quot Quot `json:"quot"`
}

// QuotBarMap maps code to its bar for one emission window. All bars in one
// map share the same [start,end] window.
type QuotBarMap map[string]*QuotBar

// QuotOpts is a quotation subscription.
type QuotOpts struct {
	Kind      Kind       `json:"kind"`
	Frequency int64      `json:"frequency"`
	Codes     []string   `json:"codes"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// QuotEvent tags the variants of the quotation stream.
type QuotEvent string

const (
	QuotEventQuot         QuotEvent = "quot"
	QuotEventStart        QuotEvent = "quot_start"
	QuotEventMorningStart QuotEvent = "morning_start"
	QuotEventMorningEnd   QuotEvent = "morning_end"
	QuotEventNoonStart    QuotEvent = "noon_start"
	QuotEventNoonEnd      QuotEvent = "noon_end"
	QuotEventEnd          QuotEvent = "quot_end"
)

// QuotStatus is the payload carried by every non-bar quotation event.
type QuotStatus struct {
	Opts QuotOpts  `json:"opts"`
	Time time.Time `json:"time"`
}

// QuotData is one value on the quotation channel: either an aggregated bar
// map or a session boundary event.
type QuotData struct {
	Event  QuotEvent   `json:"event"`
	Bars   QuotBarMap  `json:"bars,omitempty"`
	Status *QuotStatus `json:"status,omitempty"`
}

// NewQuotBars wraps a bar map into a Quot variant.
func NewQuotBars(bars QuotBarMap) *QuotData {
	return &QuotData{Event: QuotEventQuot, Bars: bars}
}

// NewQuotStatus builds a session boundary event.
func NewQuotStatus(event QuotEvent, opts QuotOpts, t time.Time) *QuotData {
	return &QuotData{Event: event, Status: &QuotStatus{Opts: opts, Time: t}}
}
