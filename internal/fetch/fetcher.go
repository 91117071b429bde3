// Package fetch implements the market-data vendor clients.
//
// Fetcher is the contract the quotation engine consumes: one realtime
// snapshot call and one minute-bar history call. The concrete Sina client
// parses the vendor's text and JSON feeds.
package fetch

import (
	"context"
	"time"

	"github.com/quantfisher/ashare-trader/internal/types"
	"github.com/shopspring/decimal"
)

// StockBar is one historical OHLCV row as returned by the minute endpoint.
type StockBar struct {
	Time  time.Time
	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal
	Vol   int64
}

// Fetcher retrieves quotes from a market-data vendor.
type Fetcher interface {
	// FetchRtQuot returns one tick snapshot per requested code.
	FetchRtQuot(ctx context.Context, codes []string) (map[string]*types.Quot, error)

	// FetchStockMinute returns minute bars for a code, ordered by time
	// ascending. minutes is the bar width in minutes.
	FetchStockMinute(ctx context.Context, code string, minutes int) ([]StockBar, error)
}

// Market indexes carried by the vendor under stock-style codes.
var indexCodes = map[string]struct{}{
	"sh000001": {}, "sz399001": {}, "sz399006": {}, "sz399102": {},
	"sz399005": {}, "sh000300": {}, "sh000688": {}, "sz399673": {},
	"sz399550": {}, "sz399678": {}, "sz399007": {}, "sz399008": {},
}

// IsIndex reports whether code refers to a market index.
func IsIndex(code string) bool {
	_, ok := indexCodes[code]
	return ok
}
