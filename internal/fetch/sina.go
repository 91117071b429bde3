package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/quantfisher/ashare-trader/internal/types"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	rtQuotURL = "https://hq.sinajs.cn/"
	minuteURL = "https://quotes.sina.cn/cn/api/json_v2.php/CN_MarketDataService.getKLineData"

	// The vendor rejects anonymous scripted clients.
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_12_6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/73.0.3683.86 Safari/537.36"
	referer   = "https://finance.sina.com.cn/"
)

// Sina fetches quotes from the Sina finance feed.
type Sina struct {
	http    *resty.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewSina creates a Sina fetcher. Requests are rate limited to stay under
// the vendor's throttling threshold.
func NewSina(logger *slog.Logger) *Sina {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("User-Agent", userAgent).
		SetHeader("Referer", referer)

	return &Sina{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		logger:  logger,
	}
}

// FetchRtQuot returns one snapshot per code from the text feed.
func (s *Sina) FetchRtQuot(ctx context.Context, codes []string) (map[string]*types.Quot, error) {
	if len(codes) == 0 {
		return map[string]*types.Quot{}, nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("format", "text").
		SetQueryParam("list", strings.Join(codes, ",")).
		Get(rtQuotURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrFetchFailed, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", types.ErrFetchFailed, resp.StatusCode())
	}

	return parseRtQuot(resp.String())
}

// parseRtQuot parses the vendor text payload, one "code=v1,v2,..." line per code.
func parseRtQuot(body string) (map[string]*types.Quot, error) {
	quots := make(map[string]*types.Quot)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		code, payload, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		fields := strings.Split(payload, ",")
		if len(fields) < 32 {
			return nil, fmt.Errorf("%w: %d fields for %s", types.ErrBadQuotPayload, len(fields), code)
		}

		q, err := parseQuotFields(code, fields)
		if err != nil {
			return nil, err
		}
		quots[q.Code] = q
	}
	return quots, nil
}

func parseQuotFields(code string, f []string) (*types.Quot, error) {
	var err error
	dec := func(s string) decimal.Decimal {
		if err != nil {
			return decimal.Zero
		}
		var d decimal.Decimal
		d, err = decimal.NewFromString(s)
		return d
	}
	num := func(s string) int64 {
		if err != nil {
			return 0
		}
		var n int64
		n, err = strconv.ParseInt(s, 10, 64)
		return n
	}

	q := &types.Quot{
		Code:     code,
		Name:     f[0],
		Open:     dec(f[1]),
		PreClose: dec(f[2]),
		Now:      dec(f[3]),
		High:     dec(f[4]),
		Low:      dec(f[5]),
		Buy:      dec(f[6]),
		Sell:     dec(f[7]),
		Vol:      num(f[8]),
		Amount:   dec(f[9]),
	}
	for i := 0; i < 5; i++ {
		q.Bid[i] = types.PriceLevel{Volume: num(f[10+i*2]), Price: dec(f[11+i*2])}
	}
	for i := 0; i < 5; i++ {
		q.Ask[i] = types.PriceLevel{Volume: num(f[20+i*2]), Price: dec(f[21+i*2])}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrBadQuotPayload, code, err)
	}

	t, perr := time.ParseInLocation("2006-01-02 15:04:05", f[30]+" "+f[31], time.Local)
	if perr != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrBadQuotPayload, code, perr)
	}
	q.Time = t

	return q, nil
}

// minuteBar is the wire shape of one row of the minute-bar JSON endpoint.
// All numeric fields arrive as strings.
type minuteBar struct {
	Day    string `json:"day"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

// FetchStockMinute returns minute bars for a code, ordered by time ascending.
func (s *Sina) FetchStockMinute(ctx context.Context, code string, minutes int) ([]StockBar, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var raw []minuteBar
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", code).
		SetQueryParam("scale", strconv.Itoa(minutes)).
		SetQueryParam("datalen", "1023").
		SetResult(&raw).
		Get(minuteURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrFetchFailed, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", types.ErrFetchFailed, resp.StatusCode())
	}

	bars := make([]StockBar, 0, len(raw))
	for _, r := range raw {
		bar, err := r.toStockBar()
		if err != nil {
			// One bad row does not invalidate the series.
			s.logger.Warn("skip malformed minute bar", "code", code, "day", r.Day, "err", err)
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func (m minuteBar) toStockBar() (StockBar, error) {
	var bar StockBar
	t, err := time.ParseInLocation("2006-01-02 15:04:05", m.Day, time.Local)
	if err != nil {
		return bar, fmt.Errorf("parse day: %w", err)
	}
	bar.Time = t

	if bar.Open, err = decimal.NewFromString(m.Open); err != nil {
		return bar, fmt.Errorf("parse open: %w", err)
	}
	if bar.High, err = decimal.NewFromString(m.High); err != nil {
		return bar, fmt.Errorf("parse high: %w", err)
	}
	if bar.Low, err = decimal.NewFromString(m.Low); err != nil {
		return bar, fmt.Errorf("parse low: %w", err)
	}
	if bar.Close, err = decimal.NewFromString(m.Close); err != nil {
		return bar, fmt.Errorf("parse close: %w", err)
	}
	if bar.Vol, err = strconv.ParseInt(m.Volume, 10, 64); err != nil {
		return bar, fmt.Errorf("parse volume: %w", err)
	}
	return bar, nil
}

var _ Fetcher = (*Sina)(nil)
