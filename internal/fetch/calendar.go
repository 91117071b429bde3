package fetch

import (
	"bufio"
	"os"
	"strings"
	"sync"
	"time"
)

// TradeDateEnv names the environment variable pointing at the trade-date
// calendar file, one YYYY-MM-DD date per line.
const TradeDateEnv = "TRADER_TRADE_DATE"

var (
	calendarOnce sync.Once
	calendar     map[string]struct{}
)

func loadCalendar() {
	path := os.Getenv(TradeDateEnv)
	if path == "" {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	calendar = make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		d := strings.TrimSpace(scanner.Text())
		if d == "" || strings.HasPrefix(d, "#") {
			continue
		}
		calendar[d] = struct{}{}
	}
}

// IsTradeDate reports whether t falls on a trading day. The calendar file is
// loaded once; without one, weekdays count as trading days.
func IsTradeDate(t time.Time) bool {
	calendarOnce.Do(loadCalendar)

	if calendar == nil {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	_, ok := calendar[t.Format("2006-01-02")]
	return ok
}

// resetCalendar clears the cached calendar. Test hook.
func resetCalendar() {
	calendarOnce = sync.Once{}
	calendar = nil
}
