// Package history provides the historical-bar store backed by SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/quantfisher/ashare-trader/internal/fetch"
	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Collection names the queryable bar collections.
type Collection string

const (
	CollStockDaily Collection = "stock_daily"
	CollIndexDaily Collection = "index_daily"
)

const connectTimeout = 3 * time.Second

// Store is the SQLite-backed history store.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS stock_daily (
			code TEXT NOT NULL,
			trade_date DATETIME NOT NULL,
			open TEXT NOT NULL,
			high TEXT NOT NULL,
			low TEXT NOT NULL,
			close TEXT NOT NULL,
			volume INTEGER NOT NULL DEFAULT 0,
			turnover TEXT NOT NULL DEFAULT '0',
			PRIMARY KEY (code, trade_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_daily_code ON stock_daily(code, trade_date)`,

		`CREATE TABLE IF NOT EXISTS index_daily (
			code TEXT NOT NULL,
			trade_date DATETIME NOT NULL,
			open TEXT NOT NULL,
			high TEXT NOT NULL,
			low TEXT NOT NULL,
			close TEXT NOT NULL,
			volume INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (code, trade_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_index_daily_code ON index_daily(code, trade_date)`,
	}

	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

// CollectionFor returns the daily collection a code belongs to.
func CollectionFor(code string) Collection {
	if fetch.IsIndex(code) {
		return CollIndexDaily
	}
	return CollStockDaily
}

// FindDaily returns daily bars for a code, optionally bounded by
// [start,end] (inclusive), ordered by trade_date ascending.
func (s *Store) FindDaily(ctx context.Context, coll Collection, code string, start, end *time.Time) ([]fetch.StockBar, error) {
	if coll != CollStockDaily && coll != CollIndexDaily {
		return nil, fmt.Errorf("unknown collection: %s", coll)
	}

	query := `SELECT trade_date, open, high, low, close, volume FROM ` + string(coll) + ` WHERE code = ?`
	args := []any{code}
	if start != nil {
		query += ` AND trade_date >= ?`
		args = append(args, *start)
	}
	if end != nil {
		query += ` AND trade_date <= ?`
		args = append(args, *end)
	}
	query += ` ORDER BY trade_date ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll, err)
	}
	defer rows.Close()

	var bars []fetch.StockBar
	for rows.Next() {
		var (
			bar  fetch.StockBar
			open, high, low, cls string
		)
		if err := rows.Scan(&bar.Time, &open, &high, &low, &cls, &bar.Vol); err != nil {
			return nil, fmt.Errorf("scan %s: %w", coll, err)
		}
		if bar.Open, err = decimal.NewFromString(open); err != nil {
			return nil, fmt.Errorf("parse open: %w", err)
		}
		if bar.High, err = decimal.NewFromString(high); err != nil {
			return nil, fmt.Errorf("parse high: %w", err)
		}
		if bar.Low, err = decimal.NewFromString(low); err != nil {
			return nil, fmt.Errorf("parse low: %w", err)
		}
		if bar.Close, err = decimal.NewFromString(cls); err != nil {
			return nil, fmt.Errorf("parse close: %w", err)
		}
		bars = append(bars, bar)
	}
	return bars, rows.Err()
}

// SaveDaily inserts or replaces one daily bar. The tests use it to seed
// fixtures.
func (s *Store) SaveDaily(ctx context.Context, coll Collection, code string, bar fetch.StockBar) error {
	if coll != CollStockDaily && coll != CollIndexDaily {
		return fmt.Errorf("unknown collection: %s", coll)
	}

	query := `INSERT OR REPLACE INTO ` + string(coll) + ` (code, trade_date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		code,
		bar.Time,
		bar.Open.String(),
		bar.High.String(),
		bar.Low.String(),
		bar.Close.String(),
		bar.Vol,
	)
	if err != nil {
		return fmt.Errorf("insert %s: %w", coll, err)
	}
	return nil
}
