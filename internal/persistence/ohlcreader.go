package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/khautala/swingmaster/internal/ohlc"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// OHLCReader serves windowed market-data reads from a relational table
// with (ticker, date, open, high, low, close, market) columns.
type OHLCReader struct {
	store *Store
	table string
}

// NewOHLCReader validates the table identifier and wraps a store.
func NewOHLCReader(store *Store, table string) (*OHLCReader, error) {
	if table == "" {
		table = "ohlc_daily"
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid ohlc table identifier: %q", table)
	}
	return &OHLCReader{store: store, table: table}, nil
}

// LastN returns up to n bars at or before the as-of date, most recent
// first.
func (r *OHLCReader) LastN(ctx context.Context, ticker, asOfDate string, n int) (ohlc.Series, error) {
	if n <= 0 {
		return nil, fmt.Errorf("n must be positive")
	}
	if ticker == "" || asOfDate == "" {
		return nil, fmt.Errorf("ticker and as-of date must be non-empty")
	}
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()

	query := r.store.rebind(fmt.Sprintf(`
		SELECT date, open, high, low, close FROM %s
		WHERE ticker = ? AND date <= ?
		ORDER BY date DESC
		LIMIT ?`, r.table))
	rows, err := r.store.DB.QueryxContext(ctx, query, ticker, asOfDate, n)
	if err != nil {
		return nil, fmt.Errorf("read ohlc window: %w", err)
	}
	defer rows.Close()

	var series ohlc.Series
	for rows.Next() {
		var b ohlc.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close); err != nil {
			return nil, fmt.Errorf("scan ohlc row: %w", err)
		}
		series = append(series, b)
	}
	return series, rows.Err()
}

// ClosesFrom returns (date, close) pairs from a date onward, ascending.
func (r *OHLCReader) ClosesFrom(ctx context.Context, ticker, dateFrom string, limit int) ([]DatedClose, error) {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()
	query := r.store.rebind(fmt.Sprintf(`
		SELECT date, close FROM %s
		WHERE ticker = ? AND date >= ?
		ORDER BY date ASC
		LIMIT ?`, r.table))
	var out []DatedClose
	if err := r.store.DB.SelectContext(ctx, &out, query, ticker, dateFrom, limit); err != nil {
		return nil, fmt.Errorf("read closes: %w", err)
	}
	return out, nil
}

// ClosesAround returns (date, close) pairs in [dateFrom, dateTo],
// ascending. Used by the continuation pass which needs pre-entry history
// for the rolling SMA.
func (r *OHLCReader) ClosesAround(ctx context.Context, ticker, dateFrom, dateTo string) ([]DatedClose, error) {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()
	query := r.store.rebind(fmt.Sprintf(`
		SELECT date, close FROM %s
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`, r.table))
	var out []DatedClose
	if err := r.store.DB.SelectContext(ctx, &out, query, ticker, dateFrom, dateTo); err != nil {
		return nil, fmt.Errorf("read closes: %w", err)
	}
	return out, nil
}

// CloseOn returns the close on an exact date; ok=false when absent.
func (r *OHLCReader) CloseOn(ctx context.Context, ticker, date string) (float64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()
	query := r.store.rebind(fmt.Sprintf(`SELECT close FROM %s WHERE ticker = ? AND date = ?`, r.table))
	var close float64
	err := r.store.DB.GetContext(ctx, &close, query, ticker, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read close: %w", err)
	}
	return close, true, nil
}

// Market returns the market label of a ticker's latest row.
func (r *OHLCReader) Market(ctx context.Context, ticker string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()
	query := r.store.rebind(fmt.Sprintf(`
		SELECT COALESCE(market, '') FROM %s
		WHERE ticker = ?
		ORDER BY date DESC
		LIMIT 1`, r.table))
	var market string
	if err := r.store.DB.GetContext(ctx, &market, query, ticker); err != nil {
		return "", fmt.Errorf("read market: %w", err)
	}
	return market, nil
}

// TradingDays lists distinct dates with any OHLC row in [dateFrom,
// dateTo], ascending.
func (r *OHLCReader) TradingDays(ctx context.Context, dateFrom, dateTo string) ([]string, error) {
	if dateFrom > dateTo {
		return nil, fmt.Errorf("date_from must be <= date_to")
	}
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()
	query := r.store.rebind(fmt.Sprintf(`
		SELECT DISTINCT date FROM %s
		WHERE date >= ? AND date <= ?
		ORDER BY date`, r.table))
	var days []string
	if err := r.store.DB.SelectContext(ctx, &days, query, dateFrom, dateTo); err != nil {
		return nil, fmt.Errorf("list trading days: %w", err)
	}
	return days, nil
}

// Tickers lists distinct tickers, optionally filtered by market.
func (r *OHLCReader) Tickers(ctx context.Context, market string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()
	query := fmt.Sprintf(`SELECT DISTINCT ticker FROM %s ORDER BY ticker`, r.table)
	args := []any{}
	if market != "" {
		query = fmt.Sprintf(`SELECT DISTINCT ticker FROM %s WHERE market = ? ORDER BY ticker`, r.table)
		args = append(args, market)
	}
	var tickers []string
	if err := r.store.DB.SelectContext(ctx, &tickers, r.store.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list tickers: %w", err)
	}
	return tickers, nil
}

// InsertBar writes one OHLC row; loaders and tests only.
func (r *OHLCReader) InsertBar(ctx context.Context, ticker string, b ohlc.Bar, market string) error {
	ctx, cancel := context.WithTimeout(ctx, r.store.timeout)
	defer cancel()
	query := r.store.rebind(fmt.Sprintf(`
		INSERT INTO %s (ticker, date, open, high, low, close, market)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker, date) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			market = excluded.market`, r.table))
	if _, err := r.store.DB.ExecContext(ctx, query, ticker, b.Date, b.Open, b.High, b.Low, b.Close, market); err != nil {
		return fmt.Errorf("insert ohlc row: %w", err)
	}
	return nil
}

// DatedClose pairs a date with its close.
type DatedClose struct {
	Date  string  `db:"date"`
	Close float64 `db:"close"`
}
