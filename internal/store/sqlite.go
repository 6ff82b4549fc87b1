package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tyche/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ OptionStore = (*SQLiteStore)(nil)
var _ BarStore = (*SQLiteStore)(nil)
var _ Source = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS option_quotes (
	key              TEXT NOT NULL,
	data_date        TEXT NOT NULL,
	underlying       TEXT NOT NULL,
	underlying_price TEXT NOT NULL,
	option_type      TEXT NOT NULL,
	expiration       TEXT NOT NULL,
	strike           TEXT NOT NULL,
	last             TEXT NOT NULL,
	bid              TEXT NOT NULL,
	ask              TEXT NOT NULL,
	volume           INTEGER NOT NULL,
	open_interest    INTEGER NOT NULL,
	iv               REAL NOT NULL,
	delta            REAL NOT NULL,
	PRIMARY KEY (key, data_date)
);
CREATE INDEX IF NOT EXISTS idx_option_quotes_underlying ON option_quotes (underlying, data_date);

CREATE TABLE IF NOT EXISTS bars (
	symbol         TEXT NOT NULL,
	date           TEXT NOT NULL,
	open           TEXT NOT NULL,
	high           TEXT NOT NULL,
	low            TEXT NOT NULL,
	close          TEXT NOT NULL,
	adjusted_close TEXT NOT NULL,
	volume         INTEGER NOT NULL,
	PRIMARY KEY (symbol, date)
);
`

// SQLiteStore implements OptionStore and BarStore backed by a SQLite
// database. Prices are stored as decimal text so they read back exactly.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// tables if needed and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// OptionStore implementation
// ---------------------------------------------------------------------------

// WriteOptionQuotes upserts rows in a single transaction.
func (s *SQLiteStore) WriteOptionQuotes(ctx context.Context, rows []domain.OptionQuote) error {
	if len(rows) == 0 {
		return nil
	}
	return s.inTx(ctx, `
		INSERT INTO option_quotes (key, data_date, underlying, underlying_price, option_type, expiration,
			strike, last, bid, ask, volume, open_interest, iv, delta)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (key, data_date) DO UPDATE SET
			underlying = excluded.underlying,
			underlying_price = excluded.underlying_price,
			option_type = excluded.option_type,
			expiration = excluded.expiration,
			strike = excluded.strike,
			last = excluded.last,
			bid = excluded.bid,
			ask = excluded.ask,
			volume = excluded.volume,
			open_interest = excluded.open_interest,
			iv = excluded.iv,
			delta = excluded.delta`,
		func(stmt *sql.Stmt) error {
			for _, q := range rows {
				_, err := stmt.ExecContext(ctx, q.Key, sqlDate(q.DataDate), q.Underlying,
					q.UnderlyingPrice.String(), string(q.Right), sqlDate(q.Expiration),
					q.Strike.String(), q.Last.String(), q.Bid.String(), q.Ask.String(),
					q.Volume, q.OpenInterest, q.IV, q.Delta)
				if err != nil {
					return fmt.Errorf("upserting %s on %s: %w", q.Key, sqlDate(q.DataDate), err)
				}
			}
			return nil
		})
}

// ReadOptionQuotes returns the rows of underlying quoted in [start, end].
func (s *SQLiteStore) ReadOptionQuotes(ctx context.Context, underlying string, start, end time.Time) ([]domain.OptionQuote, error) {
	lo, hi := sqlBounds(start, end)
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, data_date, underlying, underlying_price, option_type, expiration,
			strike, last, bid, ask, volume, open_interest, iv, delta
		FROM option_quotes
		WHERE underlying = ? AND data_date >= ? AND data_date <= ?
		ORDER BY data_date, key`, underlying, lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OptionQuote
	for rows.Next() {
		var (
			q                                       domain.OptionQuote
			dataDate, expiration, right             string
			underlyingPrice, strike, last, bid, ask string
		)
		if err := rows.Scan(&q.Key, &dataDate, &q.Underlying, &underlyingPrice, &right, &expiration,
			&strike, &last, &bid, &ask, &q.Volume, &q.OpenInterest, &q.IV, &q.Delta); err != nil {
			return nil, err
		}
		q.Right = domain.Right(right)
		if q.DataDate, err = time.Parse(time.DateOnly, dataDate); err != nil {
			return nil, err
		}
		if q.Expiration, err = time.Parse(time.DateOnly, expiration); err != nil {
			return nil, err
		}
		if err := parseDecimals(
			decimalField{underlyingPrice, &q.UnderlyingPrice},
			decimalField{strike, &q.Strike},
			decimalField{last, &q.Last},
			decimalField{bid, &q.Bid},
			decimalField{ask, &q.Ask},
		); err != nil {
			return nil, fmt.Errorf("row %s: %w", q.Key, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// ListSymbols returns the distinct underlyings in option_quotes.
func (s *SQLiteStore) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT underlying FROM option_quotes ORDER BY underlying`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars upserts bars in a single transaction.
func (s *SQLiteStore) WriteBars(ctx context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	return s.inTx(ctx, `
		INSERT INTO bars (symbol, date, open, high, low, close, adjusted_close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, date) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			adjusted_close = excluded.adjusted_close,
			volume = excluded.volume`,
		func(stmt *sql.Stmt) error {
			for _, b := range bars {
				_, err := stmt.ExecContext(ctx, b.Symbol, sqlDate(b.Date), b.Open.String(), b.High.String(),
					b.Low.String(), b.Close.String(), b.AdjustedClose.String(), b.Volume)
				if err != nil {
					return fmt.Errorf("upserting %s bar on %s: %w", b.Symbol, sqlDate(b.Date), err)
				}
			}
			return nil
		})
}

// ReadBars returns the bars of symbol dated in [start, end].
func (s *SQLiteStore) ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	lo, hi := sqlBounds(start, end)
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, date, open, high, low, close, adjusted_close, volume
		FROM bars
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date`, symbol, lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Bar
	for rows.Next() {
		var (
			b                                 domain.Bar
			date, open, high, low, cls, adjCl string
		)
		if err := rows.Scan(&b.Symbol, &date, &open, &high, &low, &cls, &adjCl, &b.Volume); err != nil {
			return nil, err
		}
		if b.Date, err = time.Parse(time.DateOnly, date); err != nil {
			return nil, err
		}
		if err := parseDecimals(
			decimalField{open, &b.Open},
			decimalField{high, &b.High},
			decimalField{low, &b.Low},
			decimalField{cls, &b.Close},
			decimalField{adjCl, &b.AdjustedClose},
		); err != nil {
			return nil, fmt.Errorf("bar %s %s: %w", b.Symbol, date, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *SQLiteStore) inTx(ctx context.Context, query string, fn func(*sql.Stmt) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	if err := fn(stmt); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func sqlDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

// sqlBounds turns open bounds into date strings that compare below and above
// every stored date.
func sqlBounds(start, end time.Time) (string, string) {
	lo, hi := "0000-00-00", "9999-99-99"
	if !start.IsZero() {
		lo = sqlDate(start)
	}
	if !end.IsZero() {
		hi = sqlDate(end)
	}
	return lo, hi
}

type decimalField struct {
	text string
	dst  *decimal.Decimal
}

func parseDecimals(fields ...decimalField) error {
	for _, f := range fields {
		d, err := decimal.NewFromString(f.text)
		if err != nil {
			return err
		}
		*f.dst = d
	}
	return nil
}
