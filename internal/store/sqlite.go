package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dmeints/Trading-Bot-v2-sub010/internal/feature"
)

const barSchema = `
CREATE TABLE IF NOT EXISTS bars (
	symbol    TEXT NOT NULL,
	timeframe TEXT NOT NULL,
	ts        INTEGER NOT NULL,
	open      REAL NOT NULL,
	high      REAL NOT NULL,
	low       REAL NOT NULL,
	close     REAL NOT NULL,
	volume    REAL NOT NULL,
	PRIMARY KEY (symbol, timeframe, ts)
);`

// SQLiteStore persists bars in a single-file SQLite database with
// hand-written SQL. Timestamps are stored as unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

var _ BarStore = (*SQLiteStore)(nil)

// OpenSQLite opens the database at path, creating it and the bars table
// when missing.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(barSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create bars table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Put upserts bars inside one transaction so a failed batch leaves no
// partial series behind.
func (s *SQLiteStore) Put(ctx context.Context, symbol, timeframe string, bars []feature.Bar) error {
	if symbol == "" || timeframe == "" {
		return fmt.Errorf("symbol and timeframe are required")
	}
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (symbol, timeframe, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, timeframe, ts) DO UPDATE SET
			open=excluded.open,
			high=excluded.high,
			low=excluded.low,
			close=excluded.close,
			volume=excluded.volume;`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, timeframe, b.Ts.UnixMilli(),
			b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("upsert bar at %s: %w", b.Ts.Format(time.RFC3339), err)
		}
	}
	return tx.Commit()
}

// Range returns the bars inside [from, to] ascending by time; a zero bound
// is unbounded.
func (s *SQLiteStore) Range(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]feature.Bar, error) {
	var query strings.Builder
	query.WriteString("SELECT ts, open, high, low, close, volume FROM bars WHERE symbol=? AND timeframe=?")
	args := []interface{}{symbol, timeframe}
	if !from.IsZero() {
		query.WriteString(" AND ts>=?")
		args = append(args, from.UnixMilli())
	}
	if !to.IsZero() {
		query.WriteString(" AND ts<=?")
		args = append(args, to.UnixMilli())
	}
	query.WriteString(" ORDER BY ts ASC")

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var out []feature.Bar
	for rows.Next() {
		var b feature.Bar
		var ts int64
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Ts = time.UnixMilli(ts).UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}
