package pricestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"stock_watchlist_backend/models"
)

// HistoryRecorder receives every successful refresh.
type HistoryRecorder interface {
	Append(ctx context.Context, point models.PriceHistoryPoint) error
}

// SQLiteHistory is an append-only price log in a local SQLite file.
type SQLiteHistory struct {
	db *sql.DB
}

// OpenSQLiteHistory opens (or creates) the history database at path.
// ":memory:" is accepted for tests.
func OpenSQLiteHistory(path string) (*SQLiteHistory, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// sqlite allows a single writer; an in-memory database also lives on one connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	h := &SQLiteHistory{db: db}
	if err := h.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

func (h *SQLiteHistory) createTables() error {
	historyTable := `
		CREATE TABLE IF NOT EXISTS price_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker VARCHAR NOT NULL,
			price DOUBLE NOT NULL,
			fetched_at INTEGER NOT NULL
		)
	`
	if _, err := h.db.Exec(historyTable); err != nil {
		return fmt.Errorf("failed to create price_history table: %w", err)
	}
	if _, err := h.db.Exec(`CREATE INDEX IF NOT EXISTS idx_price_history_ticker ON price_history(ticker, fetched_at)`); err != nil {
		return fmt.Errorf("failed to create price_history index: %w", err)
	}
	return nil
}

// Close closes the database
func (h *SQLiteHistory) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// Append adds one point to the log
func (h *SQLiteHistory) Append(ctx context.Context, p models.PriceHistoryPoint) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO price_history (ticker, price, fetched_at) VALUES (?, ?, ?)`,
		p.Ticker, p.Price, p.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append price history: %w", err)
	}
	return nil
}

// Recent returns up to limit points for ticker, newest first.
func (h *SQLiteHistory) Recent(ctx context.Context, ticker string, limit int) ([]models.PriceHistoryPoint, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT ticker, price, fetched_at
		FROM price_history
		WHERE ticker = ?
		ORDER BY fetched_at DESC, id DESC
		LIMIT ?
	`, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	points := make([]models.PriceHistoryPoint, 0, limit)
	for rows.Next() {
		var p models.PriceHistoryPoint
		if err := rows.Scan(&p.Ticker, &p.Price, &p.FetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price history: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// PruneBefore deletes every point fetched before cutoff and returns how many were removed.
func (h *SQLiteHistory) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := h.db.ExecContext(ctx, `DELETE FROM price_history WHERE fetched_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune price history: %w", err)
	}
	return res.RowsAffected()
}

// Ping reports whether the database is reachable
func (h *SQLiteHistory) Ping(ctx context.Context) error {
	return h.db.PingContext(ctx)
}
