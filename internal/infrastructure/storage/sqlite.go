package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/stockwallet/backend/internal/domain"
)

// SQLiteStore backs the event log, the reference directory and the
// daily-bar history with a single sqlite database.
//
// The event sequence is the rowid-backed seq column: appends get a
// strictly increasing number, updates keep the original one, so the
// (time, seq) order survives edits and replays identically.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			symbol TEXT NOT NULL,
			time DATETIME NOT NULL,
			event_type TEXT NOT NULL,
			detail TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_symbol_time ON events(symbol, time);`,
		`CREATE TABLE IF NOT EXISTS portfolios (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS brokers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			cnpj TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS asset_days (
			symbol TEXT NOT NULL,
			time DATETIME NOT NULL,
			open TEXT NOT NULL,
			high TEXT NOT NULL,
			low TEXT NOT NULL,
			close TEXT NOT NULL,
			volume INTEGER NOT NULL,
			PRIMARY KEY (symbol, time)
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// EventStore implementation

func (s *SQLiteStore) Append(ctx context.Context, ev *domain.Event) (string, error) {
	detail, err := json.Marshal(ev.Detail)
	if err != nil {
		return "", err
	}

	query := `INSERT INTO events (id, symbol, time, event_type, detail) VALUES (?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query, ev.ID, ev.Symbol, ev.Time, ev.Detail.EventType(), string(detail))
	if err != nil {
		return "", &domain.StoreError{Op: "append event", Err: err}
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return "", &domain.StoreError{Op: "append event", Err: err}
	}
	ev.Sequence = seq
	return ev.ID, nil
}

func (s *SQLiteStore) ListOrdered(ctx context.Context, scope domain.Scope) ([]*domain.Event, error) {
	// The portfolio filter runs in memory: the portfolio set lives
	// inside the detail document, mirroring the original storage shape.
	query := `SELECT seq, id, symbol, time, event_type, detail FROM events WHERE symbol = ? ORDER BY time ASC, seq ASC`
	rows, err := s.db.QueryContext(ctx, query, scope.Symbol)
	if err != nil {
		return nil, &domain.StoreError{Op: "list events", Err: err}
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	return filterByPortfolio(events, scope.Portfolio), nil
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]*domain.Event, error) {
	query := `SELECT seq, id, symbol, time, event_type, detail FROM events ORDER BY time ASC, seq ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &domain.StoreError{Op: "list events", Err: err}
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT seq, id, symbol, time, event_type, detail FROM events WHERE id = ?`
	ev, err := scanEvent(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "get event", Err: err}
	}
	return ev, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, ev *domain.Event) error {
	detail, err := json.Marshal(ev.Detail)
	if err != nil {
		return err
	}

	// seq is deliberately untouched so the edited event keeps its place
	// among same-time events.
	query := `UPDATE events SET symbol = ?, time = ?, event_type = ?, detail = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, ev.Symbol, ev.Time, ev.Detail.EventType(), string(detail), id)
	if err != nil {
		return &domain.StoreError{Op: "update event", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &domain.StoreError{Op: "update event", Err: err}
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, id string) (*domain.Event, error) {
	ev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return nil, &domain.StoreError{Op: "remove event", Err: err}
	}
	return ev, nil
}

func (s *SQLiteStore) DistinctSymbols(ctx context.Context, portfolioID string) ([]string, error) {
	if portfolioID == "" {
		rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM events ORDER BY symbol`)
		if err != nil {
			return nil, &domain.StoreError{Op: "distinct symbols", Err: err}
		}
		defer rows.Close()

		var symbols []string
		for rows.Next() {
			var symbol string
			if err := rows.Scan(&symbol); err != nil {
				return nil, &domain.StoreError{Op: "distinct symbols", Err: err}
			}
			symbols = append(symbols, symbol)
		}
		return symbols, rows.Err()
	}

	events, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return distinctSymbolsFor(events, portfolioID), nil
}

// PortfolioRepository / BrokerRepository implementation

func (s *SQLiteStore) SavePortfolio(ctx context.Context, p *domain.Portfolio) error {
	query := `INSERT INTO portfolios (id, name) VALUES (?, ?)
			  ON CONFLICT(id) DO UPDATE SET name=excluded.name`
	if _, err := s.db.ExecContext(ctx, query, p.ID, p.Name); err != nil {
		return &domain.StoreError{Op: "save portfolio", Err: err}
	}
	return nil
}

func (s *SQLiteStore) GetPortfolio(ctx context.Context, id string) (*domain.Portfolio, error) {
	var p domain.Portfolio
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM portfolios WHERE id = ?`, id).Scan(&p.ID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "get portfolio", Err: err}
	}
	return &p, nil
}

func (s *SQLiteStore) ListPortfolios(ctx context.Context) ([]*domain.Portfolio, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM portfolios ORDER BY name`)
	if err != nil {
		return nil, &domain.StoreError{Op: "list portfolios", Err: err}
	}
	defer rows.Close()

	var portfolios []*domain.Portfolio
	for rows.Next() {
		var p domain.Portfolio
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, &domain.StoreError{Op: "list portfolios", Err: err}
		}
		portfolios = append(portfolios, &p)
	}
	return portfolios, rows.Err()
}

func (s *SQLiteStore) DeletePortfolio(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "portfolios", id)
}

func (s *SQLiteStore) SaveBroker(ctx context.Context, b *domain.Broker) error {
	query := `INSERT INTO brokers (id, name, cnpj) VALUES (?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET name=excluded.name, cnpj=excluded.cnpj`
	if _, err := s.db.ExecContext(ctx, query, b.ID, b.Name, b.CNPJ); err != nil {
		return &domain.StoreError{Op: "save broker", Err: err}
	}
	return nil
}

func (s *SQLiteStore) GetBroker(ctx context.Context, id string) (*domain.Broker, error) {
	var b domain.Broker
	var cnpj sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT id, name, cnpj FROM brokers WHERE id = ?`, id).Scan(&b.ID, &b.Name, &cnpj)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "get broker", Err: err}
	}
	b.CNPJ = cnpj.String
	return &b, nil
}

func (s *SQLiteStore) ListBrokers(ctx context.Context) ([]*domain.Broker, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, cnpj FROM brokers ORDER BY name`)
	if err != nil {
		return nil, &domain.StoreError{Op: "list brokers", Err: err}
	}
	defer rows.Close()

	var brokers []*domain.Broker
	for rows.Next() {
		var b domain.Broker
		var cnpj sql.NullString
		if err := rows.Scan(&b.ID, &b.Name, &cnpj); err != nil {
			return nil, &domain.StoreError{Op: "list brokers", Err: err}
		}
		b.CNPJ = cnpj.String
		brokers = append(brokers, &b)
	}
	return brokers, rows.Err()
}

func (s *SQLiteStore) DeleteBroker(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "brokers", id)
}

func (s *SQLiteStore) deleteByID(ctx context.Context, table, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return &domain.StoreError{Op: "delete " + table, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &domain.StoreError{Op: "delete " + table, Err: err}
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ReferenceDirectory implementation

func (s *SQLiteStore) PortfolioExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, "portfolios", id)
}

func (s *SQLiteStore) BrokerExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, "brokers", id)
}

func (s *SQLiteStore) exists(ctx context.Context, table, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &domain.StoreError{Op: "exists " + table, Err: err}
	}
	return true, nil
}

// PriceHistoryStore implementation

func (s *SQLiteStore) SaveAssetDays(ctx context.Context, days []domain.AssetDay) error {
	query := `INSERT INTO asset_days (symbol, time, open, high, low, close, volume)
			  VALUES (?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(symbol, time) DO UPDATE SET
			  open=excluded.open, high=excluded.high, low=excluded.low,
			  close=excluded.close, volume=excluded.volume`
	for _, d := range days {
		_, err := s.db.ExecContext(ctx, query,
			d.Symbol, d.Time, d.Open.String(), d.High.String(), d.Low.String(), d.Close.String(), d.Volume)
		if err != nil {
			return &domain.StoreError{Op: "save asset day", Err: err}
		}
	}
	return nil
}

func (s *SQLiteStore) LastAssetDayBefore(ctx context.Context, symbol string, asOf time.Time) (*domain.AssetDay, error) {
	query := `SELECT symbol, time, open, high, low, close, volume FROM asset_days
			  WHERE symbol = ? AND time <= ? ORDER BY time DESC LIMIT 1`
	return s.scanAssetDay(s.db.QueryRowContext(ctx, query, symbol, asOf))
}

func (s *SQLiteStore) LastAssetDay(ctx context.Context, symbol string) (*domain.AssetDay, error) {
	query := `SELECT symbol, time, open, high, low, close, volume FROM asset_days
			  WHERE symbol = ? ORDER BY time DESC LIMIT 1`
	return s.scanAssetDay(s.db.QueryRowContext(ctx, query, symbol))
}

func (s *SQLiteStore) scanAssetDay(row *sql.Row) (*domain.AssetDay, error) {
	var d domain.AssetDay
	var open, high, low, closePrice string
	err := row.Scan(&d.Symbol, &d.Time, &open, &high, &low, &closePrice, &d.Volume)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "get asset day", Err: err}
	}
	if d.Open, err = decimal.NewFromString(open); err != nil {
		return nil, err
	}
	if d.High, err = decimal.NewFromString(high); err != nil {
		return nil, err
	}
	if d.Low, err = decimal.NewFromString(low); err != nil {
		return nil, err
	}
	if d.Close, err = decimal.NewFromString(closePrice); err != nil {
		return nil, err
	}
	return &d, nil
}

// shared row helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	var ev domain.Event
	var eventType, detail string
	if err := row.Scan(&ev.Sequence, &ev.ID, &ev.Symbol, &ev.Time, &eventType, &detail); err != nil {
		return nil, err
	}
	d, err := domain.UnmarshalEventDetail(eventType, []byte(detail))
	if err != nil {
		return nil, err
	}
	ev.Detail = d
	return &ev, nil
}

func scanEvents(rows *sql.Rows) ([]*domain.Event, error) {
	var events []*domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, &domain.StoreError{Op: "scan event", Err: err}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func filterByPortfolio(events []*domain.Event, portfolioID string) []*domain.Event {
	if portfolioID == "" {
		return events
	}
	filtered := events[:0:0]
	for _, ev := range events {
		if ev.AppliesTo(portfolioID) {
			filtered = append(filtered, ev)
		}
	}
	return filtered
}

func distinctSymbolsFor(events []*domain.Event, portfolioID string) []string {
	seen := make(map[string]struct{})
	var symbols []string
	for _, ev := range events {
		if portfolioID != "" && !ev.AppliesTo(portfolioID) {
			continue
		}
		if _, ok := seen[ev.Symbol]; ok {
			continue
		}
		seen[ev.Symbol] = struct{}{}
		symbols = append(symbols, ev.Symbol)
	}
	return symbols
}
