package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stockwallet/backend/internal/domain"
)

// PostgresStore provides the same repositories as SQLiteStore on top of
// a pgx connection pool, for deployments sharing the database between
// several instances. Event sequences come from a BIGSERIAL column.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Close() { s.pool.Close() }

func (s *PostgresStore) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS events (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			symbol TEXT NOT NULL,
			time TIMESTAMPTZ NOT NULL,
			event_type TEXT NOT NULL,
			detail JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_symbol_time ON events(symbol, time)`,
		`CREATE TABLE IF NOT EXISTS portfolios (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS brokers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			cnpj TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS asset_days (
			symbol TEXT NOT NULL,
			time TIMESTAMPTZ NOT NULL,
			open TEXT NOT NULL,
			high TEXT NOT NULL,
			low TEXT NOT NULL,
			close TEXT NOT NULL,
			volume BIGINT NOT NULL,
			PRIMARY KEY (symbol, time)
		)`,
	}

	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// EventStore implementation

func (s *PostgresStore) Append(ctx context.Context, ev *domain.Event) (string, error) {
	detail, err := json.Marshal(ev.Detail)
	if err != nil {
		return "", err
	}

	query := `INSERT INTO events (id, symbol, time, event_type, detail)
			  VALUES ($1, $2, $3, $4, $5) RETURNING seq`
	err = s.pool.QueryRow(ctx, query, ev.ID, ev.Symbol, ev.Time, ev.Detail.EventType(), detail).Scan(&ev.Sequence)
	if err != nil {
		return "", &domain.StoreError{Op: "append event", Err: err}
	}
	return ev.ID, nil
}

func (s *PostgresStore) ListOrdered(ctx context.Context, scope domain.Scope) ([]*domain.Event, error) {
	query := `SELECT seq, id, symbol, time, event_type, detail FROM events
			  WHERE symbol = $1 ORDER BY time ASC, seq ASC`
	rows, err := s.pool.Query(ctx, query, scope.Symbol)
	if err != nil {
		return nil, &domain.StoreError{Op: "list events", Err: err}
	}
	defer rows.Close()

	events, err := scanPgEvents(rows)
	if err != nil {
		return nil, err
	}
	return filterByPortfolio(events, scope.Portfolio), nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*domain.Event, error) {
	query := `SELECT seq, id, symbol, time, event_type, detail FROM events ORDER BY time ASC, seq ASC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, &domain.StoreError{Op: "list events", Err: err}
	}
	defer rows.Close()
	return scanPgEvents(rows)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT seq, id, symbol, time, event_type, detail FROM events WHERE id = $1`
	ev, err := scanPgEvent(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "get event", Err: err}
	}
	return ev, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, ev *domain.Event) error {
	detail, err := json.Marshal(ev.Detail)
	if err != nil {
		return err
	}

	query := `UPDATE events SET symbol = $1, time = $2, event_type = $3, detail = $4 WHERE id = $5`
	tag, err := s.pool.Exec(ctx, query, ev.Symbol, ev.Time, ev.Detail.EventType(), detail, id)
	if err != nil {
		return &domain.StoreError{Op: "update event", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, id string) (*domain.Event, error) {
	ev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id); err != nil {
		return nil, &domain.StoreError{Op: "remove event", Err: err}
	}
	return ev, nil
}

func (s *PostgresStore) DistinctSymbols(ctx context.Context, portfolioID string) ([]string, error) {
	if portfolioID == "" {
		rows, err := s.pool.Query(ctx, `SELECT DISTINCT symbol FROM events ORDER BY symbol`)
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

	// The portfolio set lives inside the detail document; the JSONB
	// containment operator narrows the scan server-side.
	query := `SELECT DISTINCT symbol FROM events
			  WHERE detail->'portfolios' @> to_jsonb($1::text) ORDER BY symbol`
	rows, err := s.pool.Query(ctx, query, portfolioID)
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

// PortfolioRepository / BrokerRepository implementation

func (s *PostgresStore) SavePortfolio(ctx context.Context, p *domain.Portfolio) error {
	query := `INSERT INTO portfolios (id, name) VALUES ($1, $2)
			  ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`
	if _, err := s.pool.Exec(ctx, query, p.ID, p.Name); err != nil {
		return &domain.StoreError{Op: "save portfolio", Err: err}
	}
	return nil
}

func (s *PostgresStore) GetPortfolio(ctx context.Context, id string) (*domain.Portfolio, error) {
	var p domain.Portfolio
	err := s.pool.QueryRow(ctx, `SELECT id, name FROM portfolios WHERE id = $1`, id).Scan(&p.ID, &p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "get portfolio", Err: err}
	}
	return &p, nil
}

func (s *PostgresStore) ListPortfolios(ctx context.Context) ([]*domain.Portfolio, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM portfolios ORDER BY name`)
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

func (s *PostgresStore) DeletePortfolio(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "portfolios", id)
}

func (s *PostgresStore) SaveBroker(ctx context.Context, b *domain.Broker) error {
	query := `INSERT INTO brokers (id, name, cnpj) VALUES ($1, $2, NULLIF($3, ''))
			  ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, cnpj = EXCLUDED.cnpj`
	if _, err := s.pool.Exec(ctx, query, b.ID, b.Name, b.CNPJ); err != nil {
		return &domain.StoreError{Op: "save broker", Err: err}
	}
	return nil
}

func (s *PostgresStore) GetBroker(ctx context.Context, id string) (*domain.Broker, error) {
	var b domain.Broker
	var cnpj *string
	err := s.pool.QueryRow(ctx, `SELECT id, name, cnpj FROM brokers WHERE id = $1`, id).Scan(&b.ID, &b.Name, &cnpj)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.StoreError{Op: "get broker", Err: err}
	}
	if cnpj != nil {
		b.CNPJ = *cnpj
	}
	return &b, nil
}

func (s *PostgresStore) ListBrokers(ctx context.Context) ([]*domain.Broker, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, cnpj FROM brokers ORDER BY name`)
	if err != nil {
		return nil, &domain.StoreError{Op: "list brokers", Err: err}
	}
	defer rows.Close()

	var brokers []*domain.Broker
	for rows.Next() {
		var b domain.Broker
		var cnpj *string
		if err := rows.Scan(&b.ID, &b.Name, &cnpj); err != nil {
			return nil, &domain.StoreError{Op: "list brokers", Err: err}
		}
		if cnpj != nil {
			b.CNPJ = *cnpj
		}
		brokers = append(brokers, &b)
	}
	return brokers, rows.Err()
}

func (s *PostgresStore) DeleteBroker(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "brokers", id)
}

func (s *PostgresStore) deleteByID(ctx context.Context, table, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return &domain.StoreError{Op: "delete " + table, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ReferenceDirectory implementation

func (s *PostgresStore) PortfolioExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, "portfolios", id)
}

func (s *PostgresStore) BrokerExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, "brokers", id)
}

func (s *PostgresStore) exists(ctx context.Context, table, id string) (bool, error) {
	var found bool
	query := `SELECT EXISTS (SELECT 1 FROM ` + table + ` WHERE id = $1)`
	if err := s.pool.QueryRow(ctx, query, id).Scan(&found); err != nil {
		return false, &domain.StoreError{Op: "exists " + table, Err: err}
	}
	return found, nil
}

// PriceHistoryStore implementation

func (s *PostgresStore) SaveAssetDays(ctx context.Context, days []domain.AssetDay) error {
	query := `INSERT INTO asset_days (symbol, time, open, high, low, close, volume)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (symbol, time) DO UPDATE SET
			  open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			  close = EXCLUDED.close, volume = EXCLUDED.volume`
	for _, d := range days {
		_, err := s.pool.Exec(ctx, query,
			d.Symbol, d.Time, d.Open.String(), d.High.String(), d.Low.String(), d.Close.String(), d.Volume)
		if err != nil {
			return &domain.StoreError{Op: "save asset day", Err: err}
		}
	}
	return nil
}

func (s *PostgresStore) LastAssetDayBefore(ctx context.Context, symbol string, asOf time.Time) (*domain.AssetDay, error) {
	query := `SELECT symbol, time, open, high, low, close, volume FROM asset_days
			  WHERE symbol = $1 AND time <= $2 ORDER BY time DESC LIMIT 1`
	return s.scanAssetDay(s.pool.QueryRow(ctx, query, symbol, asOf))
}

func (s *PostgresStore) LastAssetDay(ctx context.Context, symbol string) (*domain.AssetDay, error) {
	query := `SELECT symbol, time, open, high, low, close, volume FROM asset_days
			  WHERE symbol = $1 ORDER BY time DESC LIMIT 1`
	return s.scanAssetDay(s.pool.QueryRow(ctx, query, symbol))
}

func (s *PostgresStore) scanAssetDay(row pgx.Row) (*domain.AssetDay, error) {
	var d domain.AssetDay
	var open, high, low, closePrice string
	err := row.Scan(&d.Symbol, &d.Time, &open, &high, &low, &closePrice, &d.Volume)
	if errors.Is(err, pgx.ErrNoRows) {
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

func scanPgEvent(row pgx.Row) (*domain.Event, error) {
	var ev domain.Event
	var eventType string
	var detail []byte
	if err := row.Scan(&ev.Sequence, &ev.ID, &ev.Symbol, &ev.Time, &eventType, &detail); err != nil {
		return nil, err
	}
	d, err := domain.UnmarshalEventDetail(eventType, detail)
	if err != nil {
		return nil, err
	}
	ev.Detail = d
	return &ev, nil
}

func scanPgEvents(rows pgx.Rows) ([]*domain.Event, error) {
	var events []*domain.Event
	for rows.Next() {
		ev, err := scanPgEvent(rows)
		if err != nil {
			return nil, &domain.StoreError{Op: "scan event", Err: err}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
