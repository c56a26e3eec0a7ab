package data

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wonny/frontier/internal/contracts"
)

// DefaultTable holds one adjusted close per (ticker, trade_date)
const DefaultTable = "daily_prices"

// Querier is the part of *pgxpool.Pool the postgres source uses
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresSource reads long-format prices (ticker, trade_date, adj_close)
// ⭐ SSOT: SQL over the price table lives here only
type PostgresSource struct {
	db    Querier
	table string // sanitized identifier
}

// NewPostgresSource creates a source over table ("name" or "schema.name")
func NewPostgresSource(db Querier, table string) (*PostgresSource, error) {
	ident, err := sanitizeTable(table)
	if err != nil {
		return nil, err
	}
	return &PostgresSource{db: db, table: ident}, nil
}

// PriceRecord is one row of the price table
type PriceRecord struct {
	Ticker   string
	Date     time.Time
	AdjClose float64
}

// Fetch implements Source
func (s *PostgresSource) Fetch(ctx context.Context, req contracts.FetchRequest) (*contracts.PriceSeries, error) {
	query := `
		SELECT ticker, trade_date, adj_close
		FROM ` + s.table + `
		WHERE trade_date BETWEEN $1 AND $2`
	args := []any{req.Start, req.End}
	if len(req.Tickers) > 0 {
		query += ` AND ticker = ANY($3)`
		args = append(args, req.Tickers)
	}
	query += `
		ORDER BY trade_date, ticker`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var records []PriceRecord
	for rows.Next() {
		var r PriceRecord
		if err := rows.Scan(&r.Ticker, &r.Date, &r.AdjClose); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prices: %w", err)
	}

	if len(req.Tickers) > 0 && len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTickers, strings.Join(req.Tickers, ","))
	}
	return pivot(records, req.Tickers)
}

// EnsureSchema creates the price table when it does not exist
func (s *PostgresSource) EnsureSchema(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS ` + s.table + ` (
			ticker     TEXT             NOT NULL,
			trade_date DATE             NOT NULL,
			adj_close  DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (ticker, trade_date)
		)`
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create price table: %w", err)
	}
	return nil
}

// Import upserts every non-missing cell of series and returns the row count
func (s *PostgresSource) Import(ctx context.Context, series *contracts.PriceSeries) (int, error) {
	upsert := `
		INSERT INTO ` + s.table + ` (ticker, trade_date, adj_close)
		VALUES ($1, $2, $3)
		ON CONFLICT (ticker, trade_date) DO UPDATE SET
			adj_close = EXCLUDED.adj_close`

	batch := &pgx.Batch{}
	for i, date := range series.Dates {
		for j, ticker := range series.Tickers {
			v := series.Values[i][j]
			if math.IsNaN(v) {
				continue
			}
			batch.Queue(upsert, ticker, date, v)
		}
	}
	if batch.Len() == 0 {
		return 0, nil
	}

	br := s.db.SendBatch(ctx, batch)
	for n := 0; n < batch.Len(); n++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return n, fmt.Errorf("upsert price %d: %w", n, err)
		}
	}
	return batch.Len(), br.Close()
}

// pivot turns long records into a wide series. Ticker columns follow order
// when given (absent tickers dropped), otherwise they are sorted.
// Cells without a record are NaN.
func pivot(records []PriceRecord, order []string) (*contracts.PriceSeries, error) {
	present := make(map[string]struct{})
	dateIdx := make(map[time.Time]int)
	var dates []time.Time
	for _, r := range records {
		present[r.Ticker] = struct{}{}
		d := r.Date.UTC().Truncate(24 * time.Hour)
		if _, ok := dateIdx[d]; !ok {
			dateIdx[d] = len(dates)
			dates = append(dates, d)
		}
	}

	var tickers []string
	if len(order) > 0 {
		for _, t := range order {
			if _, ok := present[t]; ok {
				tickers = append(tickers, t)
				delete(present, t)
			}
		}
	} else {
		for t := range present {
			tickers = append(tickers, t)
		}
		sort.Strings(tickers)
	}
	col := make(map[string]int, len(tickers))
	for j, t := range tickers {
		col[t] = j
	}

	sort.Slice(dates, func(a, b int) bool { return dates[a].Before(dates[b]) })
	for i, d := range dates {
		dateIdx[d] = i
	}

	values := make([][]float64, len(dates))
	for i := range values {
		values[i] = make([]float64, len(tickers))
		for j := range values[i] {
			values[i][j] = math.NaN()
		}
	}
	for _, r := range records {
		j, ok := col[r.Ticker]
		if !ok {
			continue
		}
		values[dateIdx[r.Date.UTC().Truncate(24*time.Hour)]][j] = r.AdjClose
	}

	return contracts.NewPriceSeries(dates, tickers, values)
}

func sanitizeTable(table string) (string, error) {
	if table == "" {
		table = DefaultTable
	}
	parts := strings.Split(table, ".")
	if len(parts) > 2 {
		return "", contracts.NewConfigurationError("data.table", "invalid table name %q", table)
	}
	for _, p := range parts {
		if p == "" {
			return "", contracts.NewConfigurationError("data.table", "invalid table name %q", table)
		}
	}
	return pgx.Identifier(parts).Sanitize(), nil
}
