package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/newthinker/enercast/internal/core"
	"github.com/newthinker/enercast/internal/series"
)

// PriceStore implements series.Provider on the price_points table.
type PriceStore struct {
	pool *Pool
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(pool *Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

var _ series.Provider = (*PriceStore)(nil)

const upsertPrice = `
	INSERT INTO price_points (commodity, ts, price, volume)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (commodity, ts) DO UPDATE
	SET price = EXCLUDED.price, volume = EXCLUDED.volume
`

// Upsert writes points for a commodity in one transaction, replacing any
// existing observation at the same timestamp. The batch is validated
// first, so an invalid series writes nothing.
func (s *PriceStore) Upsert(ctx context.Context, commodity core.Commodity, points []core.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	if err := series.Validate(points); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(upsertPrice, string(commodity), p.Time.UTC(), p.Price, p.Volume)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert prices: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// FetchSeries returns the points of a commodity with from <= ts <= to,
// ordered by time. A zero bound is open.
func (s *PriceStore) FetchSeries(ctx context.Context, commodity core.Commodity, from, to time.Time) ([]core.PricePoint, error) {
	query := `
		SELECT ts, price, volume
		FROM price_points
		WHERE commodity = $1
		  AND ($2::timestamptz IS NULL OR ts >= $2)
		  AND ($3::timestamptz IS NULL OR ts <= $3)
		ORDER BY ts ASC
	`

	rows, err := s.pool.Query(ctx, query, string(commodity), nullTime(from), nullTime(to))
	if err != nil {
		return nil, fmt.Errorf("fetch series %s: %w", commodity, err)
	}
	defer rows.Close()

	var points []core.PricePoint
	for rows.Next() {
		var p core.PricePoint
		if err := rows.Scan(&p.Time, &p.Price, &p.Volume); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price points: %w", err)
	}

	if len(points) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no prices for %s", commodity))
	}
	return points, nil
}

// Commodities lists the commodities with stored prices.
func (s *PriceStore) Commodities(ctx context.Context) ([]core.Commodity, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT commodity FROM price_points ORDER BY commodity`)
	if err != nil {
		return nil, fmt.Errorf("list commodities: %w", err)
	}
	defer rows.Close()

	var out []core.Commodity
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan commodity: %w", err)
		}
		out = append(out, core.Commodity(c))
	}
	return out, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
