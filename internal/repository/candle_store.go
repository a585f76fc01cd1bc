package repository

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"EventEdge/internal/domain/models"
	domrepo "EventEdge/internal/domain/repository"
	pkgch "EventEdge/pkg/clickhouse"
	applogger "EventEdge/pkg/logger"
)

// CHCandleStore reads OHLCV bars from <database>.candles_<tf>.
type CHCandleStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHCandleStore(ch *pkgch.Client) *CHCandleStore {
	return &CHCandleStore{db: ch.DB(), database: ch.Database(), l: applogger.Nop()}
}

func (s *CHCandleStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *CHCandleStore) LatestCandles(ctx context.Context, symbol string, tf domrepo.Timeframe, n int, asOf time.Time) ([]models.Candle, error) {
	if !domrepo.IsValidTimeframe(tf) {
		return nil, fmt.Errorf("latest candles: unsupported timeframe %q", tf)
	}
	if n <= 0 {
		return nil, nil
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}
	q, args := s.latestQuery(symbol, tf, n, asOf)

	start := time.Now()
	out, err := s.scan(ctx, q, args...)
	log := s.l.With(applogger.String("symbol", symbol), applogger.String("tf", string(tf)))
	if err != nil {
		log.Error("clickhouse latest candles failed", applogger.Error(err))
		return nil, fmt.Errorf("latest candles %s %s: %w", symbol, tf, err)
	}
	log.Debug("clickhouse latest candles", applogger.Int("rows", len(out)), applogger.Duration("took", time.Since(start)))

	slices.Reverse(out)
	return out, nil
}

// latestQuery selects newest first so LIMIT keeps the most recent bars.
func (s *CHCandleStore) latestQuery(symbol string, tf domrepo.Timeframe, n int, asOf time.Time) (string, []any) {
	q := fmt.Sprintf(`SELECT bucket, symbol, open, high, low, close, volume
FROM %s.candles_%s
WHERE symbol = ? AND bucket <= ?
ORDER BY bucket DESC
LIMIT ?`, s.database, tf)
	return q, []any{symbol, tf.LastClosed(asOf), n}
}

func (s *CHCandleStore) scan(ctx context.Context, q string, args ...any) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
