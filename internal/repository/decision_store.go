package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"EventEdge/internal/domain/models"
	domrepo "EventEdge/internal/domain/repository"
	pkgch "EventEdge/pkg/clickhouse"
	applogger "EventEdge/pkg/logger"
)

// CHDecisionStore implements DecisionStore on a ReplacingMergeTree keyed by event id.
// Rescoring inserts a new row; the latest updated_at wins.
type CHDecisionStore struct {
	ch    *pkgch.Client
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHDecisionStore(ch *pkgch.Client) *CHDecisionStore {
	return &CHDecisionStore{ch: ch, db: ch.DB(), table: ch.Database() + ".decisions"}
}

// SetLogger injects a structured logger.
func (s *CHDecisionStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHDecisionStore) schema() []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            event_id      String,
            ticker        LowCardinality(String),
            trigger       String,
            signal        LowCardinality(String),
            avoid_code    LowCardinality(String),
            overall       UInt8,
            grade         LowCardinality(String),
            model_version UInt32,
            evaluated_at  DateTime64(3, 'UTC'),
            input         String,
            result        String,
            created_at    DateTime64(3, 'UTC'),
            updated_at    DateTime64(3, 'UTC')
        )
        ENGINE = ReplacingMergeTree(updated_at)
        ORDER BY event_id
    `, s.table)}
}

func (s *CHDecisionStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, s.schema())
}

// decisionRow is the flat column layout of one decision.
type decisionRow struct {
	EventID      string
	Ticker       string
	Trigger      string
	Signal       string
	AvoidCode    string
	Overall      uint8
	Grade        string
	ModelVersion uint32
	EvaluatedAt  time.Time
	Input        string
	Result       string
	CreatedAt    time.Time
}

func toRow(rec *models.DecisionRecord) (decisionRow, error) {
	in, err := json.Marshal(rec.Input)
	if err != nil {
		return decisionRow{}, fmt.Errorf("marshal input: %w", err)
	}
	res, err := json.Marshal(rec.Result)
	if err != nil {
		return decisionRow{}, fmt.Errorf("marshal result: %w", err)
	}
	row := decisionRow{
		EventID:      rec.EventID,
		Ticker:       rec.Ticker,
		Trigger:      rec.Trigger,
		Signal:       string(rec.Result.Signal),
		Overall:      uint8(rec.Result.Confidence.Overall),
		Grade:        string(rec.Result.Confidence.Grade),
		ModelVersion: uint32(rec.Result.Meta.ModelVersion),
		EvaluatedAt:  rec.Result.Meta.EvaluatedAt.UTC(),
		Input:        string(in),
		Result:       string(res),
		CreatedAt:    rec.CreatedAt.UTC(),
	}
	if rec.Result.AvoidCode != nil {
		row.AvoidCode = *rec.Result.AvoidCode
	}
	return row, nil
}

func fromRow(row decisionRow) (*models.DecisionRecord, error) {
	rec := &models.DecisionRecord{
		EventID:   row.EventID,
		Ticker:    row.Ticker,
		Trigger:   row.Trigger,
		CreatedAt: row.CreatedAt,
	}
	if err := json.Unmarshal([]byte(row.Input), &rec.Input); err != nil {
		return nil, fmt.Errorf("unmarshal input: %w", err)
	}
	if err := json.Unmarshal([]byte(row.Result), &rec.Result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return rec, nil
}

func (s *CHDecisionStore) Save(ctx context.Context, rec *models.DecisionRecord) error {
	start := time.Now()
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %s
        (event_id, ticker, trigger, signal, avoid_code, overall, grade, model_version, evaluated_at, input, result, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err = s.db.ExecContext(ctx, q,
		row.EventID, row.Ticker, row.Trigger, row.Signal, row.AvoidCode,
		row.Overall, row.Grade, row.ModelVersion, row.EvaluatedAt,
		row.Input, row.Result, row.CreatedAt, time.Now().UTC(),
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse save_decision error",
				applogger.String("event_id", rec.EventID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("save decision: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse save_decision ok",
			applogger.String("event_id", rec.EventID),
			applogger.String("signal", row.Signal),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHDecisionStore) Get(ctx context.Context, eventID string) (*models.DecisionRecord, error) {
	q := fmt.Sprintf(`
        SELECT event_id, ticker, trigger, input, result, created_at
        FROM %s FINAL
        WHERE event_id = ?
        LIMIT 1
    `, s.table)
	var row decisionRow
	err := s.db.QueryRowContext(ctx, q, eventID).
		Scan(&row.EventID, &row.Ticker, &row.Trigger, &row.Input, &row.Result, &row.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_decision error",
				applogger.String("event_id", eventID),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get decision: %w", err)
	}
	return fromRow(row)
}

func (s *CHDecisionStore) ListStale(ctx context.Context, modelVersion int, limit int) ([]string, error) {
	q := fmt.Sprintf(`
        SELECT event_id
        FROM %s FINAL
        WHERE model_version < ?
        ORDER BY evaluated_at DESC
        LIMIT ?
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, uint32(modelVersion), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHDecisionStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHDecisionStore) Close() error {
	return nil // Managed by pkg
}
