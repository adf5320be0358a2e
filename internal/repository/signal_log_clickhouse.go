package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"AlphaBot/internal/domain/models"
	"AlphaBot/internal/domain/repository"
)

// ClickHouseSignalLog stores one row per submitted or resolved signal.
type ClickHouseSignalLog struct {
	db    *sql.DB
	table string
}

// NewClickHouseSignalLog creates the ClickHouse-backed log over table.
func NewClickHouseSignalLog(db *sql.DB, table string) *ClickHouseSignalLog {
	if table == "" {
		table = "signal_log"
	}
	return &ClickHouseSignalLog{db: db, table: table}
}

// Schema returns the DDL for the log table.
func (s *ClickHouseSignalLog) Schema() []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	bot_id String,
	ts Int64,
	event LowCardinality(String),
	action LowCardinality(String),
	predicted_price_micro Int64,
	confidence_bps Int64,
	reasoning String,
	actual_price_micro Nullable(Int64),
	correct Nullable(UInt8),
	recorded_at DateTime64(3)
) ENGINE = MergeTree
ORDER BY (bot_id, ts, recorded_at)`, s.table)}
}

func (s *ClickHouseSignalLog) Init(ctx context.Context) error {
	for _, stmt := range s.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *ClickHouseSignalLog) Append(ctx context.Context, e *models.SignalLogEntry) error {
	q := fmt.Sprintf("INSERT INTO %s (bot_id, ts, event, action, predicted_price_micro, confidence_bps, reasoning, actual_price_micro, correct, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table)

	var actual sql.NullInt64
	if e.Signal.ActualPriceMicro != nil {
		actual = sql.NullInt64{Int64: *e.Signal.ActualPriceMicro, Valid: true}
	}
	var correct sql.NullInt16
	if e.Correct != nil {
		correct.Valid = true
		if *e.Correct {
			correct.Int16 = 1
		}
	}

	_, err := s.db.ExecContext(ctx, q,
		e.BotID,
		e.Signal.Timestamp,
		string(e.Event),
		string(e.Signal.Action),
		e.Signal.PredictedPriceMicro,
		e.Signal.ConfidenceBps,
		e.Signal.Reasoning,
		actual,
		correct,
		time.UnixMilli(e.RecordedAt).UTC(),
	)
	if err != nil {
		return fmt.Errorf("append %s/%d: %w", e.BotID, e.Signal.Timestamp, err)
	}
	return nil
}

// History reads at most 2*limit rows; every signal has at most two rows, so the
// newest limit signals are always complete.
func (s *ClickHouseSignalLog) History(ctx context.Context, botID string, from, to int64, limit int) ([]models.Signal, error) {
	conds := []string{"bot_id = ?", "ts >= ?"}
	args := []interface{}{botID, from}
	if to > 0 {
		conds = append(conds, "ts <= ?")
		args = append(args, to)
	}
	q := fmt.Sprintf("SELECT ts, event, action, predicted_price_micro, confidence_bps, reasoning, actual_price_micro FROM %s WHERE %s ORDER BY ts DESC, recorded_at ASC",
		s.table, strings.Join(conds, " AND "))
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit*2)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", botID, err)
	}
	defer rows.Close()

	var entries []models.SignalLogEntry
	for rows.Next() {
		var (
			e      = models.SignalLogEntry{BotID: botID}
			event  string
			action string
			actual sql.NullInt64
		)
		if err := rows.Scan(&e.Signal.Timestamp, &event, &action, &e.Signal.PredictedPriceMicro,
			&e.Signal.ConfidenceBps, &e.Signal.Reasoning, &actual); err != nil {
			return nil, fmt.Errorf("history %s: scan: %w", botID, err)
		}
		e.Event = models.LogEvent(event)
		e.Signal.Action = models.Action(action)
		if actual.Valid {
			v := actual.Int64
			e.Signal.ActualPriceMicro = &v
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history %s: %w", botID, err)
	}

	return repository.MergeHistory(entries, from, to, limit), nil
}

func (s *ClickHouseSignalLog) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to the clickhouse client.
func (s *ClickHouseSignalLog) Close() error { return nil }
