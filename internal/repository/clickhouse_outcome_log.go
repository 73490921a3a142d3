package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"AlphaPulse/internal/domain/models"
	"AlphaPulse/pkg/clickhouse"
	applogger "AlphaPulse/pkg/logger"
)

// OutcomeSchema is the idempotent DDL for the outcome log. ReplacingMergeTree
// keyed on (alert_id, interval) gives append-only writes with last-write-wins
// semantics: re-recording an outcome for the same alert and interval replaces
// the earlier row at merge time instead of duplicating it.
var OutcomeSchema = []string{
	`CREATE TABLE IF NOT EXISTS outcomes (
		alert_id           String,
		ticker             LowCardinality(String),
		interval           LowCardinality(String),
		signal_names       Array(String),
		signal_values      Array(Float64),
		signal_weights     Array(Float64),
		signal_confidences Array(Float64),
		price_change_pct   Float64,
		volume_change_pct  Float64,
		score_value        Float64,
		label              LowCardinality(String),
		recorded_at        DateTime64(3)
	) ENGINE = ReplacingMergeTree(recorded_at)
	PARTITION BY toDate(recorded_at)
	ORDER BY (alert_id, interval)`,
}

// ClickHouseOutcomeLog persists finalized outcomes for the weight adjuster's
// lookback queries.
type ClickHouseOutcomeLog struct {
	client *clickhouse.Client
	log    *applogger.Logger
}

func NewClickHouseOutcomeLog(client *clickhouse.Client, log *applogger.Logger) *ClickHouseOutcomeLog {
	return &ClickHouseOutcomeLog{client: client, log: log}
}

// Record appends one outcome row. The signal snapshot is stored as parallel
// arrays so per-signal attribution stays queryable server-side.
func (l *ClickHouseOutcomeLog) Record(ctx context.Context, o *models.Outcome) error {
	names := make([]string, len(o.SignalSnapshot))
	values := make([]float64, len(o.SignalSnapshot))
	weights := make([]float64, len(o.SignalSnapshot))
	confidences := make([]float64, len(o.SignalSnapshot))
	for i, sg := range o.SignalSnapshot {
		names[i] = sg.Name
		values[i] = sg.Value
		weights[i] = sg.Weight
		confidences[i] = sg.Confidence
	}

	recordedAt := o.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	_, err := l.client.DB().ExecContext(ctx, `
		INSERT INTO outcomes (
			alert_id, ticker, interval,
			signal_names, signal_values, signal_weights, signal_confidences,
			price_change_pct, volume_change_pct, score_value, label, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.AlertID, o.Ticker, string(o.Interval),
		names, values, weights, confidences,
		o.PriceChangePct, o.VolumeChangePct, o.ScoreValue, string(o.Label), recordedAt,
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}

	l.log.Debug("outcome recorded",
		applogger.String("alert_id", o.AlertID),
		applogger.String("ticker", o.Ticker),
		applogger.String("interval", string(o.Interval)),
		applogger.String("label", string(o.Label)),
	)
	return nil
}

// Window returns the outcomes recorded in [from, to]. FINAL collapses
// not-yet-merged replacements so re-recorded outcomes appear once.
func (l *ClickHouseOutcomeLog) Window(ctx context.Context, from, to time.Time) ([]*models.Outcome, error) {
	rows, err := l.client.DB().QueryContext(ctx, `
		SELECT
			alert_id, ticker, interval,
			signal_names, signal_values, signal_weights, signal_confidences,
			price_change_pct, volume_change_pct, score_value, label, recorded_at
		FROM outcomes FINAL
		WHERE recorded_at >= ? AND recorded_at <= ?
		ORDER BY recorded_at`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("outcome window: %w", err)
	}
	defer rows.Close()

	var out []*models.Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outcome window rows: %w", err)
	}
	return out, nil
}

func scanOutcome(rows *sql.Rows) (*models.Outcome, error) {
	var (
		o           models.Outcome
		interval    string
		label       string
		names       []string
		values      []float64
		weights     []float64
		confidences []float64
	)
	err := rows.Scan(
		&o.AlertID, &o.Ticker, &interval,
		&names, &values, &weights, &confidences,
		&o.PriceChangePct, &o.VolumeChangePct, &o.ScoreValue, &label, &o.RecordedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan outcome: %w", err)
	}
	o.Interval = models.Interval(interval)
	o.Label = models.OutcomeLabel(label)
	for i := range names {
		sg := models.Signal{Name: names[i]}
		if i < len(values) {
			sg.Value = values[i]
		}
		if i < len(weights) {
			sg.Weight = weights[i]
		}
		if i < len(confidences) {
			sg.Confidence = confidences[i]
		}
		o.SignalSnapshot = append(o.SignalSnapshot, sg)
	}
	return &o, nil
}

// PruneBefore drops outcome rows older than cutoff. Partitioned by day, so
// the mutation only touches expired partitions.
func (l *ClickHouseOutcomeLog) PruneBefore(ctx context.Context, cutoff time.Time) error {
	_, err := l.client.DB().ExecContext(ctx,
		`ALTER TABLE outcomes DELETE WHERE recorded_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("prune outcomes: %w", err)
	}
	l.log.Info("outcome retention prune issued", applogger.Time("cutoff", cutoff))
	return nil
}

// Close releases the shared ClickHouse pool reference. The pool itself is
// owned by the client and closed at shutdown.
func (l *ClickHouseOutcomeLog) Close() error {
	return nil
}
