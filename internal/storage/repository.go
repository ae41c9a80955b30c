// Package storage is the SQLite-backed goal/transaction store.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xphabletx/envelope-lite/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// PutGoal inserts or replaces a goal row.
func (r *SQLiteRepository) PutGoal(ctx context.Context, g core.Goal) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("validate goal: %w", err)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO goals (id, name, current_cents, target_cents, target_date, kind,
			cash_flow_enabled, cash_flow_cents, cash_flow_frequency, group_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			current_cents = excluded.current_cents,
			target_cents = excluded.target_cents,
			target_date = excluded.target_date,
			kind = excluded.kind,
			cash_flow_enabled = excluded.cash_flow_enabled,
			cash_flow_cents = excluded.cash_flow_cents,
			cash_flow_frequency = excluded.cash_flow_frequency,
			group_id = excluded.group_id,
			updated_at = excluded.updated_at`,
		g.ID, g.Name, g.CurrentAmount.Cents, g.TargetAmount.Cents,
		nullableTime(g.TargetDate), string(g.Kind),
		boolToInt(g.CashFlowEnabled), g.CashFlowAmount.Cents,
		string(g.CashFlowFrequency), nullableString(g.GroupID),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("put goal: %w", err)
	}
	return nil
}

// ListGoals implements store.GoalReader.
func (r *SQLiteRepository) ListGoals(ctx context.Context) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, current_cents, target_cents, target_date, kind,
			cash_flow_enabled, cash_flow_cents, cash_flow_frequency, group_id
		FROM goals ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}
	return goals, nil
}

// GetGoal fetches one goal by id.
func (r *SQLiteRepository) GetGoal(ctx context.Context, goalID string) (core.Goal, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, current_cents, target_cents, target_date, kind,
			cash_flow_enabled, cash_flow_cents, cash_flow_frequency, group_id
		FROM goals WHERE id = ?`, goalID)
	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return core.Goal{}, fmt.Errorf("get goal %s: %w", goalID, core.ErrGoalNotFound)
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal %s: %w", goalID, err)
	}
	return g, nil
}

// UpdateGoalCashFlow implements store.GoalWriter. It bumps the version and
// marks the row pending so the sync worker picks it up.
func (r *SQLiteRepository) UpdateGoalCashFlow(ctx context.Context, goalID string, enabled bool, amount core.Money, freq core.Frequency) error {
	if !freq.IsValid() {
		freq = core.Monthly
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE goals SET
			cash_flow_enabled = ?,
			cash_flow_cents = ?,
			cash_flow_frequency = ?,
			version = version + 1,
			sync_status = 'pending',
			updated_at = ?
		WHERE id = ?`,
		boolToInt(enabled), amount.Cents, string(freq),
		time.Now().UTC().Format(time.RFC3339), goalID)
	if err != nil {
		return fmt.Errorf("update goal cash flow: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update goal cash flow: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update goal %s: %w", goalID, core.ErrGoalNotFound)
	}

	slog.InfoContext(ctx, "Goal cash flow updated",
		"goal_id", goalID,
		"enabled", enabled,
		"amount_cents", amount.Cents,
		"frequency", string(freq))
	return nil
}

// GoalVersion returns the goal's current version counter.
func (r *SQLiteRepository) GoalVersion(ctx context.Context, goalID string) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx, `SELECT version FROM goals WHERE id = ?`, goalID).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("goal version %s: %w", goalID, core.ErrGoalNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("goal version: %w", err)
	}
	return version, nil
}

// AppendTransaction implements store.LedgerWriter.
func (r *SQLiteRepository) AppendTransaction(ctx context.Context, rec core.ContributionRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", fmt.Errorf("validate record: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (goal_id, amount_cents, tx_date, description,
			impact, direction, source_id, source_type, destination_id, destination_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.GoalID, rec.Amount.Cents, rec.Date.UTC().Format(time.RFC3339),
		rec.Description, nullableString(string(rec.Impact)),
		nullableString(string(rec.Direction)), nullableString(rec.SourceID),
		nullableString(rec.SourceType), nullableString(rec.DestinationID),
		nullableString(rec.DestinationType))
	if err != nil {
		return "", fmt.Errorf("append transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("append transaction: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

// TransactionsForGoal implements store.TransactionReader, newest first.
func (r *SQLiteRepository) TransactionsForGoal(ctx context.Context, goalID string) ([]core.ContributionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT goal_id, amount_cents, tx_date, description, impact, direction,
			source_id, source_type, destination_id, destination_type
		FROM transactions WHERE goal_id = ? ORDER BY tx_date DESC, id DESC`, goalID)
	if err != nil {
		return nil, fmt.Errorf("transactions for goal: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// TransactionsInRange implements store.TransactionReader, oldest first.
func (r *SQLiteRepository) TransactionsInRange(ctx context.Context, start, end time.Time) ([]core.ContributionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT goal_id, amount_cents, tx_date, description, impact, direction,
			source_id, source_type, destination_id, destination_type
		FROM transactions WHERE tx_date >= ? AND tx_date <= ? ORDER BY tx_date, id`,
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("transactions in range: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// PendingSyncGoal is the minimal row the sync worker needs.
type PendingSyncGoal struct {
	GoalID    string
	Version   int64
	UpdatedAt time.Time
}

// GetPendingSyncGoals returns goals whose latest update has not been
// mirrored yet.
func (r *SQLiteRepository) GetPendingSyncGoals(ctx context.Context, limit int) ([]PendingSyncGoal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, version, updated_at FROM goals
		WHERE sync_status = 'pending' ORDER BY updated_at LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync goals: %w", err)
	}
	defer rows.Close()

	var pending []PendingSyncGoal
	for rows.Next() {
		var p PendingSyncGoal
		var updated string
		if err := rows.Scan(&p.GoalID, &p.Version, &updated); err != nil {
			return nil, fmt.Errorf("scan pending goal: %w", err)
		}
		p.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// MarkSynced records a successful mirror of the goal.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, goalID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE goals SET sync_status = 'synced' WHERE id = ?`, goalID); err != nil {
		return fmt.Errorf("mark goal synced: %w", err)
	}
	slog.InfoContext(ctx, "Goal marked as synced", "goal_id", goalID)
	return nil
}

// MarkSyncError records a failed mirror attempt.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, goalID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE goals SET sync_status = 'error' WHERE id = ?`, goalID); err != nil {
		return fmt.Errorf("mark goal sync error: %w", err)
	}
	slog.WarnContext(ctx, "Goal marked with sync error", "goal_id", goalID)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row rowScanner) (core.Goal, error) {
	var (
		g          core.Goal
		targetDate sql.NullString
		kind       string
		enabled    int64
		freq       string
		groupID    sql.NullString
	)
	err := row.Scan(&g.ID, &g.Name, &g.CurrentAmount.Cents, &g.TargetAmount.Cents,
		&targetDate, &kind, &enabled, &g.CashFlowAmount.Cents, &freq, &groupID)
	if err != nil {
		return core.Goal{}, err
	}
	if targetDate.Valid && targetDate.String != "" {
		g.TargetDate, _ = time.Parse(time.RFC3339, targetDate.String)
	}
	g.Kind = core.GoalKind(kind)
	g.CashFlowEnabled = enabled != 0
	g.CashFlowFrequency = core.Frequency(freq)
	g.GroupID = groupID.String
	return g, nil
}

func collectRecords(rows *sql.Rows) ([]core.ContributionRecord, error) {
	var records []core.ContributionRecord
	for rows.Next() {
		var (
			rec      core.ContributionRecord
			date     string
			impact   sql.NullString
			dir      sql.NullString
			srcID    sql.NullString
			srcType  sql.NullString
			destID   sql.NullString
			destType sql.NullString
		)
		err := rows.Scan(&rec.GoalID, &rec.Amount.Cents, &date, &rec.Description,
			&impact, &dir, &srcID, &srcType, &destID, &destType)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		rec.Date, _ = time.Parse(time.RFC3339, date)
		rec.Impact = core.Impact(impact.String)
		rec.Direction = core.Direction(dir.String)
		rec.SourceID = srcID.String
		rec.SourceType = srcType.String
		rec.DestinationID = destID.String
		rec.DestinationType = destType.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return records, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
