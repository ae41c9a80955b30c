// Package worker mirrors committed goal updates to the Google Sheets
// spreadsheet.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xphabletx/envelope-lite/internal/amqp"
	"github.com/xphabletx/envelope-lite/internal/core"
	"github.com/xphabletx/envelope-lite/internal/storage"
)

// GoalMirror writes a full goal row to the remote mirror.
type GoalMirror interface {
	UpsertGoal(ctx context.Context, g core.Goal) error
}

// SyncStore is the bookkeeping side of the sync: the local source of truth
// plus the per-goal sync status.
type SyncStore interface {
	GetGoal(ctx context.Context, goalID string) (core.Goal, error)
	MarkSynced(ctx context.Context, goalID string) error
	MarkSyncError(ctx context.Context, goalID string) error
	GetPendingSyncGoals(ctx context.Context, limit int) ([]storage.PendingSyncGoal, error)
}

var _ SyncStore = (*storage.SQLiteRepository)(nil)

// SyncWorker consumes goal-update messages and mirrors the updated goal to
// the spreadsheet, keeping sync bookkeeping in the local store.
type SyncWorker struct {
	storage   SyncStore
	mirror    GoalMirror
	batchSize int
}

func NewSyncWorker(storage SyncStore, mirror GoalMirror, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// HandleUpdateMessage processes a single goal-update message from AMQP.
func (w *SyncWorker) HandleUpdateMessage(ctx context.Context, msg *amqp.GoalUpdateMessage) error {
	slog.InfoContext(ctx, "Processing goal update message",
		"goal_id", msg.GoalID,
		"version", msg.Version)

	goal, err := w.storage.GetGoal(ctx, msg.GoalID)
	if err != nil {
		return fmt.Errorf("get goal from storage: %w", err)
	}

	if w.mirror == nil {
		slog.WarnContext(ctx, "No goal mirror configured, skipping",
			"goal_id", msg.GoalID)
		return nil
	}

	if err := w.mirror.UpsertGoal(ctx, goal); err != nil {
		if markErr := w.storage.MarkSyncError(ctx, msg.GoalID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error",
				"goal_id", msg.GoalID, "error", markErr)
		}
		return fmt.Errorf("mirror goal to sheet: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, msg.GoalID); err != nil {
		return fmt.Errorf("mark goal synced: %w", err)
	}
	return nil
}

// DrainPending mirrors goals whose updates predate the consumer, e.g. after
// downtime. Runs one batch; returns how many goals were mirrored.
func (w *SyncWorker) DrainPending(ctx context.Context) (int, error) {
	pending, err := w.storage.GetPendingSyncGoals(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending sync goals: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	synced := 0
	for _, p := range pending {
		msg := amqp.NewGoalUpdateMessage(p.GoalID, p.Version)
		if err := w.HandleUpdateMessage(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to drain pending goal",
				"goal_id", p.GoalID, "error", err)
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Drained pending goal updates",
		"pending", len(pending), "synced", synced)
	return synced, nil
}
