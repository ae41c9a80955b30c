package store

import (
	"context"
	"time"

	"github.com/xphabletx/envelope-lite/internal/core"
)

// Ports for the external goal/transaction store. The engine only ever reads
// snapshots and issues one mutating call, UpdateGoalCashFlow, during the
// payday execution phase.
type (
	GoalReader interface {
		// ListGoals returns a snapshot of every goal.
		ListGoals(ctx context.Context) ([]core.Goal, error)
	}

	GoalWriter interface {
		// UpdateGoalCashFlow sets a goal's recurring cash-flow settings.
		UpdateGoalCashFlow(ctx context.Context, goalID string, enabled bool, amount core.Money, freq core.Frequency) error
	}

	TransactionReader interface {
		// TransactionsForGoal returns a goal's ledger, newest first.
		TransactionsForGoal(ctx context.Context, goalID string) ([]core.ContributionRecord, error)

		// TransactionsInRange returns every record with start <= date <= end.
		TransactionsInRange(ctx context.Context, start, end time.Time) ([]core.ContributionRecord, error)
	}

	// LedgerWriter records new contribution events. The engine itself never
	// calls this; it exists for seeding and the sync worker.
	LedgerWriter interface {
		AppendTransaction(ctx context.Context, rec core.ContributionRecord) (ref string, err error)
	}

	// Store is the full collaborator surface the planner wires against.
	Store interface {
		GoalReader
		GoalWriter
		TransactionReader
	}
)
