package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vkazarin/mutualbot/internal/domain"
)

// CompletionService performs exactly-once task completion. The whole attempt
// is a single transaction: duplicate check, capacity re-check under a task row
// lock, completion insert, watch upsert, counter increment and reward credit
// commit together or not at all.
type CompletionService struct {
	db     *pgxpool.Pool
	ledger *LedgerService
}

func NewCompletionService(db *pgxpool.Pool, ledger *LedgerService) *CompletionService {
	return &CompletionService{db: db, ledger: ledger}
}

// CompletionResult reports what a successful completion paid out.
type CompletionResult struct {
	TaskID   int64
	Type     domain.TaskType
	Title    string
	Reward   decimal.Decimal
	LastSlot bool
}

// Completed reports whether the user already completed the task.
func (s *CompletionService) Completed(ctx context.Context, userID, taskID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM completions WHERE user_id = $1 AND task_id = $2)`,
		userID, taskID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check completion: %w", err)
	}
	return exists, nil
}

func (s *CompletionService) Complete(ctx context.Context, userID, taskID int64) (*CompletionResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM completions WHERE user_id = $1 AND task_id = $2)`,
		userID, taskID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check completion: %w", err)
	}
	if exists {
		return nil, domain.ErrAlreadyCompleted
	}

	// Task lock serializes concurrent attempts racing for the last slot.
	var t domain.Task
	var taskType string
	err = tx.QueryRow(ctx,
		`SELECT id, title, task_type, unit_price, needed, done, active
		 FROM tasks WHERE id = $1 FOR UPDATE`, taskID).
		Scan(&t.ID, &t.Title, &taskType, &t.UnitPrice, &t.Needed, &t.Done, &t.Active)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrTaskUnavailable
		}
		return nil, fmt.Errorf("lock task: %w", err)
	}
	t.Type = domain.TaskType(taskType)
	if !t.Active || t.Done >= t.Needed {
		return nil, domain.ErrTaskUnavailable
	}

	// The primary key is the authority on uniqueness; a racing insert that
	// slipped past the check above is rejected here.
	if _, err := tx.Exec(ctx,
		`INSERT INTO completions (user_id, task_id) VALUES ($1, $2)`, userID, taskID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyCompleted
		}
		return nil, fmt.Errorf("insert completion: %w", err)
	}

	if t.Type.Revocable() {
		// Re-subscribing to a long-ago task reuses the row; an open penalty
		// is not reset here, only refundPenalty clears it.
		if _, err := tx.Exec(ctx,
			`INSERT INTO subscription_watch (user_id, task_id, subscribed_at, rewarded)
			 VALUES ($1, $2, now(), TRUE)
			 ON CONFLICT (user_id, task_id) DO UPDATE SET subscribed_at = now(), rewarded = TRUE`,
			userID, taskID); err != nil {
			return nil, fmt.Errorf("upsert subscription watch: %w", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE tasks SET done = done + 1 WHERE id = $1`, taskID); err != nil {
		return nil, fmt.Errorf("increment done: %w", err)
	}

	memo := fmt.Sprintf("Выполнение задания #%d (%s)", taskID, t.Type)
	if err := s.ledger.creditTx(ctx, tx, userID, t.UnitPrice, domain.KindTaskEarn, memo, domain.PoolEarned); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &CompletionResult{
		TaskID:   taskID,
		Type:     t.Type,
		Title:    t.Title,
		Reward:   t.UnitPrice,
		LastSlot: t.Done+1 >= t.Needed,
	}, nil
}
