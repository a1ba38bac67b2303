package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vkazarin/mutualbot/internal/config"
	"github.com/vkazarin/mutualbot/internal/domain"
	"github.com/vkazarin/mutualbot/internal/membership"
)

// ComplianceMonitor periodically re-verifies revocable completions against
// the membership collaborator and applies a one-shot, reversible penalty to
// users who unsubscribed within the retention window.
//
// A single instance is assumed; cycles are strictly sequential. Running two
// instances concurrently would need an external lease, which this design does
// not provide.
type ComplianceMonitor struct {
	db       *pgxpool.Pool
	ledger   *LedgerService
	checker  membership.Checker
	notifier membership.Notifier

	interval time.Duration
	backoff  time.Duration
	window   time.Duration
}

func NewComplianceMonitor(db *pgxpool.Pool, ledger *LedgerService, checker membership.Checker, notifier membership.Notifier, cfg *config.Config) *ComplianceMonitor {
	return &ComplianceMonitor{
		db:       db,
		ledger:   ledger,
		checker:  checker,
		notifier: notifier,
		interval: cfg.MonitorInterval,
		backoff:  cfg.MonitorBackoff,
		window:   cfg.RetentionWindow(),
	}
}

// Run executes cycles until ctx is cancelled. A failed cycle is logged and
// followed by the back-off delay instead of the normal interval; the loop
// never exits on a transient failure.
func (m *ComplianceMonitor) Run(ctx context.Context) {
	slog.Info("compliance monitor started",
		"interval", m.interval, "backoff", m.backoff, "window", m.window)

	for {
		select {
		case <-ctx.Done():
			slog.Info("compliance monitor stopped")
			return
		case <-time.After(m.interval):
		}

		if err := m.RunCycle(ctx); err != nil {
			slog.Error("compliance cycle failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.backoff):
			}
		}
	}
}

// watchRow is a subscription watch joined with the task fields the cycle
// needs.
type watchRow struct {
	watch     domain.SubscriptionWatch
	target    string
	title     string
	unitPrice decimal.Decimal
}

// RunCycle checks every watch row inside the retention window. A row that
// cannot be verified is skipped without state change; a row whose user left
// is penalized. Per-row failures never abort the rest of the cycle.
func (m *ComplianceMonitor) RunCycle(ctx context.Context) error {
	rows, err := m.db.Query(ctx,
		`SELECT s.user_id, s.task_id, s.subscribed_at, s.checked_at, s.rewarded, s.penalized,
		        t.target, t.title, t.unit_price
		 FROM subscription_watch s
		 JOIN tasks t ON t.id = s.task_id
		 WHERE s.subscribed_at > now() - $1::interval
		   AND s.rewarded
		   AND NOT s.penalized
		   AND t.task_type IN ('channel', 'group')`,
		m.window)
	if err != nil {
		return fmt.Errorf("query watches: %w", err)
	}

	var watches []watchRow
	for rows.Next() {
		var w watchRow
		if err := rows.Scan(&w.watch.UserID, &w.watch.TaskID, &w.watch.SubscribedAt,
			&w.watch.CheckedAt, &w.watch.Rewarded, &w.watch.Penalized,
			&w.target, &w.title, &w.unitPrice); err != nil {
			rows.Close()
			return fmt.Errorf("scan watch: %w", err)
		}
		watches = append(watches, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate watches: %w", err)
	}

	for _, w := range watches {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch m.checker.Check(ctx, w.target, w.watch.UserID) {
		case membership.Unknown:
			// Fail-open: an unverifiable user is never penalized.
			continue
		case membership.Member:
			if _, err := m.db.Exec(ctx,
				`UPDATE subscription_watch SET checked_at = now() WHERE user_id = $1 AND task_id = $2`,
				w.watch.UserID, w.watch.TaskID); err != nil {
				slog.Error("touch watch failed", "user_id", w.watch.UserID, "task_id", w.watch.TaskID, "error", err)
			}
		case membership.NotMember:
			penalty := w.unitPrice.Mul(decimal.NewFromInt(config.PenaltyMultiplier))
			applied, err := m.applyPenalty(ctx, w, penalty)
			if err != nil {
				slog.Error("apply penalty failed", "user_id", w.watch.UserID, "task_id", w.watch.TaskID, "error", err)
				continue
			}
			if applied {
				slog.Info("penalty applied",
					"user_id", w.watch.UserID, "task_id", w.watch.TaskID, "amount", penalty)
				m.notifier.NotifyPenalty(ctx, membership.PenaltyNotice{
					UserID:  w.watch.UserID,
					TaskID:  w.watch.TaskID,
					Title:   w.title,
					Link:    w.target,
					Penalty: penalty,
				})
			}
		}
	}
	return nil
}

// applyPenalty force-debits the earned pool and sets the penalized flag in
// one transaction. The flag is re-read under a row lock, so an overlapping
// cycle or a racing refund can never double-charge.
func (m *ComplianceMonitor) applyPenalty(ctx context.Context, w watchRow, penalty decimal.Decimal) (bool, error) {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var penalized bool
	err = tx.QueryRow(ctx,
		`SELECT penalized FROM subscription_watch WHERE user_id = $1 AND task_id = $2 FOR UPDATE`,
		w.watch.UserID, w.watch.TaskID).Scan(&penalized)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("lock watch: %w", err)
	}
	if penalized {
		return false, nil
	}

	memo := fmt.Sprintf("Штраф за отписку: %s", w.title)
	if err := m.ledger.debitTx(ctx, tx, w.watch.UserID, penalty, domain.KindPenalty, memo, domain.PoolEarned, true); err != nil {
		return false, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE subscription_watch SET penalized = TRUE, checked_at = now()
		 WHERE user_id = $1 AND task_id = $2`, w.watch.UserID, w.watch.TaskID); err != nil {
		return false, fmt.Errorf("set penalized: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// RefundPenalty credits back an applied penalty and clears the flag, both
// under the watch row lock. Whether the user actually re-subscribed is the
// caller's concern; only the flag invariant is enforced here.
func (m *ComplianceMonitor) RefundPenalty(ctx context.Context, userID, taskID int64) (decimal.Decimal, error) {
	var unitPrice decimal.Decimal
	var title string
	err := m.db.QueryRow(ctx,
		`SELECT unit_price, title FROM tasks WHERE id = $1`, taskID).Scan(&unitPrice, &title)
	if err != nil {
		if err == pgx.ErrNoRows {
			return decimal.Zero, domain.ErrTaskNotFound
		}
		return decimal.Zero, fmt.Errorf("get task: %w", err)
	}
	refund := unitPrice.Mul(decimal.NewFromInt(config.PenaltyMultiplier))

	tx, err := m.db.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var penalized bool
	err = tx.QueryRow(ctx,
		`SELECT penalized FROM subscription_watch WHERE user_id = $1 AND task_id = $2 FOR UPDATE`,
		userID, taskID).Scan(&penalized)
	if err != nil {
		if err == pgx.ErrNoRows {
			return decimal.Zero, domain.ErrNotPenalized
		}
		return decimal.Zero, fmt.Errorf("lock watch: %w", err)
	}
	if !penalized {
		return decimal.Zero, domain.ErrNotPenalized
	}

	memo := fmt.Sprintf("Возврат штрафа за задачу #%d", taskID)
	if err := m.ledger.creditTx(ctx, tx, userID, refund, domain.KindRefundPenalty, memo, domain.PoolEarned); err != nil {
		return decimal.Zero, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE subscription_watch SET penalized = FALSE WHERE user_id = $1 AND task_id = $2`,
		userID, taskID); err != nil {
		return decimal.Zero, fmt.Errorf("clear penalized: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("commit: %w", err)
	}
	return refund, nil
}
