package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vkazarin/mutualbot/internal/domain"
)

// LedgerService is the only place account balances change. Every mutation is
// an atomic transaction that updates the cached pools and appends a
// ledger_entries row.
type LedgerService struct {
	db *pgxpool.Pool
}

func NewLedgerService(db *pgxpool.Pool) *LedgerService {
	return &LedgerService{db: db}
}

// Account returns both pools for a user, creating the account on first
// reference.
func (s *LedgerService) Account(ctx context.Context, userID int64) (*domain.Account, error) {
	if _, err := s.db.Exec(ctx,
		`INSERT INTO accounts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return nil, fmt.Errorf("ensure account: %w", err)
	}

	var a domain.Account
	err := s.db.QueryRow(ctx,
		`SELECT user_id, deposited, earned, created_at FROM accounts WHERE user_id = $1`, userID).
		Scan(&a.UserID, &a.Deposited, &a.Earned, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

// Credit adds amount to the chosen pool. There is no funds check on credit.
func (s *LedgerService) Credit(ctx context.Context, userID int64, amount decimal.Decimal, kind domain.LedgerKind, memo string, pool domain.Pool) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.ErrInvalidAmount
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.creditTx(ctx, tx, userID, amount, kind, memo, pool); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Debit removes amount from the chosen pool under a row lock. Unless force is
// set, a pool may never go negative; force is reserved for penalty
// application.
func (s *LedgerService) Debit(ctx context.Context, userID int64, amount decimal.Decimal, kind domain.LedgerKind, memo string, pool domain.Pool, force bool) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.ErrInvalidAmount
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.debitTx(ctx, tx, userID, amount, kind, memo, pool, force); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SplitDebit charges total from deposited first, the remainder from earned.
// Both legs commit together or not at all.
func (s *LedgerService) SplitDebit(ctx context.Context, userID int64, total decimal.Decimal, kind domain.LedgerKind, memo string) error {
	if total.LessThanOrEqual(decimal.Zero) {
		return domain.ErrInvalidAmount
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.splitDebitTx(ctx, tx, userID, total, kind, memo); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// History returns the user's most recent ledger entries, newest first.
func (s *LedgerService) History(ctx context.Context, userID int64, limit int) ([]domain.LedgerEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, amount, kind, memo, created_at
		 FROM ledger_entries WHERE user_id = $1
		 ORDER BY id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Kind, &e.Memo, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// lockAccount locks the account row, creating it first if absent, and returns
// the current pools.
func (s *LedgerService) lockAccount(ctx context.Context, tx pgx.Tx, userID int64) (deposited, earned decimal.Decimal, err error) {
	if _, err = tx.Exec(ctx,
		`INSERT INTO accounts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("ensure account: %w", err)
	}
	err = tx.QueryRow(ctx,
		`SELECT deposited, earned FROM accounts WHERE user_id = $1 FOR UPDATE`, userID).
		Scan(&deposited, &earned)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("lock account: %w", err)
	}
	return deposited, earned, nil
}

func (s *LedgerService) creditTx(ctx context.Context, tx pgx.Tx, userID int64, amount decimal.Decimal, kind domain.LedgerKind, memo string, pool domain.Pool) error {
	if _, err := tx.Exec(ctx,
		`INSERT INTO accounts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}
	if _, err := tx.Exec(ctx, applyPoolSQL(pool), amount, userID); err != nil {
		return fmt.Errorf("update %s: %w", pool, err)
	}
	return s.appendEntry(ctx, tx, userID, amount, kind, memo)
}

func (s *LedgerService) debitTx(ctx context.Context, tx pgx.Tx, userID int64, amount decimal.Decimal, kind domain.LedgerKind, memo string, pool domain.Pool, force bool) error {
	deposited, earned, err := s.lockAccount(ctx, tx, userID)
	if err != nil {
		return err
	}

	current := deposited
	if pool == domain.PoolEarned {
		current = earned
	}
	if !force && current.LessThan(amount) {
		return domain.ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, applyPoolSQL(pool), amount.Neg(), userID); err != nil {
		return fmt.Errorf("update %s: %w", pool, err)
	}
	return s.appendEntry(ctx, tx, userID, amount.Neg(), kind, memo)
}

func (s *LedgerService) splitDebitTx(ctx context.Context, tx pgx.Tx, userID int64, total decimal.Decimal, kind domain.LedgerKind, memo string) error {
	deposited, earned, err := s.lockAccount(ctx, tx, userID)
	if err != nil {
		return err
	}

	fromDeposited, fromEarned := SplitCharge(deposited, total)
	if fromEarned.GreaterThan(earned) {
		return domain.ErrInsufficientFunds
	}

	if fromDeposited.IsPositive() {
		if _, err := tx.Exec(ctx, applyPoolSQL(domain.PoolDeposited), fromDeposited.Neg(), userID); err != nil {
			return fmt.Errorf("update deposited: %w", err)
		}
		if err := s.appendEntry(ctx, tx, userID, fromDeposited.Neg(), kind, memo); err != nil {
			return err
		}
	}
	if fromEarned.IsPositive() {
		if _, err := tx.Exec(ctx, applyPoolSQL(domain.PoolEarned), fromEarned.Neg(), userID); err != nil {
			return fmt.Errorf("update earned: %w", err)
		}
		if err := s.appendEntry(ctx, tx, userID, fromEarned.Neg(), kind, memo); err != nil {
			return err
		}
	}
	return nil
}

func (s *LedgerService) appendEntry(ctx context.Context, tx pgx.Tx, userID int64, amount decimal.Decimal, kind domain.LedgerKind, memo string) error {
	if _, err := tx.Exec(ctx,
		`INSERT INTO ledger_entries (user_id, amount, kind, memo) VALUES ($1, $2, $3, $4)`,
		userID, amount, string(kind), memo); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func applyPoolSQL(pool domain.Pool) string {
	if pool == domain.PoolEarned {
		return `UPDATE accounts SET earned = earned + $1 WHERE user_id = $2`
	}
	return `UPDATE accounts SET deposited = deposited + $1 WHERE user_id = $2`
}

// SplitCharge computes how a total charge divides between the deposited pool
// and the earned pool: deposited is drained first, the remainder falls on
// earned.
func SplitCharge(deposited, total decimal.Decimal) (fromDeposited, fromEarned decimal.Decimal) {
	fromDeposited = decimal.Min(deposited, total)
	if fromDeposited.IsNegative() {
		fromDeposited = decimal.Zero
	}
	fromEarned = total.Sub(fromDeposited)
	return fromDeposited, fromEarned
}
