package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vkazarin/mutualbot/internal/config"
	"github.com/vkazarin/mutualbot/internal/domain"
)

// PaymentService handles Telegram Stars top-ups: the only path that credits
// the deposited pool.
type PaymentService struct {
	db     *pgxpool.Pool
	ledger *LedgerService
}

func NewPaymentService(db *pgxpool.Pool, ledger *LedgerService) *PaymentService {
	return &PaymentService{db: db, ledger: ledger}
}

// CoinsForStars converts a Stars amount into internal currency.
func CoinsForStars(stars int) decimal.Decimal {
	return decimal.NewFromInt(int64(stars) * config.StarsToCoinsRate)
}

// CreateStarsInvoice records a pending invoice and returns its payload for
// the Telegram invoice message.
func (s *PaymentService) CreateStarsInvoice(ctx context.Context, userID int64, stars int) (payload string, coins decimal.Decimal, err error) {
	inv := domain.Invoice{
		ID:          fmt.Sprintf("stars_%d_%s", userID, uuid.New().String()),
		UserID:      userID,
		Amount:      CoinsForStars(stars),
		PaymentType: "stars",
		Status:      domain.InvoiceStatusActive,
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO invoices (id, user_id, amount, payment_type, status) VALUES ($1, $2, $3, $4, $5)`,
		inv.ID, inv.UserID, inv.Amount, inv.PaymentType, string(inv.Status))
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("insert invoice: %w", err)
	}
	return inv.ID, inv.Amount, nil
}

// ConfirmStarsPayment credits the deposited pool after a successful payment.
// The invoice row dedupes redelivered updates: the credit lands only on the
// active→paid transition, and once for an unknown payload (a lost row must
// never swallow a paid top-up).
func (s *PaymentService) ConfirmStarsPayment(ctx context.Context, userID int64, stars int, payload string) (decimal.Decimal, error) {
	coins := CoinsForStars(stars)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if payload != "" {
		tag, err := tx.Exec(ctx,
			`UPDATE invoices SET status = $2 WHERE id = $1 AND status = $3`,
			payload, string(domain.InvoiceStatusPaid), string(domain.InvoiceStatusActive))
		if err != nil {
			return decimal.Zero, fmt.Errorf("mark invoice paid: %w", err)
		}
		if tag.RowsAffected() == 0 {
			inv, err := s.invoice(ctx, tx, payload)
			switch {
			case errors.Is(err, domain.ErrInvoiceNotFound):
				// Fall through and credit anyway.
			case err != nil:
				return decimal.Zero, err
			case inv.Status == domain.InvoiceStatusPaid:
				// Redelivered update, already credited.
				return coins, nil
			}
		}
	}

	memo := fmt.Sprintf("Покупка за %d Stars", stars)
	if err := s.ledger.creditTx(ctx, tx, userID, coins, domain.KindDepositStars, memo, domain.PoolDeposited); err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("commit: %w", err)
	}
	return coins, nil
}

func (s *PaymentService) invoice(ctx context.Context, tx pgx.Tx, id string) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := tx.QueryRow(ctx,
		`SELECT id, user_id, amount, payment_type, status, created_at FROM invoices WHERE id = $1`, id).
		Scan(&inv.ID, &inv.UserID, &inv.Amount, &inv.PaymentType, &inv.Status, &inv.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return &inv, nil
}
