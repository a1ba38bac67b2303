package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LedgerKind string

const (
	KindDepositStars  LedgerKind = "deposit_stars"
	KindTaskEarn      LedgerKind = "task_earn"
	KindTaskCreate    LedgerKind = "task_create"
	KindPenalty       LedgerKind = "penalty"
	KindRefundPenalty LedgerKind = "refund_penalty"
	KindAdminBonus    LedgerKind = "admin_bonus"
)

// LedgerEntry is an append-only audit record. Account balances are a cached
// projection of these rows; the two must always agree.
type LedgerEntry struct {
	ID        int64
	UserID    int64
	Amount    decimal.Decimal
	Kind      LedgerKind
	Memo      string
	CreatedAt time.Time
}
