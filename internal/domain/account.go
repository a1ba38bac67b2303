package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pool names one of the two sub-balances of an account. Purchases draw
// deposited first, then earned; penalties draw only from earned.
type Pool string

const (
	PoolDeposited Pool = "deposited"
	PoolEarned    Pool = "earned"
)

type Account struct {
	UserID    int64
	Deposited decimal.Decimal
	Earned    decimal.Decimal
	CreatedAt time.Time
}

func (a *Account) Total() decimal.Decimal {
	return a.Deposited.Add(a.Earned)
}
