package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusActive InvoiceStatus = "active"
	InvoiceStatusPaid   InvoiceStatus = "paid"
)

type Invoice struct {
	ID          string
	UserID      int64
	Amount      decimal.Decimal
	PaymentType string
	Status      InvoiceStatus
	CreatedAt   time.Time
}
