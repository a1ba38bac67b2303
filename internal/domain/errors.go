package domain

import "errors"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadyCompleted  = errors.New("task already completed by this user")
	ErrTaskUnavailable   = errors.New("task inactive or capacity exhausted")
	ErrTaskNotFound      = errors.New("task not found")
	ErrAlreadyProcessed  = errors.New("review already processed")
	ErrNotPenalized      = errors.New("penalty not applied or already refunded")
	ErrInvoiceNotFound   = errors.New("invoice not found")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrPriceBelowMinimum = errors.New("price below type minimum")
	ErrNotTaskOwner      = errors.New("not the task owner")
)
