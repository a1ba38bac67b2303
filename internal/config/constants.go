package config

import (
	"github.com/shopspring/decimal"
	"github.com/vkazarin/mutualbot/internal/domain"
)

const (
	// Internal currency
	CurrencyName = "FCOINS"

	// Telegram Stars conversion rate
	StarsToCoinsRate = 2000

	// Penalty for unsubscribing within the retention window
	PenaltyMultiplier = 2

	// Tasks per page in listings
	TasksPerPage = 5

	// Custom Stars top-up bounds
	MinStarsTopUp = 1
	MaxStarsTopUp = 10000
)

// Minimum unit prices per task type, in FCOINS.
var minPrices = map[domain.TaskType]decimal.Decimal{
	domain.TaskChannel:  decimal.NewFromInt(850),
	domain.TaskGroup:    decimal.NewFromInt(850),
	domain.TaskView:     decimal.NewFromInt(100),
	domain.TaskReaction: decimal.NewFromInt(150),
	domain.TaskBot:      decimal.NewFromInt(800),
}

func MinTaskPrice(t domain.TaskType) decimal.Decimal {
	if p, ok := minPrices[t]; ok {
		return p
	}
	return minPrices[domain.TaskChannel]
}

// StarAmounts offered as fixed top-up options.
var StarAmounts = []int{1, 5, 15, 50}
