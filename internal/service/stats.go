package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type StatsService struct {
	db *pgxpool.Pool
}

func NewStatsService(db *pgxpool.Pool) *StatsService {
	return &StatsService{db: db}
}

// Global returns the user count and the number of completions since midnight.
func (s *StatsService) Global(ctx context.Context) (users int, completedToday int, err error) {
	if err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&users); err != nil {
		return 0, 0, fmt.Errorf("count accounts: %w", err)
	}
	if err = s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM completions WHERE completed_at >= CURRENT_DATE`).Scan(&completedToday); err != nil {
		return 0, 0, fmt.Errorf("count completions: %w", err)
	}
	return users, completedToday, nil
}
