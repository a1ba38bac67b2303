package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vkazarin/mutualbot/internal/domain"
)

// ReviewService holds manual-approval entries for task types verified by
// screenshot instead of an automated check.
type ReviewService struct {
	db          *pgxpool.Pool
	completions *CompletionService
}

func NewReviewService(db *pgxpool.Pool, completions *CompletionService) *ReviewService {
	return &ReviewService{db: db, completions: completions}
}

func (s *ReviewService) Create(ctx context.Context, userID, taskID int64) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO pending_reviews (user_id, task_id, status) VALUES ($1, $2, $3) RETURNING id`,
		userID, taskID, string(domain.ReviewPending)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create review: %w", err)
	}
	return id, nil
}

// ReviewResolution is the outcome of resolving a review.
type ReviewResolution struct {
	UserID     int64
	TaskID     int64
	Approved   bool
	Completion *CompletionResult // set when approved and completion succeeded
}

// Resolve deletes the review row and, on approval, delegates to the
// completion engine. The fetch-and-delete is atomic, so a second concurrent
// resolution sees ErrAlreadyProcessed.
func (s *ReviewService) Resolve(ctx context.Context, reviewID int64, approve bool) (*ReviewResolution, error) {
	rev := domain.PendingReview{ID: reviewID}
	err := s.db.QueryRow(ctx,
		`DELETE FROM pending_reviews WHERE id = $1 RETURNING user_id, task_id, status, created_at`, reviewID).
		Scan(&rev.UserID, &rev.TaskID, &rev.Status, &rev.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrAlreadyProcessed
		}
		return nil, fmt.Errorf("delete review: %w", err)
	}
	res := &ReviewResolution{UserID: rev.UserID, TaskID: rev.TaskID, Approved: approve}

	if !approve {
		return res, nil
	}

	completion, err := s.completions.Complete(ctx, res.UserID, res.TaskID)
	if err != nil {
		return res, err
	}
	res.Completion = completion
	return res, nil
}
