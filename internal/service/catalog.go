package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vkazarin/mutualbot/internal/config"
	"github.com/vkazarin/mutualbot/internal/domain"
)

type CatalogService struct {
	db     *pgxpool.Pool
	ledger *LedgerService
}

func NewCatalogService(db *pgxpool.Pool, ledger *LedgerService) *CatalogService {
	return &CatalogService{db: db, ledger: ledger}
}

// AvailableCounts holds per-type counts of tasks a user can still take.
type AvailableCounts struct {
	Channels  int
	Groups    int
	Views     int
	Reactions int
	Bots      int
}

// Create validates the price against the type minimum, charges
// unitPrice×capacity from the owner (deposited first, then earned) and inserts
// the task. The charge and the insert commit together or not at all.
func (s *CatalogService) Create(ctx context.Context, ownerID int64, link, title string, taskType domain.TaskType, unitPrice decimal.Decimal, capacity int) (int64, error) {
	if !taskType.Valid() {
		return 0, fmt.Errorf("unknown task type %q", taskType)
	}
	if capacity <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	if unitPrice.LessThan(config.MinTaskPrice(taskType)) {
		return 0, domain.ErrPriceBelowMinimum
	}

	cost := unitPrice.Mul(decimal.NewFromInt(int64(capacity)))

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	memo := fmt.Sprintf("Задание %d (%s)", capacity, taskType)
	if err := s.ledger.splitDebitTx(ctx, tx, ownerID, cost, domain.KindTaskCreate, memo); err != nil {
		return 0, err
	}

	var taskID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO tasks (owner_id, target, title, task_type, unit_price, needed)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		ownerID, link, title, string(taskType), unitPrice, capacity).Scan(&taskID)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return taskID, nil
}

func (s *CatalogService) Get(ctx context.Context, taskID int64) (*domain.Task, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, owner_id, target, title, task_type, unit_price, needed, done, active, created_at
		 FROM tasks WHERE id = $1`, taskID)
	t, err := scanTask(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

const availableCond = `active
	AND done < needed
	AND owner_id <> $1
	AND id NOT IN (SELECT task_id FROM completions WHERE user_id = $1)`

// ListAvailable returns tasks of a type the user can still take, best paying
// first, with the total count for pagination. Read-only, no locks.
func (s *CatalogService) ListAvailable(ctx context.Context, userID int64, taskType domain.TaskType, page, perPage int) ([]domain.Task, int, error) {
	if page < 1 {
		page = 1
	}

	var total int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM tasks WHERE task_type = $2 AND `+availableCond,
		userID, string(taskType)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count available: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, owner_id, target, title, task_type, unit_price, needed, done, active, created_at
		 FROM tasks WHERE task_type = $2 AND `+availableCond+`
		 ORDER BY unit_price DESC, created_at DESC
		 LIMIT $3 OFFSET $4`,
		userID, string(taskType), perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list available: %w", err)
	}
	defer rows.Close()

	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// ListOwned returns all tasks owned by the user, newest first.
func (s *CatalogService) ListOwned(ctx context.Context, ownerID int64, page, perPage int) ([]domain.Task, int, error) {
	if page < 1 {
		page = 1
	}

	var total int
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM tasks WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count owned: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, owner_id, target, title, task_type, unit_price, needed, done, active, created_at
		 FROM tasks WHERE owner_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		ownerID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list owned: %w", err)
	}
	defer rows.Close()

	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// Counts returns per-type availability for the earn menu.
func (s *CatalogService) Counts(ctx context.Context, userID int64) (*AvailableCounts, error) {
	rows, err := s.db.Query(ctx,
		`SELECT task_type, COUNT(*) FROM tasks WHERE `+availableCond+` GROUP BY task_type`, userID)
	if err != nil {
		return nil, fmt.Errorf("count available: %w", err)
	}
	defer rows.Close()

	var c AvailableCounts
	for rows.Next() {
		var taskType string
		var n int
		if err := rows.Scan(&taskType, &n); err != nil {
			return nil, fmt.Errorf("scan counts: %w", err)
		}
		switch domain.TaskType(taskType) {
		case domain.TaskChannel:
			c.Channels = n
		case domain.TaskGroup:
			c.Groups = n
		case domain.TaskView:
			c.Views = n
		case domain.TaskReaction:
			c.Reactions = n
		case domain.TaskBot:
			c.Bots = n
		}
	}
	return &c, rows.Err()
}

// SetActive toggles a task on or off; only the owner may do it.
func (s *CatalogService) SetActive(ctx context.Context, taskID, ownerID int64, active bool) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE tasks SET active = $3 WHERE id = $1 AND owner_id = $2`, taskID, ownerID, active)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotTaskOwner
	}
	return nil
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	var taskType string
	err := row.Scan(&t.ID, &t.OwnerID, &t.Target, &t.Title, &taskType, &t.UnitPrice,
		&t.Needed, &t.Done, &t.Active, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Type = domain.TaskType(taskType)
	return &t, nil
}

func collectTasks(rows pgx.Rows) ([]domain.Task, error) {
	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}
