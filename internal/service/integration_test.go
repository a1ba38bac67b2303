package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	mutualbot "github.com/vkazarin/mutualbot"
	"github.com/vkazarin/mutualbot/internal/config"
	"github.com/vkazarin/mutualbot/internal/domain"
	"github.com/vkazarin/mutualbot/internal/membership"
	"github.com/vkazarin/mutualbot/internal/repository"
)

// Integration tests run against a real Postgres set via TEST_DATABASE_URL and
// are skipped otherwise.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := repository.NewPool(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	migrationsFS, err := fs.Sub(mutualbot.MigrationsFS, "migrations")
	if err != nil {
		t.Fatalf("migrations fs: %v", err)
	}
	if err := repository.RunMigrations(dbURL, migrationsFS); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

var idCounter atomic.Int64

// nextID returns process-unique IDs so tests do not collide on a shared
// database.
func nextID() int64 {
	return time.Now().UnixNano() + idCounter.Add(1)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fundUser(t *testing.T, ledger *LedgerService, userID int64, deposited, earned string) {
	t.Helper()
	ctx := context.Background()
	if d := dec(deposited); d.IsPositive() {
		if err := ledger.Credit(ctx, userID, d, domain.KindDepositStars, "тест", domain.PoolDeposited); err != nil {
			t.Fatalf("fund deposited: %v", err)
		}
	}
	if e := dec(earned); e.IsPositive() {
		if err := ledger.Credit(ctx, userID, e, domain.KindTaskEarn, "тест", domain.PoolEarned); err != nil {
			t.Fatalf("fund earned: %v", err)
		}
	}
}

// checkLedgerConsistency asserts that the cached pools equal the sum of the
// user's ledger entries.
func checkLedgerConsistency(t *testing.T, pool *pgxpool.Pool, ledger *LedgerService, userID int64) {
	t.Helper()
	ctx := context.Background()

	account, err := ledger.Account(ctx, userID)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	var sum decimal.Decimal
	err = pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE user_id = $1`, userID).Scan(&sum)
	if err != nil {
		t.Fatalf("sum entries: %v", err)
	}
	if !account.Total().Equal(sum) {
		t.Errorf("pools (%s) diverge from ledger sum (%s)", account.Total(), sum)
	}
}

func TestLedgerAccountLazyCreation(t *testing.T) {
	pool := testPool(t)
	ledger := NewLedgerService(pool)
	userID := nextID()

	account, err := ledger.Account(context.Background(), userID)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if !account.Deposited.IsZero() || !account.Earned.IsZero() {
		t.Errorf("new account not empty: deposited=%s earned=%s", account.Deposited, account.Earned)
	}
}

func TestLedgerSplitDebit(t *testing.T) {
	pool := testPool(t)
	ledger := NewLedgerService(pool)
	ctx := context.Background()

	t.Run("spills into earned", func(t *testing.T) {
		userID := nextID()
		fundUser(t, ledger, userID, "500", "800")

		if err := ledger.SplitDebit(ctx, userID, dec("1300"), domain.KindTaskCreate, "тест"); err != nil {
			t.Fatalf("split debit: %v", err)
		}

		account, _ := ledger.Account(ctx, userID)
		if !account.Deposited.IsZero() || !account.Earned.IsZero() {
			t.Errorf("expected empty pools, got deposited=%s earned=%s", account.Deposited, account.Earned)
		}
		checkLedgerConsistency(t, pool, ledger, userID)
	})

	t.Run("insufficient total leaves pools untouched", func(t *testing.T) {
		userID := nextID()
		fundUser(t, ledger, userID, "500", "800")

		err := ledger.SplitDebit(ctx, userID, dec("1301"), domain.KindTaskCreate, "тест")
		if !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Fatalf("err = %v, want ErrInsufficientFunds", err)
		}

		account, _ := ledger.Account(ctx, userID)
		if !account.Deposited.Equal(dec("500")) || !account.Earned.Equal(dec("800")) {
			t.Errorf("pools changed on failed debit: deposited=%s earned=%s", account.Deposited, account.Earned)
		}
		checkLedgerConsistency(t, pool, ledger, userID)
	})
}

func TestLedgerDebitForce(t *testing.T) {
	pool := testPool(t)
	ledger := NewLedgerService(pool)
	ctx := context.Background()
	userID := nextID()
	fundUser(t, ledger, userID, "0", "100")

	err := ledger.Debit(ctx, userID, dec("300"), domain.KindPenalty, "тест", domain.PoolEarned, false)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("unforced err = %v, want ErrInsufficientFunds", err)
	}

	if err := ledger.Debit(ctx, userID, dec("300"), domain.KindPenalty, "тест", domain.PoolEarned, true); err != nil {
		t.Fatalf("forced debit: %v", err)
	}

	account, _ := ledger.Account(ctx, userID)
	if !account.Earned.Equal(dec("-200")) {
		t.Errorf("earned = %s, want -200", account.Earned)
	}
	checkLedgerConsistency(t, pool, ledger, userID)
}

func TestCompletionExactlyOnce(t *testing.T) {
	pool := testPool(t)
	ledger := NewLedgerService(pool)
	catalog := NewCatalogService(pool, ledger)
	completions := NewCompletionService(pool, ledger)
	ctx := context.Background()

	ownerID, executorID := nextID(), nextID()
	fundUser(t, ledger, ownerID, "100000", "0")

	taskID, err := catalog.Create(ctx, ownerID, "@testchan", "Test", domain.TaskChannel, dec("850"), 10)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if done, err := completions.Completed(ctx, executorID, taskID); err != nil || done {
		t.Fatalf("Completed before = %v, %v; want false, nil", done, err)
	}

	result, err := completions.Complete(ctx, executorID, taskID)
	if err != nil {
		t.Fatalf("first completion: %v", err)
	}
	if !result.Reward.Equal(dec("850")) {
		t.Errorf("reward = %s, want 850", result.Reward)
	}

	if done, err := completions.Completed(ctx, executorID, taskID); err != nil || !done {
		t.Fatalf("Completed after = %v, %v; want true, nil", done, err)
	}

	_, err = completions.Complete(ctx, executorID, taskID)
	if !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("second completion err = %v, want ErrAlreadyCompleted", err)
	}

	account, _ := ledger.Account(ctx, executorID)
	if !account.Earned.Equal(dec("850")) {
		t.Errorf("earned = %s, want 850 (credited exactly once)", account.Earned)
	}
	checkLedgerConsistency(t, pool, ledger, executorID)
}

func TestCompletionLastSlotRace(t *testing.T) {
	pool := testPool(t)
	ledger := NewLedgerService(pool)
	catalog := NewCatalogService(pool, ledger)
	completions := NewCompletionService(pool, ledger)
	ctx := context.Background()

	ownerID := nextID()
	fundUser(t, ledger, ownerID, "10000", "0")

	taskID, err := catalog.Create(ctx, ownerID, "@testchan", "Test", domain.TaskChannel, dec("850"), 1)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	const racers = 5
	var wg sync.WaitGroup
	var successes, unavailable atomic.Int64
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := completions.Complete(ctx, nextID(), taskID)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, domain.ErrTaskUnavailable):
				unavailable.Add(1)
			default:
				t.Errorf("unexpected err: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes.Load() != 1 {
		t.Errorf("successes = %d, want exactly 1", successes.Load())
	}
	if unavailable.Load() != racers-1 {
		t.Errorf("unavailable = %d, want %d", unavailable.Load(), racers-1)
	}

	task, err := catalog.Get(ctx, taskID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.Done != 1 {
		t.Errorf("done = %d, want 1 (capacity never exceeded)", task.Done)
	}
}

type fixedChecker struct{ status membership.Status }

func (c fixedChecker) Check(context.Context, string, int64) membership.Status { return c.status }

type recordingNotifier struct {
	mu      sync.Mutex
	notices []membership.PenaltyNotice
}

func (n *recordingNotifier) NotifyPenalty(_ context.Context, notice membership.PenaltyNotice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *recordingNotifier) notified(userID int64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, notice := range n.notices {
		if notice.UserID == userID {
			return true
		}
	}
	return false
}

func getWatch(t *testing.T, pool *pgxpool.Pool, userID, taskID int64) domain.SubscriptionWatch {
	t.Helper()
	var w domain.SubscriptionWatch
	err := pool.QueryRow(context.Background(),
		`SELECT user_id, task_id, subscribed_at, checked_at, rewarded, penalized
		 FROM subscription_watch WHERE user_id = $1 AND task_id = $2`, userID, taskID).
		Scan(&w.UserID, &w.TaskID, &w.SubscribedAt, &w.CheckedAt, &w.Rewarded, &w.Penalized)
	if err != nil {
		t.Fatalf("get watch: %v", err)
	}
	return w
}

func monitorConfig() *config.Config {
	return &config.Config{
		MonitorInterval: 25 * time.Second,
		MonitorBackoff:  60 * time.Second,
		RetentionDays:   5,
	}
}

func TestPenaltyOneShotAndRefund(t *testing.T) {
	pool := testPool(t)
	ledger := NewLedgerService(pool)
	catalog := NewCatalogService(pool, ledger)
	completions := NewCompletionService(pool, ledger)
	ctx := context.Background()

	ownerID, executorID := nextID(), nextID()
	fundUser(t, ledger, ownerID, "10000", "0")

	taskID, err := catalog.Create(ctx, ownerID, "@testchan", "Test", domain.TaskChannel, dec("850"), 5)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := completions.Complete(ctx, executorID, taskID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	notifier := &recordingNotifier{}
	monitor := NewComplianceMonitor(pool, ledger, fixedChecker{membership.NotMember}, notifier, monitorConfig())

	w := watchRow{
		watch:     domain.SubscriptionWatch{UserID: executorID, TaskID: taskID},
		target:    "@testchan",
		title:     "Test",
		unitPrice: dec("850"),
	}
	penalty := dec("1700")

	applied, err := monitor.applyPenalty(ctx, w, penalty)
	if err != nil || !applied {
		t.Fatalf("first penalty: applied=%v err=%v", applied, err)
	}
	applied, err = monitor.applyPenalty(ctx, w, penalty)
	if err != nil || applied {
		t.Fatalf("second penalty must be a no-op: applied=%v err=%v", applied, err)
	}

	account, _ := ledger.Account(ctx, executorID)
	if !account.Earned.Equal(dec("-850")) {
		t.Errorf("earned = %s, want -850 (850 reward - 1700 penalty, once)", account.Earned)
	}

	refund, err := monitor.RefundPenalty(ctx, executorID, taskID)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if !refund.Equal(penalty) {
		t.Errorf("refund = %s, want %s", refund, penalty)
	}

	if _, err := monitor.RefundPenalty(ctx, executorID, taskID); !errors.Is(err, domain.ErrNotPenalized) {
		t.Fatalf("second refund err = %v, want ErrNotPenalized", err)
	}

	account, _ = ledger.Account(ctx, executorID)
	if !account.Earned.Equal(dec("850")) {
		t.Errorf("earned = %s, want 850 after refund", account.Earned)
	}
	checkLedgerConsistency(t, pool, ledger, executorID)
}

func TestComplianceCycleSkipsUnknown(t *testing.T) {
	pool := testPool(t)
	ledger := NewLedgerService(pool)
	catalog := NewCatalogService(pool, ledger)
	completions := NewCompletionService(pool, ledger)
	ctx := context.Background()

	ownerID, executorID := nextID(), nextID()
	fundUser(t, ledger, ownerID, "10000", "0")

	taskID, err := catalog.Create(ctx, ownerID, "@testchan", "Test", domain.TaskChannel, dec("850"), 5)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := completions.Complete(ctx, executorID, taskID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	notifier := &recordingNotifier{}
	monitor := NewComplianceMonitor(pool, ledger, fixedChecker{membership.Unknown}, notifier, monitorConfig())

	if err := monitor.RunCycle(ctx); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	account, _ := ledger.Account(ctx, executorID)
	if !account.Earned.Equal(dec("850")) {
		t.Errorf("earned = %s, want 850 (unknown status never penalizes)", account.Earned)
	}
}

func TestComplianceCycleRetentionWindow(t *testing.T) {
	pool := testPool(t)
	ledger := NewLedgerService(pool)
	catalog := NewCatalogService(pool, ledger)
	completions := NewCompletionService(pool, ledger)
	ctx := context.Background()

	ownerID, staleUser, freshUser := nextID(), nextID(), nextID()
	fundUser(t, ledger, ownerID, "10000", "0")

	taskID, err := catalog.Create(ctx, ownerID, "@testchan", "Test", domain.TaskChannel, dec("850"), 5)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	for _, userID := range []int64{staleUser, freshUser} {
		if _, err := completions.Complete(ctx, userID, taskID); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}

	// One watch falls outside the 5-day window.
	if _, err := pool.Exec(ctx,
		`UPDATE subscription_watch SET subscribed_at = now() - interval '6 days'
		 WHERE user_id = $1 AND task_id = $2`, staleUser, taskID); err != nil {
		t.Fatalf("backdate watch: %v", err)
	}

	notifier := &recordingNotifier{}
	monitor := NewComplianceMonitor(pool, ledger, fixedChecker{membership.NotMember}, notifier, monitorConfig())
	if err := monitor.RunCycle(ctx); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	staleWatch := getWatch(t, pool, staleUser, taskID)
	if staleWatch.Penalized || staleWatch.CheckedAt != nil {
		t.Errorf("expired watch was touched: penalized=%v checked_at=%v", staleWatch.Penalized, staleWatch.CheckedAt)
	}
	staleAccount, _ := ledger.Account(ctx, staleUser)
	if !staleAccount.Earned.Equal(dec("850")) {
		t.Errorf("stale earned = %s, want 850 (no penalty outside the window)", staleAccount.Earned)
	}
	if notifier.notified(staleUser) {
		t.Error("user outside the window was notified")
	}

	freshWatch := getWatch(t, pool, freshUser, taskID)
	if !freshWatch.Penalized {
		t.Error("in-window unsubscriber was not penalized")
	}
	freshAccount, _ := ledger.Account(ctx, freshUser)
	if !freshAccount.Earned.Equal(dec("-850")) {
		t.Errorf("fresh earned = %s, want -850 (850 reward - 1700 penalty)", freshAccount.Earned)
	}
	if !notifier.notified(freshUser) {
		t.Error("penalized user was not notified")
	}
}

func TestComplianceCycleTouchesCheckedAt(t *testing.T) {
	pool := testPool(t)
	ledger := NewLedgerService(pool)
	catalog := NewCatalogService(pool, ledger)
	completions := NewCompletionService(pool, ledger)
	ctx := context.Background()

	ownerID, executorID := nextID(), nextID()
	fundUser(t, ledger, ownerID, "10000", "0")

	taskID, err := catalog.Create(ctx, ownerID, "@testchan", "Test", domain.TaskChannel, dec("850"), 5)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := completions.Complete(ctx, executorID, taskID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	monitor := NewComplianceMonitor(pool, ledger, fixedChecker{membership.Member}, &recordingNotifier{}, monitorConfig())
	if err := monitor.RunCycle(ctx); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	w := getWatch(t, pool, executorID, taskID)
	if w.CheckedAt == nil {
		t.Error("checked_at not set for a compliant row")
	}
	if w.Penalized {
		t.Error("compliant row was penalized")
	}
	account, _ := ledger.Account(ctx, executorID)
	if !account.Earned.Equal(dec("850")) {
		t.Errorf("earned = %s, want 850 (member is never charged)", account.Earned)
	}
}

func TestConfirmStarsPaymentOnce(t *testing.T) {
	pool := testPool(t)
	ledger := NewLedgerService(pool)
	payments := NewPaymentService(pool, ledger)
	ctx := context.Background()

	t.Run("redelivered update credits once", func(t *testing.T) {
		userID := nextID()
		payload, coins, err := payments.CreateStarsInvoice(ctx, userID, 5)
		if err != nil {
			t.Fatalf("create invoice: %v", err)
		}
		if !coins.Equal(dec("10000")) {
			t.Fatalf("coins = %s, want 10000", coins)
		}

		for i := 0; i < 2; i++ {
			got, err := payments.ConfirmStarsPayment(ctx, userID, 5, payload)
			if err != nil {
				t.Fatalf("confirm #%d: %v", i+1, err)
			}
			if !got.Equal(coins) {
				t.Errorf("confirm #%d returned %s, want %s", i+1, got, coins)
			}
		}

		account, _ := ledger.Account(ctx, userID)
		if !account.Deposited.Equal(coins) {
			t.Errorf("deposited = %s, want %s (single credit)", account.Deposited, coins)
		}
		checkLedgerConsistency(t, pool, ledger, userID)
	})

	t.Run("missing invoice row still credits", func(t *testing.T) {
		userID := nextID()
		coins, err := payments.ConfirmStarsPayment(ctx, userID, 1, fmt.Sprintf("stars_%d_lost", userID))
		if err != nil {
			t.Fatalf("confirm: %v", err)
		}
		account, _ := ledger.Account(ctx, userID)
		if !account.Deposited.Equal(coins) {
			t.Errorf("deposited = %s, want %s", account.Deposited, coins)
		}
	})
}

func TestLedgerHistory(t *testing.T) {
	pool := testPool(t)
	ledger := NewLedgerService(pool)
	ctx := context.Background()
	userID := nextID()

	fundUser(t, ledger, userID, "500", "0")
	if err := ledger.Debit(ctx, userID, dec("200"), domain.KindTaskCreate, "тест", domain.PoolDeposited, false); err != nil {
		t.Fatalf("debit: %v", err)
	}

	entries, err := ledger.History(ctx, userID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if !entries[0].Amount.Equal(dec("-200")) || entries[0].Kind != domain.KindTaskCreate {
		t.Errorf("newest entry = %s %s, want -200 task_create", entries[0].Amount, entries[0].Kind)
	}
	if !entries[1].Amount.Equal(dec("500")) || entries[1].Kind != domain.KindDepositStars {
		t.Errorf("oldest entry = %s %s, want 500 deposit_stars", entries[1].Amount, entries[1].Kind)
	}
}

func TestReviewResolveOnce(t *testing.T) {
	pool := testPool(t)
	ledger := NewLedgerService(pool)
	catalog := NewCatalogService(pool, ledger)
	completions := NewCompletionService(pool, ledger)
	reviews := NewReviewService(pool, completions)
	ctx := context.Background()

	ownerID, executorID := nextID(), nextID()
	fundUser(t, ledger, ownerID, "10000", "0")

	taskID, err := catalog.Create(ctx, ownerID, "@testbot", "Test", domain.TaskBot, dec("800"), 5)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	reviewID, err := reviews.Create(ctx, executorID, taskID)
	if err != nil {
		t.Fatalf("create review: %v", err)
	}

	resolution, err := reviews.Resolve(ctx, reviewID, true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolution.Completion == nil {
		t.Fatal("approved resolution must carry a completion")
	}

	if _, err := reviews.Resolve(ctx, reviewID, true); !errors.Is(err, domain.ErrAlreadyProcessed) {
		t.Fatalf("second resolve err = %v, want ErrAlreadyProcessed", err)
	}
}
