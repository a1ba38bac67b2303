package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	mutualbot "github.com/vkazarin/mutualbot"
	"github.com/vkazarin/mutualbot/internal/config"
	"github.com/vkazarin/mutualbot/internal/handler"
	"github.com/vkazarin/mutualbot/internal/membership"
	"github.com/vkazarin/mutualbot/internal/middleware"
	"github.com/vkazarin/mutualbot/internal/repository"
	"github.com/vkazarin/mutualbot/internal/service"
	"github.com/vkazarin/mutualbot/internal/telegram"
)

// penaltyNotifier tells the penalized user and mirrors the event into the
// ops log channel.
type penaltyNotifier struct {
	gate *membership.TelegramGate
	ops  *telegram.OpsLogger
}

func (n penaltyNotifier) NotifyPenalty(ctx context.Context, notice membership.PenaltyNotice) {
	n.gate.NotifyPenalty(ctx, notice)
	n.ops.LogPenalty(notice.UserID, notice.TaskID, notice.Penalty)
}

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Run migrations
	migrationsFS, err := fs.Sub(mutualbot.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize services
	ledgerService := service.NewLedgerService(pool)
	catalogService := service.NewCatalogService(pool, ledgerService)
	completionService := service.NewCompletionService(pool, ledgerService)
	reviewService := service.NewReviewService(pool, completionService)
	paymentService := service.NewPaymentService(pool, ledgerService)
	statsService := service.NewStatsService(pool)
	linkMetaService := service.NewLinkMetaService()

	// Handler pointer for use in default handler closure
	var h *handler.Handler

	// Create bot
	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(),
			middleware.Logging(),
			middleware.AccountLoader(ledgerService),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h == nil {
				return
			}
			// Pre-checkout query handling
			if update.PreCheckoutQuery != nil {
				h.HandlePreCheckout(ctx, b, update)
				return
			}
			if update.Message != nil {
				if update.Message.SuccessfulPayment != nil {
					h.HandleSuccessfulPayment(ctx, b, update)
					return
				}
				if len(update.Message.Photo) > 0 {
					h.HandlePhoto(ctx, b, update)
					return
				}
			}
		}),
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	if cfg.DropPendingUpdates {
		// Flush the update backlog accumulated while the bot was down.
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			slog.Warn("failed to drop pending updates", "error", err)
		}
	}

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}

	slog.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	// Membership gate, ops log channel and the subscription monitor
	gate := membership.NewTelegramGate(b, cfg.MembershipTimeout)
	opsLog := telegram.NewOpsLogger(b, cfg)
	notifier := penaltyNotifier{gate: gate, ops: opsLog}
	monitor := service.NewComplianceMonitor(pool, ledgerService, gate, notifier, cfg)

	// Initialize handler
	h = handler.New(handler.Deps{
		Bot:         b,
		Cfg:         cfg,
		Ledger:      ledgerService,
		Catalog:     catalogService,
		Completions: completionService,
		Reviews:     reviewService,
		Monitor:     monitor,
		Payments:    paymentService,
		Stats:       statsService,
		LinkMeta:    linkMetaService,
		Gate:        gate,
		OpsLog:      opsLog,
	})

	// Register all handlers
	h.Register()

	// Start subscription monitoring
	go monitor.Run(ctx)

	// Start bot
	slog.Info("starting bot", "username", me.Username, "id", me.ID)
	b.Start(ctx)

	// Graceful shutdown
	slog.Info("bot stopped gracefully")
}
