package handler

import (
	"sync"

	"github.com/go-telegram/bot"

	"github.com/vkazarin/mutualbot/internal/config"
	"github.com/vkazarin/mutualbot/internal/membership"
	"github.com/vkazarin/mutualbot/internal/service"
	"github.com/vkazarin/mutualbot/internal/telegram"
)

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot         *bot.Bot
	cfg         *config.Config
	ledger      *service.LedgerService
	catalog     *service.CatalogService
	completions *service.CompletionService
	reviews     *service.ReviewService
	monitor     *service.ComplianceMonitor
	payments    *service.PaymentService
	stats       *service.StatsService
	linkMeta    *service.LinkMetaService
	gate        membership.Checker
	opsLog      *telegram.OpsLogger

	// users currently expected to send a proof screenshot, user → task
	mu            sync.Mutex
	pendingProofs map[int64]int64
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot         *bot.Bot
	Cfg         *config.Config
	Ledger      *service.LedgerService
	Catalog     *service.CatalogService
	Completions *service.CompletionService
	Reviews     *service.ReviewService
	Monitor     *service.ComplianceMonitor
	Payments    *service.PaymentService
	Stats       *service.StatsService
	LinkMeta    *service.LinkMetaService
	Gate        membership.Checker
	OpsLog      *telegram.OpsLogger
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:           deps.Bot,
		cfg:           deps.Cfg,
		ledger:        deps.Ledger,
		catalog:       deps.Catalog,
		completions:   deps.Completions,
		reviews:       deps.Reviews,
		monitor:       deps.Monitor,
		payments:      deps.Payments,
		stats:         deps.Stats,
		linkMeta:      deps.LinkMeta,
		gate:          deps.Gate,
		opsLog:        deps.OpsLog,
		pendingProofs: make(map[int64]int64),
	}
}

func (h *Handler) armProof(userID, taskID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pendingProofs[userID] = taskID
}

func (h *Handler) takeProof(userID int64) (int64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	taskID, ok := h.pendingProofs[userID]
	if ok {
		delete(h.pendingProofs, userID)
	}
	return taskID, ok
}
