package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Register registers all command and callback handlers.
func (h *Handler) Register() {
	// Commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/profile", bot.MatchTypePrefix, h.handleProfile)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/earn", bot.MatchTypePrefix, h.handleEarnCommand)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/newtask", bot.MatchTypePrefix, h.handleNewTask)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/mytasks", bot.MatchTypePrefix, h.handleMyTasksCommand)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/topup", bot.MatchTypePrefix, h.handleTopUpCommand)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/give", bot.MatchTypePrefix, h.handleGive)

	// Earn flow
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "back_to_earn", bot.MatchTypeExact, h.handleEarnMenu)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "elist_", bot.MatchTypePrefix, h.handleEarnList)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "check_", bot.MatchTypePrefix, h.handleCheckTask)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "restore_", bot.MatchTypePrefix, h.handleRestore)

	// Reviews
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "approve_", bot.MatchTypePrefix, h.handleApprove)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "reject_", bot.MatchTypePrefix, h.handleReject)

	// Owned tasks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "mytasks_", bot.MatchTypePrefix, h.handleMyTasksPage)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "toggle_", bot.MatchTypePrefix, h.handleToggleTask)

	// Payments
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "topup_stars", bot.MatchTypeExact, h.handleTopUpMenu)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "stars_", bot.MatchTypePrefix, h.handleStarsAmount)

	// Inert pagination counter
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "cur", bot.MatchTypeExact, h.handleNoop)
}

func (h *Handler) handleNoop(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery != nil {
		b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})
	}
}

func (h *Handler) answerAlert(ctx context.Context, b *bot.Bot, callbackID, text string) {
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       true,
	})
}

func callbackChatID(update *models.Update) int64 {
	if update.CallbackQuery == nil {
		return 0
	}
	if msg := update.CallbackQuery.Message.Message; msg != nil {
		return msg.Chat.ID
	}
	return 0
}
