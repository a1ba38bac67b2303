package handler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/vkazarin/mutualbot/internal/config"
	"github.com/vkazarin/mutualbot/internal/middleware"
	tg "github.com/vkazarin/mutualbot/internal/telegram"
)

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Chat.Type != "private" {
		return
	}
	chatID := update.Message.Chat.ID

	users, tasksToday, err := h.stats.Global(ctx)
	if err != nil {
		slog.Error("global stats", "error", err)
	}

	text := fmt.Sprintf(
		"👋 <b>Добро пожаловать в Mutual!</b>\n\n"+
			"📊 <b>Статистика бота:</b>\n"+
			"👥 Активных пользователей: <b>%d</b>\n"+
			"✅ Выполнено заданий сегодня: <b>%d</b>\n\n"+
			"Биржа подписчиков, просмотров и реакций за валюту <b>%s</b>.\n\n"+
			"💰 Зарабатывайте %s выполняя задания — /earn\n"+
			"📢 Продвигайте свои каналы за %s — /newtask\n"+
			"👤 Кабинет и пополнение — /profile",
		users, tasksToday, config.CurrencyName, config.CurrencyName, config.CurrencyName,
	)

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
}

func (h *Handler) handleProfile(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	account := middleware.GetAccount(ctx)
	if account == nil {
		return
	}

	text := fmt.Sprintf(
		"👤 <b>Ваш кабинет</b>\n\n"+
			"🆔 ID: <code>%d</code>\n"+
			"💳 Пополнено: <b>%s %s</b>\n"+
			"⚒️ Заработано: <b>%s %s</b>\n"+
			"💰 Всего: <b>%s %s</b>\n\n"+
			"Пополнить баланс можно через Telegram Stars.",
		account.UserID,
		account.Deposited.StringFixed(0), config.CurrencyName,
		account.Earned.StringFixed(0), config.CurrencyName,
		account.Total().StringFixed(0), config.CurrencyName,
	)

	entries, err := h.ledger.History(ctx, account.UserID, 5)
	if err != nil {
		slog.Error("ledger history", "user_id", account.UserID, "error", err)
	}
	if len(entries) > 0 {
		text += "\n\n📜 <b>Последние операции:</b>"
		for _, e := range entries {
			sign := ""
			if e.Amount.IsPositive() {
				sign = "+"
			}
			text += fmt.Sprintf("\n%s%s %s — %s", sign, e.Amount.StringFixed(0), config.CurrencyName, e.Memo)
		}
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    update.Message.Chat.ID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
		ReplyMarkup: tg.InlineKeyboard(
			tg.ButtonRow(tg.InlineButton("⭐ Пополнить Stars", "topup_stars")),
		),
	})
}
