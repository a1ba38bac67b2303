package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"

	"github.com/vkazarin/mutualbot/internal/config"
	"github.com/vkazarin/mutualbot/internal/domain"
)

// handleGive credits a user's deposited balance: /give <userID> <amount>.
// Admin-only.
func (h *Handler) handleGive(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID
	if !h.cfg.IsAdmin(update.Message.From.ID) {
		return
	}

	args := strings.Fields(update.Message.Text)[1:]
	if len(args) != 2 {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID, Text: "Формат: /give ID сумма",
		})
		return
	}
	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ Неверный ID пользователя"})
		return
	}
	amount, err := decimal.NewFromString(args[1])
	if err != nil || !amount.IsPositive() {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ Неверная сумма"})
		return
	}

	err = h.ledger.Credit(ctx, targetID, amount, domain.KindAdminBonus, "🎁 Бонус админа", domain.PoolDeposited)
	if err != nil {
		slog.Error("admin give", "target_id", targetID, "error", err)
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ Ошибка начисления"})
		return
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   fmt.Sprintf("✅ Начислено %s %s пользователю %d", amount.StringFixed(0), config.CurrencyName, targetID),
	})

	// Best effort: the recipient may have never started the bot.
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: targetID,
		Text: fmt.Sprintf("🎁 Вам начислен бонус: <b>%s %s</b>!",
			amount.StringFixed(0), config.CurrencyName),
		ParseMode: models.ParseModeHTML,
	})
}
