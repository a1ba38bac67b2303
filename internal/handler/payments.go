package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/vkazarin/mutualbot/internal/config"
	"github.com/vkazarin/mutualbot/internal/service"
	tg "github.com/vkazarin/mutualbot/internal/telegram"
)

// handleTopUpMenu shows the preset Stars amounts.
func (h *Handler) handleTopUpMenu(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})

	var rows [][]models.InlineKeyboardButton
	for _, stars := range config.StarAmounts {
		coins := service.CoinsForStars(stars)
		rows = append(rows, tg.ButtonRow(tg.InlineButton(
			fmt.Sprintf("⭐ %d → %s %s", stars, coins.StringFixed(0), config.CurrencyName),
			fmt.Sprintf("stars_%d", stars),
		)))
	}

	text := "⭐ <b>Пополнение через Telegram Stars</b>\n\n" +
		fmt.Sprintf("Курс: 1⭐ = %d %s\n", config.StarsToCoinsRate, config.CurrencyName) +
		"Произвольная сумма: <code>/topup количество</code>"

	var messageID int
	if msg := update.CallbackQuery.Message.Message; msg != nil {
		messageID = msg.ID
	}
	if messageID != 0 {
		b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID: callbackChatID(update), MessageID: messageID, Text: text,
			ParseMode: models.ParseModeHTML, ReplyMarkup: tg.InlineKeyboard(rows...),
		})
		return
	}
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: callbackChatID(update), Text: text,
		ParseMode: models.ParseModeHTML, ReplyMarkup: tg.InlineKeyboard(rows...),
	})
}

// handleTopUpCommand handles /topup <stars> for a custom amount.
func (h *Handler) handleTopUpCommand(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID

	args := strings.Fields(update.Message.Text)[1:]
	if len(args) != 1 {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text: fmt.Sprintf("⭐ Укажите количество Stars: <code>/topup 10</code>\nКурс: 1⭐ = %d %s",
				config.StarsToCoinsRate, config.CurrencyName),
			ParseMode: models.ParseModeHTML,
		})
		return
	}
	stars, err := strconv.Atoi(args[0])
	if err != nil || stars < config.MinStarsTopUp || stars > config.MaxStarsTopUp {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   fmt.Sprintf("❌ Введите число от %d до %d", config.MinStarsTopUp, config.MaxStarsTopUp),
		})
		return
	}
	h.sendStarsInvoice(ctx, b, chatID, update.Message.From.ID, stars)
}

// handleStarsAmount handles a preset button: stars_<n>.
func (h *Handler) handleStarsAmount(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})

	stars, err := strconv.Atoi(strings.TrimPrefix(update.CallbackQuery.Data, "stars_"))
	if err != nil || stars < config.MinStarsTopUp || stars > config.MaxStarsTopUp {
		return
	}
	h.sendStarsInvoice(ctx, b, callbackChatID(update), update.CallbackQuery.From.ID, stars)
}

func (h *Handler) sendStarsInvoice(ctx context.Context, b *bot.Bot, chatID, userID int64, stars int) {
	payload, coins, err := h.payments.CreateStarsInvoice(ctx, userID, stars)
	if err != nil {
		slog.Error("create invoice", "user_id", userID, "error", err)
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ Не удалось создать счёт, попробуйте позже"})
		return
	}

	// Stars invoices use the XTR currency and no provider token.
	_, err = b.SendInvoice(ctx, &bot.SendInvoiceParams{
		ChatID:      chatID,
		Title:       fmt.Sprintf("Пополнение на %s %s", coins.StringFixed(0), config.CurrencyName),
		Description: fmt.Sprintf("Покупка %s %s за %d Telegram Stars", coins.StringFixed(0), config.CurrencyName, stars),
		Payload:     payload,
		Currency:    "XTR",
		Prices: []models.LabeledPrice{
			{Label: fmt.Sprintf("%s %s", coins.StringFixed(0), config.CurrencyName), Amount: stars},
		},
	})
	if err != nil {
		slog.Error("send invoice", "user_id", userID, "error", err)
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ Не удалось отправить счёт"})
	}
}

// HandlePreCheckout approves every pre-checkout query: the invoice was built
// by us and the credit happens on the successful-payment update.
func (h *Handler) HandlePreCheckout(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.PreCheckoutQuery == nil {
		return
	}
	_, err := b.AnswerPreCheckoutQuery(ctx, &bot.AnswerPreCheckoutQueryParams{
		PreCheckoutQueryID: update.PreCheckoutQuery.ID,
		OK:                 true,
	})
	if err != nil {
		slog.Error("answer pre-checkout", "user_id", update.PreCheckoutQuery.From.ID, "error", err)
	}
}

// HandleSuccessfulPayment credits the balance once Telegram confirms the
// Stars payment.
func (h *Handler) HandleSuccessfulPayment(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.SuccessfulPayment == nil {
		return
	}
	payment := update.Message.SuccessfulPayment
	userID := update.Message.From.ID

	coins, err := h.payments.ConfirmStarsPayment(ctx, userID, payment.TotalAmount, payment.InvoicePayload)
	if err != nil {
		slog.Error("confirm payment", "user_id", userID, "payload", payment.InvoicePayload, "error", err)
		h.opsLog.LogError(err, fmt.Sprintf("подтверждение оплаты пользователя %d", userID))
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: update.Message.Chat.ID,
			Text:   "❌ Ошибка зачисления. Обратитесь в поддержку, платёж зафиксирован.",
		})
		return
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text: fmt.Sprintf("✅ Баланс пополнен на <b>%s %s</b>! Спасибо за покупку ⭐",
			coins.StringFixed(0), config.CurrencyName),
		ParseMode: models.ParseModeHTML,
	})
	h.opsLog.LogTopUp(userID, payment.TotalAmount, coins)
}
