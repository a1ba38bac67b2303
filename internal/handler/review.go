package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/vkazarin/mutualbot/internal/config"
	"github.com/vkazarin/mutualbot/internal/domain"
	tg "github.com/vkazarin/mutualbot/internal/telegram"
)

// HandlePhoto routes a proof screenshot from a user who previously pressed a
// check button on a review-type task. Called from the default update handler.
func (h *Handler) HandlePhoto(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil || len(update.Message.Photo) == 0 {
		return
	}
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	taskID, ok := h.takeProof(userID)
	if !ok {
		return
	}

	task, err := h.catalog.Get(ctx, taskID)
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ Задание не найдено."})
		return
	}

	reviewID, err := h.reviews.Create(ctx, userID, taskID)
	if err != nil {
		slog.Error("create review", "task_id", taskID, "user_id", userID, "error", err)
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ Ошибка сервера. Попробуйте позже."})
		return
	}

	photo := update.Message.Photo[len(update.Message.Photo)-1]
	caption := fmt.Sprintf(
		"🛡️ <b>Проверьте выполнение вашего задания!</b>\n"+
			"Тип: <b>%s</b>\n"+
			"Task ID: #%d\n"+
			"Исполнитель: %s (ID: %d)\n\n"+
			"Проверьте скриншот. Если все верно — подтвердите оплату.",
		strings.ToUpper(string(task.Type)), taskID, update.Message.From.FirstName, userID)

	_, err = b.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:    task.OwnerID,
		Photo:     &models.InputFileString{Data: photo.FileID},
		Caption:   caption,
		ParseMode: models.ParseModeHTML,
		ReplyMarkup: tg.InlineKeyboard(tg.ButtonRow(
			tg.InlineButton("✅ Подтвердить", fmt.Sprintf("approve_%d", reviewID)),
			tg.InlineButton("❌ Отклонить", fmt.Sprintf("reject_%d", reviewID)),
		)),
	})
	if err != nil {
		slog.Error("send proof to owner", "owner_id", task.OwnerID, "error", err)
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "❌ Не удалось отправить отчет заказчику (возможно, он заблокировал бота).",
		})
		return
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      "✅ <b>Скриншот отправлен заказчику!</b>\nОжидайте его подтверждения.",
		ParseMode: models.ParseModeHTML,
	})
}

func (h *Handler) handleApprove(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.resolveReview(ctx, b, update, true)
}

func (h *Handler) handleReject(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.resolveReview(ctx, b, update, false)
}

func (h *Handler) resolveReview(ctx context.Context, b *bot.Bot, update *models.Update, approve bool) {
	if update.CallbackQuery == nil {
		return
	}

	prefix := "reject_"
	if approve {
		prefix = "approve_"
	}
	reviewID, err := strconv.ParseInt(strings.TrimPrefix(update.CallbackQuery.Data, prefix), 10, 64)
	if err != nil {
		return
	}

	res, err := h.reviews.Resolve(ctx, reviewID, approve)
	switch {
	case errors.Is(err, domain.ErrAlreadyProcessed):
		h.answerAlert(ctx, b, update.CallbackQuery.ID, "❌ Заявка не найдена (возможно, уже обработана)")
		return
	case errors.Is(err, domain.ErrAlreadyCompleted):
		h.answerAlert(ctx, b, update.CallbackQuery.ID, "❌ Не удалось завершить задачу: уже выполнена")
		return
	case errors.Is(err, domain.ErrTaskUnavailable):
		h.answerAlert(ctx, b, update.CallbackQuery.ID, "❌ Не удалось завершить задачу: лимит исчерпан")
		return
	case err != nil:
		slog.Error("resolve review", "review_id", reviewID, "error", err)
		h.answerAlert(ctx, b, update.CallbackQuery.ID, "❌ Ошибка обработки")
		return
	}

	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})

	verdict := "❌ <b>ОТКЛОНЕНО</b> заказчиком."
	if approve {
		verdict = "✅ <b>ОДОБРЕНО</b> заказчиком."
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: res.UserID,
			Text: fmt.Sprintf("✅ <b>Ваш скриншот принят!</b>\nЗадание #%d выполнено.\n✅ Получено %s %s",
				res.TaskID, res.Completion.Reward.StringFixed(0), config.CurrencyName),
			ParseMode: models.ParseModeHTML,
		})
	} else {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    res.UserID,
			Text:      "❌ <b>Ваш скриншот отклонен!</b>\nЗадание не засчитано.",
			ParseMode: models.ParseModeHTML,
		})
	}

	if msg := update.CallbackQuery.Message.Message; msg != nil {
		b.EditMessageCaption(ctx, &bot.EditMessageCaptionParams{
			ChatID:    msg.Chat.ID,
			MessageID: msg.ID,
			Caption:   msg.Caption + "\n\n" + verdict,
			ParseMode: models.ParseModeHTML,
		})
	}
}
