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
	"github.com/vkazarin/mutualbot/internal/membership"
	tg "github.com/vkazarin/mutualbot/internal/telegram"
)

var typeNames = map[domain.TaskType]string{
	domain.TaskChannel:  "каналы",
	domain.TaskGroup:    "группы",
	domain.TaskView:     "просмотры",
	domain.TaskReaction: "реакции",
	domain.TaskBot:      "боты",
}

var typeIcons = map[domain.TaskType]string{
	domain.TaskChannel:  "📢",
	domain.TaskGroup:    "👥",
	domain.TaskView:     "👁️",
	domain.TaskReaction: "❤️",
	domain.TaskBot:      "🤖",
}

func (h *Handler) handleEarnCommand(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendEarnMenu(ctx, b, update.Message.Chat.ID, update.Message.From.ID, 0)
}

func (h *Handler) handleEarnMenu(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})
	var messageID int
	if msg := update.CallbackQuery.Message.Message; msg != nil {
		messageID = msg.ID
	}
	h.sendEarnMenu(ctx, b, callbackChatID(update), update.CallbackQuery.From.ID, messageID)
}

func (h *Handler) sendEarnMenu(ctx context.Context, b *bot.Bot, chatID, userID int64, editMessageID int) {
	counts, err := h.catalog.Counts(ctx, userID)
	if err != nil {
		slog.Error("available counts", "error", err)
		return
	}

	text := fmt.Sprintf(
		"📢 Заданий на каналы: %d\n"+
			"👥 Заданий на группы: %d\n"+
			"🤖 Заданий на ботов: %d\n"+
			"👁️ Заданий на просмотры: %d\n"+
			"❤️ Заданий на реакции: %d\n\n"+
			"🔔 Оплата начисляется <b>СРАЗУ</b>.\n"+
			"⚠️ Для подписок работает мониторинг (штраф x%d за отписку).\n"+
			"📷 Для просмотров, реакций и ботов нужна проверка скриншотом.",
		counts.Channels, counts.Groups, counts.Bots, counts.Views, counts.Reactions,
		config.PenaltyMultiplier,
	)

	kb := tg.InlineKeyboard(
		tg.ButtonRow(
			tg.InlineButton("📢 Каналы", "elist_channel_1"),
			tg.InlineButton("👥 Группы", "elist_group_1"),
		),
		tg.ButtonRow(
			tg.InlineButton("👁️ Просмотры", "elist_view_1"),
			tg.InlineButton("❤️ Реакции", "elist_reaction_1"),
		),
		tg.ButtonRow(tg.InlineButton("🤖 Боты", "elist_bot_1")),
	)

	if editMessageID != 0 {
		b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:      chatID,
			MessageID:   editMessageID,
			Text:        text,
			ParseMode:   models.ParseModeHTML,
			ReplyMarkup: kb,
		})
		return
	}
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: kb,
	})
}

// handleEarnList renders one page of available tasks: elist_<type>_<page>.
func (h *Handler) handleEarnList(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})

	parts := strings.Split(strings.TrimPrefix(update.CallbackQuery.Data, "elist_"), "_")
	if len(parts) < 2 {
		return
	}
	taskType := domain.TaskType(parts[0])
	page, _ := strconv.Atoi(parts[1])
	if !taskType.Valid() || page < 1 {
		return
	}

	h.renderEarnList(ctx, b, update, taskType, page)
}

func (h *Handler) renderEarnList(ctx context.Context, b *bot.Bot, update *models.Update, taskType domain.TaskType, page int) {
	userID := update.CallbackQuery.From.ID
	chatID := callbackChatID(update)
	var messageID int
	if msg := update.CallbackQuery.Message.Message; msg != nil {
		messageID = msg.ID
	}

	tasks, total, err := h.catalog.ListAvailable(ctx, userID, taskType, page, config.TasksPerPage)
	if err != nil {
		slog.Error("list available", "type", taskType, "error", err)
		return
	}

	var text string
	var rows [][]models.InlineKeyboardButton

	if total == 0 {
		text = fmt.Sprintf("😔 <b>Заданий (%s) пока нет</b>\nПопробуйте зайти позже!", typeNames[taskType])
	} else {
		desc := "💰 Оплата сразу после проверки."
		if taskType.Revocable() {
			desc += fmt.Sprintf("\n🚫 Штраф x%d за отписку (%d дней).", config.PenaltyMultiplier, h.cfg.RetentionDays)
		} else {
			desc += "\n📷 Для проверки потребуется СКРИНШОТ."
		}
		text = fmt.Sprintf("📋 <b>Список заданий (%s)</b>\n\n%s\n👇 Нажмите кнопку ссылки, затем кнопку подтверждения:",
			typeNames[taskType], desc)

		for _, t := range tasks {
			title := t.Title
			if title == "" {
				title = t.Target
			}
			label := fmt.Sprintf("%s %s — %s %s", typeIcons[taskType], title, t.UnitPrice.StringFixed(0), config.CurrencyName)
			rows = append(rows,
				tg.ButtonRow(tg.URLButton(label, membership.Link(t.Target))),
				tg.ButtonRow(tg.InlineButton("✅ Проверить", fmt.Sprintf("check_%d_%d_%s", t.ID, page, taskType))),
			)
		}

		totalPages := tg.TotalPages(total, config.TasksPerPage)
		if totalPages > 1 {
			rows = append(rows, tg.PaginationRow(page, totalPages, "elist_"+string(taskType)))
		}
	}
	rows = append(rows, tg.ButtonRow(tg.InlineButton("🔙 Назад", "back_to_earn")))

	b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: tg.InlineKeyboard(rows...),
	})
}

// handleCheckTask processes check_<taskID>_<page>_<type>. Revocable types are
// verified against the membership collaborator and completed immediately;
// review types arm the screenshot flow.
func (h *Handler) handleCheckTask(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	userID := update.CallbackQuery.From.ID

	parts := strings.Split(strings.TrimPrefix(update.CallbackQuery.Data, "check_"), "_")
	if len(parts) < 3 {
		return
	}
	taskID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return
	}
	page, _ := strconv.Atoi(parts[1])
	if page < 1 {
		page = 1
	}
	taskType := domain.TaskType(parts[2])

	task, err := h.catalog.Get(ctx, taskID)
	if err != nil {
		h.answerAlert(ctx, b, update.CallbackQuery.ID, "❌ Задание не найдено")
		return
	}

	if task.Type.NeedsReview() {
		// Catch dead submissions before bothering the owner with a screenshot.
		if !task.Available() {
			h.answerAlert(ctx, b, update.CallbackQuery.ID, "❌ Задание неактивно или лимит исчерпан")
			return
		}
		done, err := h.completions.Completed(ctx, userID, taskID)
		if err != nil {
			slog.Error("check completion", "task_id", taskID, "user_id", userID, "error", err)
			h.answerAlert(ctx, b, update.CallbackQuery.ID, "❌ Ошибка обработки")
			return
		}
		if done {
			h.answerAlert(ctx, b, update.CallbackQuery.ID, "❌ Задание уже выполнено")
			return
		}

		h.armProof(userID, taskID)

		instruction := "Сделайте скриншот поста"
		switch task.Type {
		case domain.TaskReaction:
			instruction = "Поставьте реакцию и сделайте скриншот"
		case domain.TaskBot:
			instruction = "Запустите бота (Start) и сделайте скриншот"
		}

		b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: callbackChatID(update),
			Text: fmt.Sprintf(
				"👁️ <b>Проверка выполнения</b>\n\n"+
					"1. Перейдите по ссылке: %s\n"+
					"2. %s\n"+
					"3. <b>Отправьте скриншот сюда</b> следующим сообщением.",
				membership.Link(task.Target), instruction),
			ParseMode: models.ParseModeHTML,
		})
		return
	}

	switch h.gate.Check(ctx, task.Target, userID) {
	case membership.Unknown:
		h.answerAlert(ctx, b, update.CallbackQuery.ID, "❌ Бот не видит подписку (проверьте, админ ли бот)")
		return
	case membership.NotMember:
		h.answerAlert(ctx, b, update.CallbackQuery.ID, "❌ Вы не выполнили задание!")
		return
	}

	res, err := h.completions.Complete(ctx, userID, taskID)
	switch {
	case errors.Is(err, domain.ErrAlreadyCompleted):
		h.answerAlert(ctx, b, update.CallbackQuery.ID, "❌ Задание уже выполнено")
		return
	case errors.Is(err, domain.ErrTaskUnavailable):
		h.answerAlert(ctx, b, update.CallbackQuery.ID, "❌ Задание неактивно или лимит исчерпан")
		h.renderEarnList(ctx, b, update, taskType, page)
		return
	case err != nil:
		slog.Error("complete task", "task_id", taskID, "user_id", userID, "error", err)
		h.answerAlert(ctx, b, update.CallbackQuery.ID, "❌ Ошибка обработки")
		return
	}

	h.answerAlert(ctx, b, update.CallbackQuery.ID, fmt.Sprintf(
		"✅ Получено %s %s\n\n⚠️ Не отписывайтесь %d дней, иначе штраф x%d!",
		res.Reward.StringFixed(0), config.CurrencyName, h.cfg.RetentionDays, config.PenaltyMultiplier))
	h.renderEarnList(ctx, b, update, taskType, page)
}

// handleRestore processes restore_<taskID>: the user claims to have
// re-subscribed and asks the penalty back.
func (h *Handler) handleRestore(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	userID := update.CallbackQuery.From.ID

	taskID, err := strconv.ParseInt(strings.TrimPrefix(update.CallbackQuery.Data, "restore_"), 10, 64)
	if err != nil {
		return
	}

	task, err := h.catalog.Get(ctx, taskID)
	if err != nil {
		h.answerAlert(ctx, b, update.CallbackQuery.ID, "❌ Задание не найдено")
		return
	}

	if h.gate.Check(ctx, task.Target, userID) != membership.Member {
		h.answerAlert(ctx, b, update.CallbackQuery.ID, "❌ Вы все еще не подписаны на канал!")
		return
	}

	refund, err := h.monitor.RefundPenalty(ctx, userID, taskID)
	switch {
	case errors.Is(err, domain.ErrNotPenalized):
		h.answerAlert(ctx, b, update.CallbackQuery.ID, "❌ Штраф уже снят или не был наложен.")
		return
	case err != nil:
		slog.Error("refund penalty", "task_id", taskID, "user_id", userID, "error", err)
		h.answerAlert(ctx, b, update.CallbackQuery.ID, "❌ Ошибка базы данных")
		return
	}

	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})
	var messageID int
	if msg := update.CallbackQuery.Message.Message; msg != nil {
		messageID = msg.ID
	}
	b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    callbackChatID(update),
		MessageID: messageID,
		Text: fmt.Sprintf(
			"✅ <b>Штраф аннулирован!</b>\n\nВы подписались обратно на канал.\n💰 Возврат: +%s %s",
			refund.StringFixed(0), config.CurrencyName),
		ParseMode: models.ParseModeHTML,
	})
}
