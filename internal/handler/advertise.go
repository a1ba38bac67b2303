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
	"github.com/shopspring/decimal"

	"github.com/vkazarin/mutualbot/internal/config"
	"github.com/vkazarin/mutualbot/internal/domain"
	"github.com/vkazarin/mutualbot/internal/middleware"
	tg "github.com/vkazarin/mutualbot/internal/telegram"
)

const newTaskUsage = "➕ <b>Создание задания</b>\n\n" +
	"Формат:\n<code>/newtask тип ссылка цена количество</code>\n\n" +
	"Типы: channel, group, view, reaction, bot\n" +
	"Пример:\n<code>/newtask channel @durov 850 100</code>"

// handleNewTask creates a task from a single command message:
// /newtask <type> <link> <price> <capacity>.
func (h *Handler) handleNewTask(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID
	ownerID := update.Message.From.ID

	args := strings.Fields(update.Message.Text)[1:]
	if len(args) != 4 {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID, Text: newTaskUsage, ParseMode: models.ParseModeHTML,
		})
		return
	}

	taskType := domain.TaskType(args[0])
	link := args[1]
	price, err := decimal.NewFromString(args[2])
	if err != nil {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ Введите число в поле цены"})
		return
	}
	capacity, err := strconv.Atoi(args[3])
	if err != nil || capacity <= 0 {
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ Введите число в поле количества"})
		return
	}
	if !taskType.Valid() {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID, Text: newTaskUsage, ParseMode: models.ParseModeHTML,
		})
		return
	}

	// Display title from the public t.me preview; the link itself is the
	// fallback.
	title, err := h.linkMeta.ResolveTitle(ctx, link)
	if err != nil {
		slog.Debug("resolve title", "link", link, "error", err)
		title = link
	}

	taskID, err := h.catalog.Create(ctx, ownerID, link, title, taskType, price, capacity)
	cost := price.Mul(decimal.NewFromInt(int64(capacity)))
	switch {
	case errors.Is(err, domain.ErrPriceBelowMinimum):
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text: fmt.Sprintf("❌ Минимум %s %s за единицу для типа %s",
				config.MinTaskPrice(taskType).StringFixed(0), config.CurrencyName, taskType),
		})
		return
	case errors.Is(err, domain.ErrInsufficientFunds):
		account := middleware.GetAccount(ctx)
		have := decimal.Zero
		if account != nil {
			have = account.Total()
		}
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text: fmt.Sprintf("❌ Не хватает средств. Нужно: %s %s, у вас: %s %s",
				cost.StringFixed(0), config.CurrencyName, have.StringFixed(0), config.CurrencyName),
		})
		return
	case err != nil:
		slog.Error("create task", "owner_id", ownerID, "error", err)
		b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: "❌ Ошибка создания задания"})
		return
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text: fmt.Sprintf("✅ Задание #%d создано!\n%s <b>%s</b>\nСписано: %s %s",
			taskID, typeIcons[taskType], title, cost.StringFixed(0), config.CurrencyName),
		ParseMode: models.ParseModeHTML,
	})
	h.opsLog.LogTaskCreated(ownerID, taskID, title, cost)
}

func (h *Handler) handleMyTasksCommand(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	h.renderMyTasks(ctx, b, update.Message.Chat.ID, update.Message.From.ID, 1, 0)
}

// handleMyTasksPage processes mytasks_<page>.
func (h *Handler) handleMyTasksPage(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})

	page, err := strconv.Atoi(strings.TrimPrefix(update.CallbackQuery.Data, "mytasks_"))
	if err != nil || page < 1 {
		return
	}
	var messageID int
	if msg := update.CallbackQuery.Message.Message; msg != nil {
		messageID = msg.ID
	}
	h.renderMyTasks(ctx, b, callbackChatID(update), update.CallbackQuery.From.ID, page, messageID)
}

func (h *Handler) renderMyTasks(ctx context.Context, b *bot.Bot, chatID, userID int64, page, editMessageID int) {
	tasks, total, err := h.catalog.ListOwned(ctx, userID, page, config.TasksPerPage)
	if err != nil {
		slog.Error("list owned", "user_id", userID, "error", err)
		return
	}

	var text string
	var rows [][]models.InlineKeyboardButton

	if total == 0 {
		text = "📭 У вас нет заданий. Создайте первое: /newtask"
	} else {
		text = "📂 <b>Ваши задания:</b>\n🟢 Активно | 🔴 Остановлено"
		for _, t := range tasks {
			status := "🔴"
			if t.Active {
				status = "🟢"
			}
			title := t.Title
			if title == "" {
				title = t.Target
			}
			label := fmt.Sprintf("%s #%d %s (%d/%d)", status, t.ID, title, t.Done, t.Needed)
			rows = append(rows, tg.ButtonRow(
				tg.InlineButton(label, fmt.Sprintf("toggle_%d_%d", t.ID, page)),
			))
		}
		totalPages := tg.TotalPages(total, config.TasksPerPage)
		if totalPages > 1 {
			rows = append(rows, tg.PaginationRow(page, totalPages, "mytasks"))
		}
	}

	kb := tg.InlineKeyboard(rows...)
	if editMessageID != 0 {
		b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID: chatID, MessageID: editMessageID, Text: text,
			ParseMode: models.ParseModeHTML, ReplyMarkup: kb,
		})
		return
	}
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID, Text: text, ParseMode: models.ParseModeHTML, ReplyMarkup: kb,
	})
}

// handleToggleTask flips a task's active flag: toggle_<taskID>_<page>.
func (h *Handler) handleToggleTask(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	userID := update.CallbackQuery.From.ID

	parts := strings.Split(strings.TrimPrefix(update.CallbackQuery.Data, "toggle_"), "_")
	if len(parts) < 2 {
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

	task, err := h.catalog.Get(ctx, taskID)
	if err != nil {
		h.answerAlert(ctx, b, update.CallbackQuery.ID, "❌ Задание не найдено")
		return
	}

	if err := h.catalog.SetActive(ctx, taskID, userID, !task.Active); err != nil {
		h.answerAlert(ctx, b, update.CallbackQuery.ID, "❌ Это не ваше задание")
		return
	}

	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})
	var messageID int
	if msg := update.CallbackQuery.Message.Message; msg != nil {
		messageID = msg.ID
	}
	h.renderMyTasks(ctx, b, callbackChatID(update), userID, page, messageID)
}
