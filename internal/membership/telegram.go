package membership

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/vkazarin/mutualbot/internal/config"
)

// TelegramGate implements Checker and Notifier on top of the Bot API.
type TelegramGate struct {
	bot     *bot.Bot
	timeout time.Duration
}

func NewTelegramGate(b *bot.Bot, timeout time.Duration) *TelegramGate {
	return &TelegramGate{bot: b, timeout: timeout}
}

func (g *TelegramGate) Check(ctx context.Context, target string, userID int64) Status {
	username := NormalizeTarget(target)
	if username == "" {
		return Unknown
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	member, err := g.bot.GetChatMember(ctx, &bot.GetChatMemberParams{
		ChatID: username,
		UserID: userID,
	})
	if err != nil || member == nil {
		return Unknown
	}

	switch member.Type {
	case models.ChatMemberTypeOwner,
		models.ChatMemberTypeAdministrator,
		models.ChatMemberTypeMember,
		models.ChatMemberTypeRestricted:
		return Member
	case models.ChatMemberTypeLeft,
		models.ChatMemberTypeBanned:
		return NotMember
	}
	return Unknown
}

func (g *TelegramGate) NotifyPenalty(ctx context.Context, n PenaltyNotice) {
	title := n.Title
	if title == "" {
		title = "Channel"
	}

	text := fmt.Sprintf(
		"🚨 <b>ОБНАРУЖЕНА ОТПИСКА!</b>\n\n"+
			"Канал: %s\n"+
			"❌ <b>Штраф: -%s %s</b>\n\n"+
			"👇 Если это ошибка или вы подписались обратно, нажмите кнопку ниже:",
		title, n.Penalty.StringFixed(0), config.CurrencyName,
	)

	kb := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "🔗 Подписаться обратно", URL: Link(n.Link)}},
			{{Text: "🔄 Я подписался (Вернуть деньги)", CallbackData: fmt.Sprintf("restore_%d", n.TaskID)}},
		},
	}

	_, err := g.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      n.UserID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: kb,
	})
	if err != nil {
		slog.Warn("penalty notification failed", "user_id", n.UserID, "task_id", n.TaskID, "error", err)
	}
}

// NormalizeTarget converts a task target ("https://t.me/name", "@name",
// "t.me/name/123") into an "@name" chat identifier usable with the Bot API.
// Invite links cannot be checked and map to "".
func NormalizeTarget(target string) string {
	s := strings.TrimSpace(target)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "t.me/")
	s = strings.TrimPrefix(s, "@")
	s = strings.Trim(s, "/")
	if s == "" {
		return ""
	}
	// Post links keep only the chat segment
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}
	// Private invite links have no public username
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "joinchat") || strings.HasPrefix(s, "-") {
		return ""
	}
	return "@" + s
}

// Link renders a target as a clickable URL.
func Link(target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	return "https://t.me/" + strings.TrimPrefix(target, "@")
}
