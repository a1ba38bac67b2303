package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/shopspring/decimal"

	"github.com/vkazarin/mutualbot/internal/config"
)

const MaxMessageLen = 4096

// OpsLogger mirrors notable business events into an operations chat,
// best-effort.
type OpsLogger struct {
	bot *bot.Bot
	cfg *config.Config
}

func NewOpsLogger(b *bot.Bot, cfg *config.Config) *OpsLogger {
	return &OpsLogger{bot: b, cfg: cfg}
}

type LogType string

const (
	LogTypeError   LogType = "error"
	LogTypeTopUp   LogType = "topUp"
	LogTypeTasks   LogType = "tasks"
	LogTypePenalty LogType = "penalty"
)

func (l *OpsLogger) Log(logType LogType, message string) {
	if l == nil || l.cfg.LogTelegramChatID == 0 {
		return
	}

	topicID := l.getTopicID(logType)
	if topicID == 0 {
		return
	}

	if len([]rune(message)) > MaxMessageLen {
		message = string([]rune(message)[:MaxMessageLen-20]) + "\n\n... (truncated)"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := l.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          l.cfg.LogTelegramChatID,
		Text:            message,
		ParseMode:       "Markdown",
		MessageThreadID: topicID,
	})
	if err != nil {
		slog.Error("failed to send ops log", "type", logType, "error", err)
	}
}

func (l *OpsLogger) LogError(err error, context string) {
	msg := fmt.Sprintf("❌ *Error*\n\n*Context:* %s\n*Error:* `%s`\n*Time:* %s",
		context, err.Error(), time.Now().Format("2006-01-02 15:04:05"))
	l.Log(LogTypeError, msg)
}

func (l *OpsLogger) LogTopUp(userID int64, stars int, coins decimal.Decimal) {
	msg := fmt.Sprintf("💰 *Balance Top-Up*\n\n*User:* `%d`\n*Stars:* %d\n*Credited:* %s %s",
		userID, stars, coins.StringFixed(0), config.CurrencyName)
	l.Log(LogTypeTopUp, msg)
}

func (l *OpsLogger) LogTaskCreated(ownerID, taskID int64, title string, cost decimal.Decimal) {
	msg := fmt.Sprintf("📢 *Task Created*\n\n*Owner:* `%d`\n*Task:* #%d %s\n*Cost:* %s %s",
		ownerID, taskID, title, cost.StringFixed(0), config.CurrencyName)
	l.Log(LogTypeTasks, msg)
}

func (l *OpsLogger) LogPenalty(userID, taskID int64, amount decimal.Decimal) {
	msg := fmt.Sprintf("🚨 *Penalty Applied*\n\n*User:* `%d`\n*Task:* #%d\n*Amount:* -%s %s",
		userID, taskID, amount.StringFixed(0), config.CurrencyName)
	l.Log(LogTypePenalty, msg)
}

func (l *OpsLogger) getTopicID(logType LogType) int {
	switch logType {
	case LogTypeError:
		return l.cfg.LogTopicError
	case LogTypeTopUp:
		return l.cfg.LogTopicTopUp
	case LogTypeTasks:
		return l.cfg.LogTopicTasks
	case LogTypePenalty:
		return l.cfg.LogTopicPenalty
	}
	return 0
}
