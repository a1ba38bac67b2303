package middleware

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/vkazarin/mutualbot/internal/domain"
	"github.com/vkazarin/mutualbot/internal/service"
)

type ctxKey string

const accountKey ctxKey = "account"

// GetAccount extracts the sender's account from context.
func GetAccount(ctx context.Context) *domain.Account {
	a, ok := ctx.Value(accountKey).(*domain.Account)
	if !ok {
		return nil
	}
	return a
}

// AccountLoader returns middleware that lazily creates the sender's account
// and puts it into context. Accounts are keyed by Telegram user ID.
func AccountLoader(ledger *service.LedgerService) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			var from *models.User

			if update.Message != nil {
				from = update.Message.From
			} else if update.CallbackQuery != nil {
				from = &update.CallbackQuery.From
			} else if update.PreCheckoutQuery != nil {
				from = update.PreCheckoutQuery.From
			}

			if from == nil {
				next(ctx, b, update)
				return
			}

			account, err := ledger.Account(ctx, from.ID)
			if err != nil {
				slog.Error("load account", "user_id", from.ID, "error", err)
			} else {
				ctx = context.WithValue(ctx, accountKey, account)
			}

			next(ctx, b, update)
		}
	}
}
