package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	BotToken    string `env:"BOT_TOKEN,required"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Admin
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	// Compliance monitor
	MonitorInterval   time.Duration `env:"MONITOR_INTERVAL" envDefault:"25s"`
	MonitorBackoff    time.Duration `env:"MONITOR_BACKOFF" envDefault:"60s"`
	RetentionDays     int           `env:"RETENTION_DAYS" envDefault:"5"`
	MembershipTimeout time.Duration `env:"MEMBERSHIP_TIMEOUT" envDefault:"8s"`

	// Bot behavior
	DropPendingUpdates bool `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`

	// Telegram logging
	LogTelegramChatID int64 `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError     int   `env:"LOG_TOPIC_ERROR"`
	LogTopicTopUp     int   `env:"LOG_TOPIC_BALANCE_TOPUP"`
	LogTopicTasks     int   `env:"LOG_TOPIC_TASKS"`
	LogTopicPenalty   int   `env:"LOG_TOPIC_PENALTY"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

// RetentionWindow is the span after a revocable completion during which an
// unsubscribe is penalized.
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
