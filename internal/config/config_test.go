package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vkazarin/mutualbot/internal/domain"
)

func TestMinTaskPrice(t *testing.T) {
	tests := []struct {
		taskType domain.TaskType
		want     int64
	}{
		{domain.TaskChannel, 850},
		{domain.TaskGroup, 850},
		{domain.TaskView, 100},
		{domain.TaskReaction, 150},
		{domain.TaskBot, 800},
		{"bogus", 850}, // unknown types fall back to the strictest minimum
	}

	for _, tt := range tests {
		got := MinTaskPrice(tt.taskType)
		if !got.Equal(decimal.NewFromInt(tt.want)) {
			t.Errorf("MinTaskPrice(%s) = %s, want %d", tt.taskType, got, tt.want)
		}
	}
}

func TestIsAdmin(t *testing.T) {
	cfg := &Config{AdminIDs: []int64{100, 200}}

	if !cfg.IsAdmin(100) {
		t.Error("IsAdmin(100) = false, want true")
	}
	if cfg.IsAdmin(300) {
		t.Error("IsAdmin(300) = true, want false")
	}

	empty := &Config{}
	if empty.IsAdmin(100) {
		t.Error("empty admin list should reject everyone")
	}
}

func TestRetentionWindow(t *testing.T) {
	cfg := &Config{RetentionDays: 5}
	if got := cfg.RetentionWindow(); got != 5*24*time.Hour {
		t.Errorf("RetentionWindow() = %s, want 120h", got)
	}
}
