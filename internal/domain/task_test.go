package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTaskTypeValid(t *testing.T) {
	for _, taskType := range []TaskType{TaskChannel, TaskGroup, TaskView, TaskReaction, TaskBot} {
		if !taskType.Valid() {
			t.Errorf("%s should be valid", taskType)
		}
	}
	for _, taskType := range []TaskType{"", "chanel", "subscription", "CHANNEL"} {
		if taskType.Valid() {
			t.Errorf("%q should not be valid", taskType)
		}
	}
}

func TestTaskTypeRevocable(t *testing.T) {
	tests := []struct {
		taskType    TaskType
		revocable   bool
		needsReview bool
	}{
		{TaskChannel, true, false},
		{TaskGroup, true, false},
		{TaskView, false, true},
		{TaskReaction, false, true},
		{TaskBot, false, true},
	}

	for _, tt := range tests {
		if got := tt.taskType.Revocable(); got != tt.revocable {
			t.Errorf("%s.Revocable() = %v, want %v", tt.taskType, got, tt.revocable)
		}
		if got := tt.taskType.NeedsReview(); got != tt.needsReview {
			t.Errorf("%s.NeedsReview() = %v, want %v", tt.taskType, got, tt.needsReview)
		}
	}
}

func TestTaskAvailable(t *testing.T) {
	tests := []struct {
		name   string
		active bool
		done   int
		needed int
		want   bool
	}{
		{"active with free slots", true, 3, 10, true},
		{"inactive", false, 3, 10, false},
		{"full", true, 10, 10, false},
		{"overfull", true, 11, 10, false},
		{"last slot open", true, 9, 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{Active: tt.active, Done: tt.done, Needed: tt.needed}
			if got := task.Available(); got != tt.want {
				t.Errorf("Available() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccountTotal(t *testing.T) {
	a := &Account{
		Deposited: decimal.RequireFromString("500"),
		Earned:    decimal.RequireFromString("120.5"),
	}
	if !a.Total().Equal(decimal.RequireFromString("620.5")) {
		t.Errorf("Total() = %s, want 620.5", a.Total())
	}
}
