package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TaskType string

const (
	TaskChannel  TaskType = "channel"
	TaskGroup    TaskType = "group"
	TaskView     TaskType = "view"
	TaskReaction TaskType = "reaction"
	TaskBot      TaskType = "bot"
)

func (t TaskType) Valid() bool {
	switch t {
	case TaskChannel, TaskGroup, TaskView, TaskReaction, TaskBot:
		return true
	}
	return false
}

// Revocable reports whether a completion of this type can later be undone by
// the user (leaving the channel/group) and is therefore subject to the
// compliance monitor.
func (t TaskType) Revocable() bool {
	return t == TaskChannel || t == TaskGroup
}

// NeedsReview reports whether completion requires visual proof approved by
// the task owner instead of an automated membership check.
func (t TaskType) NeedsReview() bool {
	return !t.Revocable()
}

type Task struct {
	ID        int64
	OwnerID   int64
	Target    string
	Title     string
	Type      TaskType
	UnitPrice decimal.Decimal
	Needed    int
	Done      int
	Active    bool
	CreatedAt time.Time
}

func (t *Task) Available() bool {
	return t.Active && t.Done < t.Needed
}

type SubscriptionWatch struct {
	UserID       int64
	TaskID       int64
	SubscribedAt time.Time
	CheckedAt    *time.Time
	Rewarded     bool
	Penalized    bool
}

type ReviewStatus string

const ReviewPending ReviewStatus = "pending"

type PendingReview struct {
	ID        int64
	UserID    int64
	TaskID    int64
	Status    ReviewStatus
	CreatedAt time.Time
}
