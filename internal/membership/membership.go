// Package membership defines the external chat-platform capabilities the core
// consumes: a membership check with three-valued outcome and a fire-and-forget
// penalty notifier.
package membership

import (
	"context"

	"github.com/shopspring/decimal"
)

type Status int

const (
	// Unknown means the collaborator failed or timed out. The caller must
	// treat it as "do nothing" (fail-open), never as NotMember.
	Unknown Status = iota
	Member
	NotMember
)

func (s Status) String() string {
	switch s {
	case Member:
		return "member"
	case NotMember:
		return "not_member"
	}
	return "unknown"
}

// Checker answers whether a user is currently a member of a task's target.
// Implementations must respect ctx deadlines; any error maps to Unknown.
type Checker interface {
	Check(ctx context.Context, target string, userID int64) Status
}

// PenaltyNotice describes an applied penalty for user notification.
type PenaltyNotice struct {
	UserID  int64
	TaskID  int64
	Title   string
	Link    string
	Penalty decimal.Decimal
}

// Notifier delivers best-effort messages. Failures are logged by the
// implementation and never propagate.
type Notifier interface {
	NotifyPenalty(ctx context.Context, n PenaltyNotice)
}
