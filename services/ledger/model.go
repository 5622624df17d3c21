package ledger

import (
	"time"

	"shiftops-controlplane/services/workday"
)

// TaskStatus is the per-day completion record for one task. Created lazily
// on first status check, destroyed on daily reset.
type TaskStatus struct {
	TaskID      string     `json:"taskId"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Overdue     bool       `json:"overdue"`
}

// MissingTaskEntry tracks a task whose owning period ended without
// completion. A task id appears at most once across the missing list.
type MissingTaskEntry struct {
	Task       workday.Task `json:"task"`
	PeriodName string       `json:"periodName"`
}

// NoticeComment is free-form commentary attached to a notice task.
type NoticeComment struct {
	TaskID  string    `json:"taskId"`
	Comment string    `json:"comment"`
	At      time.Time `json:"at"`
}

// Evidence is the abstract capture result attached to a completion. The
// dialogs that capture it are collaborators; only the reference survives
// here.
type Evidence struct {
	Kind workday.UploadKind `json:"type"`
	Ref  string             `json:"ref,omitempty"`
	Text string             `json:"text,omitempty"`
}
