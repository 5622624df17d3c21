package dutymanager

import (
	"time"

	"shiftops-controlplane/services/workday"
)

// TriggerType marks which service block handed over to the duty manager.
type TriggerType string

const (
	TriggerLastCustomerLeftLunch  TriggerType = "last-customer-left-lunch"
	TriggerLastCustomerLeftDinner TriggerType = "last-customer-left-dinner"
)

// Trigger is the once-per-service-block event created by the manager
// action; cleared on closing completion or daily reset.
type Trigger struct {
	Type        TriggerType `json:"type"`
	TriggeredAt time.Time   `json:"triggeredAt"`
	TriggeredBy string      `json:"triggeredBy"`
}

// SubmissionContent is the evidence bundle attached to a duty-manager
// submission. Photo entries are object-store keys, not raw bytes.
type SubmissionContent struct {
	Photos      []string            `json:"photos,omitempty"`
	PhotoGroups map[string][]string `json:"photoGroups,omitempty"`
	Text        string              `json:"text,omitempty"`
	Amount      *float64            `json:"amount,omitempty"`
}

// Submission is keyed by task id; re-submission replaces the prior entry
// (at most one current submission per task).
type Submission struct {
	TaskID      string            `json:"taskId"`
	TaskTitle   string            `json:"taskTitle"`
	SubmittedBy string            `json:"submittedBy,omitempty"`
	SubmittedAt time.Time         `json:"submittedAt"`
	Content     SubmissionContent `json:"content"`
}

// ReviewState is the manager's verdict on a submission cycle.
type ReviewState string

const (
	ReviewPending  ReviewState = "pending"
	ReviewApproved ReviewState = "approved"
	ReviewRejected ReviewState = "rejected"
)

// Review records the verdict for one task. Rejected implies the submission
// was removed (forces re-submission); approved is terminal for the cycle.
type Review struct {
	Status     ReviewState `json:"status"`
	ReviewedAt time.Time   `json:"reviewedAt"`
	Reason     string      `json:"reason,omitempty"`
}

// dutyTaskIDs lists the duty-manager tasks expected for each trigger type.
// The synthesized review tasks link back to these.
var dutyTaskIDs = map[TriggerType][]string{
	TriggerLastCustomerLeftLunch:  {"lunch-duty-manager-1", "lunch-duty-manager-2"},
	TriggerLastCustomerLeftDinner: {"dinner-duty-manager-1", "dinner-duty-manager-2"},
}

var dutyTaskTitles = map[string]string{
	"lunch-duty-manager-1":  "午市收市清洁检查",
	"lunch-duty-manager-2":  "午市收市现金清点",
	"dinner-duty-manager-1": "晚市收市清洁检查",
	"dinner-duty-manager-2": "晚市收市现金清点",
}

// ReviewTasksFor synthesizes the auto-generated audit tasks a trigger
// injects into the active period: one review task per expected duty task.
func ReviewTasksFor(t TriggerType) []workday.Task {
	ids := dutyTaskIDs[t]
	tasks := make([]workday.Task, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, workday.Task{
			ID:            id + "-review",
			Title:         "审核: " + dutyTaskTitles[id],
			Role:          workday.RoleManager,
			Upload:        workday.UploadReview,
			LinkedTaskIDs: []string{id},
			AutoGenerated: true,
		})
	}
	return tasks
}

// DutyTaskIDs exposes the expected duty-manager task ids for a trigger.
func DutyTaskIDs(t TriggerType) []string {
	return dutyTaskIDs[t]
}
