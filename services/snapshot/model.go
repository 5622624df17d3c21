package snapshot

import (
	"time"

	"shiftops-controlplane/services/ledger"
	"shiftops-controlplane/services/workday"

	"gorm.io/datatypes"
)

// State is the per-role dashboard snapshot persisted across reloads. Date
// fields serialize as RFC 3339 strings and come back as time.Time values.
type State struct {
	Role                   string                    `json:"role"`
	CompletedTaskIDs       []string                  `json:"completedTaskIds"`
	TaskStatuses           []ledger.TaskStatus       `json:"taskStatuses"`
	NoticeComments         []ledger.NoticeComment    `json:"noticeComments"`
	MissingTasks           []ledger.MissingTaskEntry `json:"missingTasks"`
	IsManualClosing        bool                      `json:"isManualClosing"`
	IsWaitingForNextDay    bool                      `json:"isWaitingForNextDay"`
	ManuallyAdvancedPeriod *string                   `json:"manuallyAdvancedPeriod"`
	PreClosingTasks        []workday.Task            `json:"preClosingTasks"`
	TestTime               *time.Time                `json:"testTime"`
}

// Record holds the current snapshot for one role.
type Record struct {
	Role        string         `gorm:"column:role;primaryKey"`
	BusinessDay string         `gorm:"column:business_day;index"`
	Payload     datatypes.JSON `gorm:"column:payload"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
}

func (Record) TableName() string { return "snapshots" }

// ArchiveRecord is an end-of-day copy of a snapshot, written by the
// archival background task before the daily reset wipes live state.
type ArchiveRecord struct {
	ID          string         `gorm:"column:id;primaryKey"`
	Role        string         `gorm:"column:role;index"`
	BusinessDay string         `gorm:"column:business_day;index"`
	Payload     datatypes.JSON `gorm:"column:payload"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
}

func (ArchiveRecord) TableName() string { return "snapshot_archives" }
