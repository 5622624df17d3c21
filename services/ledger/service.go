package ledger

import (
	"sync"
	"time"

	"shiftops-controlplane/services/workday"

	"go.uber.org/zap"
)

// Ledger tracks per-task completion and overdue state for the active
// business day. One instance per dashboard session; the session is the only
// writer apart from snapshot restore. Operating on an unknown task id is a
// no-op, never an error: the service flow must not block on caller misuse.
type Ledger struct {
	mu sync.Mutex

	statuses     map[string]*TaskStatus
	completedIDs []string
	completedSet map[string]struct{}
	missing      []MissingTaskEntry
	notices      []NoticeComment
}

func New() *Ledger {
	l := &Ledger{}
	l.reset()
	return l
}

func (l *Ledger) reset() {
	l.statuses = make(map[string]*TaskStatus)
	l.completedIDs = nil
	l.completedSet = make(map[string]struct{})
	l.missing = nil
	l.notices = nil
}

// Complete marks a task done. Idempotent by id: completing twice leaves one
// entry in the completed set. A completion for a task on the missing list is
// the late-submission path and removes it from there.
func (l *Ledger) Complete(taskID string, ev Evidence, now time.Time) {
	if taskID == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.statusLocked(taskID)
	if st.Completed {
		return
	}
	completedAt := now
	st.Completed = true
	st.CompletedAt = &completedAt
	st.Overdue = false

	if _, ok := l.completedSet[taskID]; !ok {
		l.completedSet[taskID] = struct{}{}
		l.completedIDs = append(l.completedIDs, taskID)
	}

	for i, entry := range l.missing {
		if entry.Task.ID == taskID {
			l.missing = append(l.missing[:i], l.missing[i+1:]...)
			zap.L().Info("[Ledger] late submission cleared missing task",
				zap.String("task_id", taskID),
				zap.String("evidence", string(ev.Kind)),
			)
			break
		}
	}
}

// RecomputeOverdue flags incomplete tasks of the period once the clock has
// passed its end. Event-driven periods have no end time to exceed and are
// never flagged.
func (l *Ledger) RecomputeOverdue(period *workday.Period, clock time.Time) {
	if period == nil || period.EventDriven {
		return
	}
	if clock.Hour()*60+clock.Minute() < period.End.Minutes() {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, task := range period.AllTasks() {
		st := l.statusLocked(task.ID)
		if !st.Completed && !st.Overdue {
			st.Overdue = true
		}
	}
}

// AdvancePeriod closes out the current period: every incomplete non-notice
// task becomes a MissingTaskEntry. Entries merge into the running list with
// duplicate-id suppression, first occurrence wins.
func (l *Ledger) AdvancePeriod(current *workday.Period) []MissingTaskEntry {
	if current == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tracked := make(map[string]struct{}, len(l.missing))
	for _, entry := range l.missing {
		tracked[entry.Task.ID] = struct{}{}
	}

	var added []MissingTaskEntry
	for _, task := range current.AllTasks() {
		if task.Notice {
			continue
		}
		if _, done := l.completedSet[task.ID]; done {
			continue
		}
		if _, dup := tracked[task.ID]; dup {
			continue
		}
		entry := MissingTaskEntry{Task: task, PeriodName: current.DisplayName}
		l.missing = append(l.missing, entry)
		tracked[task.ID] = struct{}{}
		added = append(added, entry)
	}

	if len(added) > 0 {
		zap.L().Info("[Ledger] period ended with missing tasks",
			zap.String("period", current.ID),
			zap.Int("count", len(added)),
		)
	}
	return added
}

// ResetDaily clears all per-day state for the next business day.
func (l *Ledger) ResetDaily() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reset()
}

// AddNotice appends commentary to a notice task.
func (l *Ledger) AddNotice(taskID, comment string, now time.Time) {
	if taskID == "" || comment == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notices = append(l.notices, NoticeComment{TaskID: taskID, Comment: comment, At: now})
}

// IsCompleted reports whether the task is done today.
func (l *Ledger) IsCompleted(taskID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.completedSet[taskID]
	return ok
}

// Status returns the (lazily created) status record for a task.
func (l *Ledger) Status(taskID string) TaskStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.statusLocked(taskID)
}

// CompletedIDs returns the day's completed task ids in completion order.
func (l *Ledger) CompletedIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.completedIDs))
	copy(out, l.completedIDs)
	return out
}

// Missing returns the cross-period missing task list.
func (l *Ledger) Missing() []MissingTaskEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]MissingTaskEntry, len(l.missing))
	copy(out, l.missing)
	return out
}

// Notices returns the day's notice comments.
func (l *Ledger) Notices() []NoticeComment {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]NoticeComment, len(l.notices))
	copy(out, l.notices)
	return out
}

// Statuses returns all materialized status records.
func (l *Ledger) Statuses() []TaskStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]TaskStatus, 0, len(l.statuses))
	for _, id := range l.completedIDs {
		if st, ok := l.statuses[id]; ok {
			out = append(out, *st)
		}
	}
	for id, st := range l.statuses {
		if _, done := l.completedSet[id]; !done {
			out = append(out, *st)
		}
	}
	return out
}

// Restore rehydrates the ledger from a persisted snapshot.
func (l *Ledger) Restore(completedIDs []string, statuses []TaskStatus, missing []MissingTaskEntry, notices []NoticeComment) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.reset()
	for _, st := range statuses {
		copied := st
		l.statuses[st.TaskID] = &copied
	}
	for _, id := range completedIDs {
		if _, ok := l.completedSet[id]; ok {
			continue
		}
		l.completedSet[id] = struct{}{}
		l.completedIDs = append(l.completedIDs, id)
	}
	seen := make(map[string]struct{})
	for _, entry := range missing {
		if _, dup := seen[entry.Task.ID]; dup {
			continue
		}
		seen[entry.Task.ID] = struct{}{}
		l.missing = append(l.missing, entry)
	}
	l.notices = append(l.notices, notices...)
}

func (l *Ledger) statusLocked(taskID string) *TaskStatus {
	st, ok := l.statuses[taskID]
	if !ok {
		st = &TaskStatus{TaskID: taskID}
		l.statuses[taskID] = st
	}
	return st
}
