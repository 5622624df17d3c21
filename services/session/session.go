package session

import (
	"context"
	"sync"
	"time"

	"shiftops-controlplane/services/dutymanager"
	"shiftops-controlplane/services/evidence"
	"shiftops-controlplane/services/ledger"
	"shiftops-controlplane/services/snapshot"
	"shiftops-controlplane/services/workday"

	"go.uber.org/zap"
)

// PeriodInstance is the mutable per-session view of a static period
// template: the template itself stays immutable, runtime-appended
// auto-generated tasks live only on the instance.
type PeriodInstance struct {
	Template *workday.Period
	Extra    []workday.Task
}

// Tasks returns the role's tasks including any injected review tasks.
func (p *PeriodInstance) Tasks(role workday.Role) []workday.Task {
	out := append([]workday.Task(nil), p.Template.Tasks(role)...)
	for _, t := range p.Extra {
		if t.Role == role {
			out = append(out, t)
		}
	}
	return out
}

// Append injects auto-generated tasks, skipping ids already present.
func (p *PeriodInstance) Append(tasks []workday.Task) {
	seen := make(map[string]struct{}, len(p.Extra))
	for _, t := range p.Extra {
		seen[t.ID] = struct{}{}
	}
	for _, t := range tasks {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		p.Extra = append(p.Extra, t)
	}
}

// Session is the dashboard state for one role and one business day: the
// active period instance, the task ledger and the duty-manager coordinator
// it owns. All state is instance-scoped so tests build isolated sessions.
type Session struct {
	mu   sync.Mutex
	role workday.Role

	calendar  *workday.Service
	ledger    *ledger.Ledger
	duty      *dutymanager.Service
	snapshots *snapshot.Service
	evidence  evidence.Store

	openingHour int

	instance        *PeriodInstance
	manualAdvanceID string
	waitingNextDay  bool
	manualClosing   bool
	testTime        *time.Time
	lastResetDay    string
}

type Options struct {
	Role        workday.Role
	Calendar    *workday.Service
	Duty        *dutymanager.Service
	Snapshots   *snapshot.Service
	Evidence    evidence.Store
	OpeningHour int
}

func New(opts Options) *Session {
	s := &Session{
		role:        opts.Role,
		calendar:    opts.Calendar,
		ledger:      ledger.New(),
		duty:        opts.Duty,
		snapshots:   opts.Snapshots,
		evidence:    opts.Evidence,
		openingHour: opts.OpeningHour,
	}
	s.lastResetDay = s.businessDay(s.Now())
	return s
}

// Now is the session clock: the test clock when set, wall clock otherwise.
func (s *Session) Now() time.Time {
	s.mu.Lock()
	tt := s.testTime
	s.mu.Unlock()
	if tt != nil {
		return *tt
	}
	return time.Now()
}

// Ledger exposes the session's task ledger.
func (s *Session) Ledger() *ledger.Ledger { return s.ledger }

// Duty exposes the session's duty-manager coordinator.
func (s *Session) Duty() *dutymanager.Service { return s.duty }

// Role returns the session's role.
func (s *Session) Role() workday.Role { return s.role }

// CurrentPeriod resolves the active period instance for the current clock
// reading, rebuilding the instance when the period changed. Returns nil on
// the waiting-for-next-day screen.
func (s *Session) CurrentPeriod() *PeriodInstance {
	now := s.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPeriodLocked(now)
}

func (s *Session) currentPeriodLocked(now time.Time) *PeriodInstance {
	period := s.calendar.CurrentPeriod(now, s.manualAdvanceID, s.waitingNextDay)
	if period == nil {
		return nil
	}

	if s.waitingNextDay {
		// Natural time re-entered opening; the wait is over.
		s.waitingNextDay = false
	}

	if s.manualAdvanceID != "" && !period.EventDriven && period.ID != s.manualAdvanceID {
		// Natural time caught up with a manual advance elsewhere; fall
		// through, CurrentPeriod already resumed normal lookup.
		s.manualAdvanceID = ""
	}
	if s.manualAdvanceID == period.ID && !period.EventDriven && period.Contains(now) {
		// Natural time caught up with the override.
		s.manualAdvanceID = ""
	}

	if s.instance == nil || s.instance.Template.ID != period.ID {
		if s.instance != nil {
			// The outgoing period ended by time: flag its tasks overdue and
			// roll the incomplete ones onto the missing list before the
			// instance swaps. Manual advance and the dinner trigger harvest
			// on their own paths; the ledger deduplicates either way.
			s.ledger.RecomputeOverdue(s.instance.Template, now)
			s.ledger.AdvancePeriod(s.instance.Template)
		}
		s.instance = &PeriodInstance{Template: period}
	}
	return s.instance
}

// NextPeriod is the display-only successor of the natural period.
func (s *Session) NextPeriod() *workday.Period {
	return s.calendar.NextPeriod(s.Now())
}

// CompleteTask marks a task done. Photo/audio payloads are stored first and
// only the object key is kept on the ledger. Unknown ids fall through to
// the ledger's no-op tolerance.
func (s *Session) CompleteTask(ctx context.Context, taskID string, kind workday.UploadKind, payload []byte, text string) error {
	now := s.Now()
	ev := ledger.Evidence{Kind: kind, Text: text}

	if len(payload) > 0 && s.evidence != nil {
		ref, err := s.evidence.Put(ctx, taskID, kind, payload, now)
		if err != nil {
			return err
		}
		ev.Ref = ref
	}

	s.ledger.Complete(taskID, ev, now)
	return s.SaveState(ctx)
}

// AddNotice attaches commentary to a notice task.
func (s *Session) AddNotice(ctx context.Context, taskID, comment string) error {
	s.ledger.AddNotice(taskID, comment, s.Now())
	return s.SaveState(ctx)
}

// AdvanceToNext manually closes the active period: incomplete non-notice
// tasks join the missing list and the calendar freezes on the successor
// until natural time catches up.
func (s *Session) AdvanceToNext(ctx context.Context) []ledger.MissingTaskEntry {
	now := s.Now()

	s.mu.Lock()
	current := s.currentPeriodLocked(now)
	if current == nil {
		s.mu.Unlock()
		return nil
	}

	missing := s.ledger.AdvancePeriod(current.Template)

	next := s.calendar.Next(current.Template.ID)
	if next != nil {
		s.manualAdvanceID = next.ID
		s.instance = &PeriodInstance{Template: next}
	}
	s.mu.Unlock()

	if err := s.SaveState(ctx); err != nil {
		zap.L().Warn("[Session] failed to save state after advance", zap.Error(err))
	}
	return missing
}

// SetTrigger fires a duty-manager handover. The synthesized review tasks
// are injected into the active period instance, never the static table. A
// dinner trigger additionally moves an event-driven period forward to its
// successor (pre-closing → closing).
func (s *Session) SetTrigger(ctx context.Context, t dutymanager.TriggerType, by string) error {
	now := s.Now()

	tasks := s.duty.SetTrigger(ctx, t, by, now)
	if tasks == nil {
		return nil // already triggered this service block
	}

	s.mu.Lock()
	current := s.currentPeriodLocked(now)
	if t == dutymanager.TriggerLastCustomerLeftDinner && current != nil && current.Template.EventDriven {
		if next := s.calendar.Next(current.Template.ID); next != nil {
			s.ledger.AdvancePeriod(current.Template)
			s.manualAdvanceID = next.ID
			s.instance = &PeriodInstance{Template: next}
			current = s.instance
		}
	}
	if current != nil {
		current.Append(tasks)
	}
	s.mu.Unlock()

	return s.SaveState(ctx)
}

// ConfirmClosing completes the manual closing flow: coordinator state is
// wiped and the dashboard idles until the next opening.
func (s *Session) ConfirmClosing(ctx context.Context) error {
	s.duty.ClearTrigger(ctx)

	s.mu.Lock()
	s.manualClosing = true
	s.waitingNextDay = true
	s.manualAdvanceID = ""
	s.instance = nil
	s.mu.Unlock()

	return s.SaveState(ctx)
}

// SetTestTime pins (or clears) the session clock for QA.
func (s *Session) SetTestTime(ctx context.Context, t *time.Time) error {
	s.mu.Lock()
	s.testTime = t
	s.mu.Unlock()
	return s.SaveState(ctx)
}

// WaitingForNextDay reports whether the dashboard is idling after closing.
func (s *Session) WaitingForNextDay() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitingNextDay
}

// Tick is the single coalesced clock event: period resolution, overdue
// recomputation and the daily reset check all hang off it.
func (s *Session) Tick(ctx context.Context, now time.Time) {
	if s.maybeResetDay(ctx, now) {
		return
	}

	s.mu.Lock()
	instance := s.currentPeriodLocked(now)
	s.mu.Unlock()

	if instance != nil {
		s.ledger.RecomputeOverdue(instance.Template, now)
	}
}

// maybeResetDay fires the daily reset at most once per business-day
// transition. The business-day comparison (rather than a raw hour
// comparison) keeps the guarantee across clock skips: a device resuming
// hours later still resets exactly once.
func (s *Session) maybeResetDay(ctx context.Context, now time.Time) bool {
	day := s.businessDay(now)

	s.mu.Lock()
	if day == s.lastResetDay || now.Hour() < s.openingHour {
		s.mu.Unlock()
		return false
	}
	previousDay := s.lastResetDay
	s.lastResetDay = day
	s.waitingNextDay = false
	s.manualClosing = false
	s.manualAdvanceID = ""
	s.instance = nil
	s.mu.Unlock()

	zap.L().Info("[Session] daily reset",
		zap.String("business_day", day),
		zap.String("previous", previousDay),
	)

	if err := s.snapshots.EnqueueArchive(ctx, string(s.role), previousDay); err != nil {
		zap.L().Warn("[Session] archive enqueue failed", zap.Error(err))
	}

	s.ledger.ResetDaily()
	s.duty.ClearTrigger(ctx)

	if err := s.SaveState(ctx); err != nil {
		zap.L().Warn("[Session] failed to save state after reset", zap.Error(err))
	}
	return true
}

// businessDay maps a clock reading to its business day: hours before
// opening belong to the previous day (closing runs past midnight).
func (s *Session) businessDay(now time.Time) string {
	if now.Hour() < s.openingHour {
		return now.AddDate(0, 0, -1).Format("2006-01-02")
	}
	return now.Format("2006-01-02")
}

// State builds the persistable snapshot of the session.
func (s *Session) State() *snapshot.State {
	s.mu.Lock()
	var advanced *string
	if s.manualAdvanceID != "" {
		id := s.manualAdvanceID
		advanced = &id
	}
	var preClosing []workday.Task
	if s.instance != nil {
		preClosing = append(preClosing, s.instance.Extra...)
	}
	state := &snapshot.State{
		Role:                   string(s.role),
		IsManualClosing:        s.manualClosing,
		IsWaitingForNextDay:    s.waitingNextDay,
		ManuallyAdvancedPeriod: advanced,
		PreClosingTasks:        preClosing,
		TestTime:               s.testTime,
	}
	s.mu.Unlock()

	state.CompletedTaskIDs = s.ledger.CompletedIDs()
	state.TaskStatuses = s.ledger.Statuses()
	state.NoticeComments = s.ledger.Notices()
	state.MissingTasks = s.ledger.Missing()
	return state
}

// SaveState persists the snapshot for this role.
func (s *Session) SaveState(ctx context.Context) error {
	return s.snapshots.Save(ctx, s.State(), s.businessDay(s.Now()))
}

// RestoreState rehydrates the session from a persisted snapshot. A
// snapshot from an earlier business day is ignored: absence of a current
// snapshot implies a fresh-day start.
func (s *Session) RestoreState(ctx context.Context) error {
	state, businessDay, err := s.snapshots.Load(ctx, string(s.role))
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	if state.TestTime != nil {
		s.mu.Lock()
		s.testTime = state.TestTime
		s.mu.Unlock()
	}

	if businessDay != s.businessDay(s.Now()) {
		zap.L().Info("[Session] stale snapshot ignored", zap.String("business_day", businessDay))
		return nil
	}

	s.mu.Lock()
	s.manualClosing = state.IsManualClosing
	s.waitingNextDay = state.IsWaitingForNextDay
	if state.ManuallyAdvancedPeriod != nil {
		s.manualAdvanceID = *state.ManuallyAdvancedPeriod
	}
	s.lastResetDay = businessDay
	s.mu.Unlock()

	s.ledger.Restore(state.CompletedTaskIDs, state.TaskStatuses, state.MissingTasks, state.NoticeComments)

	if len(state.PreClosingTasks) > 0 {
		now := s.Now()
		s.mu.Lock()
		if instance := s.currentPeriodLocked(now); instance != nil {
			instance.Append(state.PreClosingTasks)
		}
		s.mu.Unlock()
	}

	return nil
}
