package session

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shiftops-controlplane/pkg/bus"
	"shiftops-controlplane/pkg/config"
	"shiftops-controlplane/services/dutymanager"
	"shiftops-controlplane/services/snapshot"
	"shiftops-controlplane/services/testutil"
	"shiftops-controlplane/services/workday"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeDutyRepository struct{}

func (fakeDutyRepository) InsertSubmission(context.Context, *dutymanager.Submission) error { return nil }
func (fakeDutyRepository) UpdateReviewStatus(context.Context, string, dutymanager.Review) error {
	return nil
}
func (fakeDutyRepository) FetchTodaySubmissions(context.Context, []string, string, dutymanager.DayRange) ([]dutymanager.Submission, error) {
	return nil, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Workday.OpeningHour = 10
	cfg.Workday.Periods = []config.PeriodConfig{
		{
			ID: "opening", DisplayName: "开店", Start: "10:00", End: "10:30",
			Tasks: map[string][]config.TaskConfig{
				"manager": {
					{ID: "opening-power-on", Title: "开启门店电源与照明"},
					{ID: "opening-pos-check", Title: "检查收银系统", Upload: "photo"},
					{ID: "opening-safety-walk", Title: "安全巡检", Upload: "list"},
				},
			},
		},
		{ID: "pre-lunch-prep", DisplayName: "午市准备", Start: "10:30", End: "11:30"},
		{ID: "lunch-service", DisplayName: "午市营业", Start: "11:30", End: "14:00"},
		{
			ID: "lunch-break", DisplayName: "午市收市", Start: "14:00", End: "16:30",
			Tasks: map[string][]config.TaskConfig{
				"duty_manager": {
					{ID: "lunch-duty-manager-1", Title: "午市收市清洁检查", Upload: "photo"},
					{ID: "lunch-duty-manager-2", Title: "午市收市现金清点", Upload: "photo"},
				},
			},
		},
		{ID: "pre-dinner-prep", DisplayName: "晚市准备", Start: "16:30", End: "17:30"},
		{ID: "dinner-service", DisplayName: "晚市营业", Start: "17:30", End: "21:30"},
		{ID: "pre-closing", DisplayName: "预打烊", EventDriven: true},
		{
			ID: "closing", DisplayName: "闭店", EventDriven: true,
			Tasks: map[string][]config.TaskConfig{
				"manager": {
					{ID: "closing-cash-count", Title: "晚市清点营业款", Upload: "photo"},
				},
			},
		},
	}
	return cfg
}

// newTestSession builds a manager session pinned to the given clock, backed
// by an in-memory snapshot store. The first tick absorbs the reset from the
// construction-time wall clock.
func newTestSession(t *testing.T, clock time.Time) *Session {
	t.Helper()
	ctx := context.Background()

	calendar, err := workday.NewService(workday.Params{Config: testConfig()})
	require.NoError(t, err)

	duty := dutymanager.NewService(dutymanager.Params{Bus: bus.New(), Repo: fakeDutyRepository{}})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	snapshots := snapshot.NewService(snapshot.Params{
		DB:   testutil.NewTestDB(t, &snapshot.Record{}, &snapshot.ArchiveRecord{}),
		Node: node,
	})

	s := New(Options{
		Role:        workday.RoleManager,
		Calendar:    calendar,
		Duty:        duty,
		Snapshots:   snapshots,
		OpeningHour: 10,
	})
	require.NoError(t, s.SetTestTime(ctx, &clock))
	s.Tick(ctx, s.Now())
	return s
}

func day(hour, minute int) time.Time {
	return time.Date(2026, 8, 26, hour, minute, 0, 0, time.UTC)
}

func TestCurrentPeriodFollowsClock(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, day(10, 15))

	instance := s.CurrentPeriod()
	require.NotNil(t, instance)
	require.Equal(t, "opening", instance.Template.ID)
	require.Len(t, instance.Tasks(workday.RoleManager), 3)

	clock := day(10, 30)
	require.NoError(t, s.SetTestTime(ctx, &clock))
	require.Equal(t, "pre-lunch-prep", s.CurrentPeriod().Template.ID)
}

func TestCompleteTaskPersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, day(10, 15))

	require.NoError(t, s.CompleteTask(ctx, "opening-power-on", workday.UploadNone, nil, ""))
	require.NoError(t, s.AddNotice(ctx, "opening-pos-check", "收银机昨晚已检修"))

	// A second session over the same snapshot store stands in for a reload.
	restored := New(Options{
		Role:        workday.RoleManager,
		Calendar:    s.calendar,
		Duty:        s.duty,
		Snapshots:   s.snapshots,
		OpeningHour: 10,
	})
	require.NoError(t, restored.RestoreState(ctx))

	require.True(t, restored.Ledger().IsCompleted("opening-power-on"))
	require.False(t, restored.Ledger().IsCompleted("opening-pos-check"))
	require.Len(t, restored.Ledger().Notices(), 1)
	require.Equal(t, s.Now(), restored.Now())
}

func TestAdvanceToNextCollectsMissingAndFreezes(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, day(10, 15))

	require.NoError(t, s.CompleteTask(ctx, "opening-power-on", workday.UploadNone, nil, ""))

	missing := s.AdvanceToNext(ctx)
	require.Len(t, missing, 2)
	require.Equal(t, "开店", missing[0].PeriodName)

	// The clock still reads 10:15 but the session moved on.
	require.Equal(t, "pre-lunch-prep", s.CurrentPeriod().Template.ID)

	// Natural time catching up clears the override without another jump.
	clock := day(10, 45)
	require.NoError(t, s.SetTestTime(ctx, &clock))
	require.Equal(t, "pre-lunch-prep", s.CurrentPeriod().Template.ID)

	clock = day(11, 30)
	require.NoError(t, s.SetTestTime(ctx, &clock))
	require.Equal(t, "lunch-service", s.CurrentPeriod().Template.ID)
}

func TestLunchTriggerInjectsReviewTasks(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, day(14, 30))

	require.Equal(t, "lunch-break", s.CurrentPeriod().Template.ID)
	require.NoError(t, s.SetTrigger(ctx, dutymanager.TriggerLastCustomerLeftLunch, "店长"))

	// Review tasks live on the instance, never the static table.
	tasks := s.CurrentPeriod().Tasks(workday.RoleManager)
	require.Len(t, tasks, 2)
	require.Equal(t, "lunch-duty-manager-1-review", tasks[0].ID)
	require.True(t, tasks[0].AutoGenerated)

	fresh, err := workday.NewService(workday.Params{Config: testConfig()})
	require.NoError(t, err)
	require.Empty(t, fresh.Period("lunch-break").Tasks(workday.RoleManager))

	// Re-firing does not duplicate the injected tasks.
	require.NoError(t, s.SetTrigger(ctx, dutymanager.TriggerLastCustomerLeftLunch, "店长"))
	require.Len(t, s.CurrentPeriod().Tasks(workday.RoleManager), 2)
}

func TestDinnerTriggerAdvancesEventDrivenPeriod(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, day(22, 0))

	// Past the last timed window the session sits in pre-closing.
	require.Equal(t, "pre-closing", s.CurrentPeriod().Template.ID)

	require.NoError(t, s.SetTrigger(ctx, dutymanager.TriggerLastCustomerLeftDinner, "店长"))

	instance := s.CurrentPeriod()
	require.Equal(t, "closing", instance.Template.ID)

	tasks := instance.Tasks(workday.RoleManager)
	require.Len(t, tasks, 3) // closing-cash-count + two review tasks
	require.Equal(t, "closing-cash-count", tasks[0].ID)
	require.Equal(t, "dinner-duty-manager-1-review", tasks[1].ID)
}

func TestPeriodChangeDropsInjectedTasks(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, day(14, 30))

	require.NoError(t, s.SetTrigger(ctx, dutymanager.TriggerLastCustomerLeftLunch, "店长"))
	require.Len(t, s.CurrentPeriod().Tasks(workday.RoleManager), 2)

	clock := day(16, 30)
	require.NoError(t, s.SetTestTime(ctx, &clock))

	instance := s.CurrentPeriod()
	require.Equal(t, "pre-dinner-prep", instance.Template.ID)
	require.Empty(t, instance.Tasks(workday.RoleManager))
}

func TestConfirmClosingWaitsForNextOpening(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, day(23, 0))

	require.NoError(t, s.SetTrigger(ctx, dutymanager.TriggerLastCustomerLeftDinner, "店长"))
	require.NoError(t, s.ConfirmClosing(ctx))

	require.True(t, s.WaitingForNextDay())
	require.Nil(t, s.CurrentPeriod())
	require.Empty(t, s.Duty().Triggers())

	// Early next morning, still before opening: the same business day.
	clock := time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetTestTime(ctx, &clock))
	s.Tick(ctx, s.Now())
	require.Nil(t, s.CurrentPeriod())

	// Opening hour of the next business day ends the wait.
	clock = time.Date(2026, 8, 27, 10, 5, 0, 0, time.UTC)
	require.NoError(t, s.SetTestTime(ctx, &clock))
	s.Tick(ctx, s.Now())

	require.False(t, s.WaitingForNextDay())
	instance := s.CurrentPeriod()
	require.NotNil(t, instance)
	require.Equal(t, "opening", instance.Template.ID)
}

func TestDailyResetFiresExactlyOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, day(11, 0))

	require.NoError(t, s.CompleteTask(ctx, "opening-power-on", workday.UploadNone, nil, ""))
	s.Duty().SetTrigger(ctx, dutymanager.TriggerLastCustomerLeftLunch, "店长", s.Now())

	// The device resumes two days later: one reset, not two.
	clock := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	require.NoError(t, s.SetTestTime(ctx, &clock))
	s.Tick(ctx, s.Now())

	require.False(t, s.Ledger().IsCompleted("opening-power-on"))
	require.Empty(t, s.Duty().Triggers())

	// State written after the reset survives further ticks on the same day.
	require.NoError(t, s.CompleteTask(ctx, "opening-power-on", workday.UploadNone, nil, ""))
	s.Tick(ctx, s.Now())
	s.Tick(ctx, s.Now())
	require.True(t, s.Ledger().IsCompleted("opening-power-on"))
}

func TestNoResetBeforeOpeningHour(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, day(23, 30))

	require.NoError(t, s.CompleteTask(ctx, "closing-cash-count", workday.UploadNone, nil, ""))

	// 01:00 next calendar day is still the same business day.
	clock := time.Date(2026, 8, 27, 1, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetTestTime(ctx, &clock))
	s.Tick(ctx, s.Now())

	require.True(t, s.Ledger().IsCompleted("closing-cash-count"))
}

func TestStaleSnapshotIgnored(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, day(10, 15))

	require.NoError(t, s.snapshots.Save(ctx, &snapshot.State{
		Role:             string(workday.RoleManager),
		CompletedTaskIDs: []string{"opening-power-on"},
	}, "2000-01-01"))

	restored := New(Options{
		Role:        workday.RoleManager,
		Calendar:    s.calendar,
		Duty:        s.duty,
		Snapshots:   s.snapshots,
		OpeningHour: 10,
	})
	require.NoError(t, restored.RestoreState(ctx))
	require.Empty(t, restored.Ledger().CompletedIDs())
}

func TestTimedPeriodEndCollectsMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, day(10, 15))

	require.Equal(t, "opening", s.CurrentPeriod().Template.ID)
	require.Empty(t, s.Ledger().Missing())

	// Opening ends at 10:30 with all three tasks incomplete.
	clock := day(10, 45)
	require.NoError(t, s.SetTestTime(ctx, &clock))
	s.Tick(ctx, s.Now())

	require.Equal(t, "pre-lunch-prep", s.CurrentPeriod().Template.ID)

	missing := s.Ledger().Missing()
	require.Len(t, missing, 3)
	require.Equal(t, "开店", missing[0].PeriodName)
	require.Equal(t, "opening-power-on", missing[0].Task.ID)
	require.True(t, s.Ledger().Status("opening-power-on").Overdue)

	// Only opening's own tasks roll over.
	ids := []string{missing[0].Task.ID, missing[1].Task.ID, missing[2].Task.ID}
	require.NotContains(t, ids, "lunch-duty-manager-1")
}

func TestTimedPeriodEndSkipsCompletedTasks(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, day(10, 15))

	require.NoError(t, s.CompleteTask(ctx, "opening-power-on", workday.UploadNone, nil, ""))

	clock := day(10, 45)
	require.NoError(t, s.SetTestTime(ctx, &clock))
	s.Tick(ctx, s.Now())

	missing := s.Ledger().Missing()
	require.Len(t, missing, 2)
	for _, entry := range missing {
		require.NotEqual(t, "opening-power-on", entry.Task.ID)
	}
	require.False(t, s.Ledger().Status("opening-power-on").Overdue)
}

func TestLunchThenDinnerTriggerSameDay(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, day(14, 30))

	require.NoError(t, s.SetTrigger(ctx, dutymanager.TriggerLastCustomerLeftLunch, "店长"))
	require.Len(t, s.CurrentPeriod().Tasks(workday.RoleManager), 2)

	// Dinner winds down; the lunch trigger from earlier is still set.
	clock := day(22, 0)
	require.NoError(t, s.SetTestTime(ctx, &clock))
	require.Equal(t, "pre-closing", s.CurrentPeriod().Template.ID)

	require.NoError(t, s.SetTrigger(ctx, dutymanager.TriggerLastCustomerLeftDinner, "店长"))

	instance := s.CurrentPeriod()
	require.Equal(t, "closing", instance.Template.ID)

	tasks := instance.Tasks(workday.RoleManager)
	require.Len(t, tasks, 3)
	require.Equal(t, "dinner-duty-manager-1-review", tasks[1].ID)
	require.Equal(t, "dinner-duty-manager-2-review", tasks[2].ID)

	dinner := s.Duty().Trigger(dutymanager.TriggerLastCustomerLeftDinner)
	require.NotNil(t, dinner)
	require.Equal(t, day(22, 0), dinner.TriggeredAt)
}
