package dutymanager

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"

	"shiftops-controlplane/services/testutil"
)

func newTestRepository(t *testing.T) Repository {
	t.Helper()
	db := testutil.NewTestDB(t, &SubmissionRecord{}, &ReviewRecord{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewRepository(db, node)
}

func TestInsertSubmissionReplacesSameDay(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 26, 14, 30, 0, 0, time.UTC)

	first := Submission{
		TaskID:      "lunch-duty-manager-1",
		TaskTitle:   "午市收市清洁检查",
		SubmittedBy: "值班经理",
		SubmittedAt: now,
		Content:     SubmissionContent{Text: "第一次"},
	}
	require.NoError(t, repo.InsertSubmission(ctx, &first))

	second := first
	second.SubmittedAt = now.Add(20 * time.Minute)
	second.Content = SubmissionContent{Text: "重做后"}
	require.NoError(t, repo.InsertSubmission(ctx, &second))

	subs, err := repo.FetchTodaySubmissions(ctx, []string{"lunch-duty-manager-1"}, "", Today(now))
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, "重做后", subs[0].Content.Text)
	require.Equal(t, second.SubmittedAt.Unix(), subs[0].SubmittedAt.Unix())
}

func TestFetchTodaySubmissionsScopesByDay(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	today := time.Date(2026, 8, 26, 22, 0, 0, 0, time.UTC)

	require.NoError(t, repo.InsertSubmission(ctx, &Submission{
		TaskID:      "dinner-duty-manager-1",
		SubmittedAt: today,
	}))
	require.NoError(t, repo.InsertSubmission(ctx, &Submission{
		TaskID:      "dinner-duty-manager-2",
		SubmittedAt: today.AddDate(0, 0, -1),
	}))

	subs, err := repo.FetchTodaySubmissions(ctx, DutyTaskIDs(TriggerLastCustomerLeftDinner), "", Today(today))
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, "dinner-duty-manager-1", subs[0].TaskID)
}

func TestUpdateReviewStatusUpserts(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.UpdateReviewStatus(ctx, "lunch-duty-manager-1", Review{
		Status:     ReviewRejected,
		Reason:     "照片不清晰",
		ReviewedAt: now,
	}))
	require.NoError(t, repo.UpdateReviewStatus(ctx, "lunch-duty-manager-1", Review{
		Status:     ReviewApproved,
		ReviewedAt: now.Add(10 * time.Minute),
	}))
}

func TestNilRepositoryGuards(t *testing.T) {
	var repo *gormRepository

	require.Error(t, repo.InsertSubmission(context.Background(), &Submission{}))
	require.Error(t, repo.UpdateReviewStatus(context.Background(), "x", Review{}))
	_, err := repo.FetchTodaySubmissions(context.Background(), nil, "", DayRange{})
	require.Error(t, err)
}
