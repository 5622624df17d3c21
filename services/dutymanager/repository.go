package dutymanager

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubmissionRecord is the persisted form of a duty-manager submission.
type SubmissionRecord struct {
	ID          string         `gorm:"column:id;primaryKey"`
	TaskID      string         `gorm:"column:task_id;index;not null"`
	TaskTitle   string         `gorm:"column:task_title"`
	UserID      string         `gorm:"column:user_id;index"`
	SubmittedAt time.Time      `gorm:"column:submitted_at;index"`
	Content     datatypes.JSON `gorm:"column:content"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
}

// ReviewRecord is the persisted review verdict for a submission cycle.
type ReviewRecord struct {
	ID         string    `gorm:"column:id;primaryKey"`
	TaskID     string    `gorm:"column:task_id;index;not null"`
	Status     string    `gorm:"column:status;type:varchar(20)"`
	Reason     string    `gorm:"column:reason;type:text"`
	ReviewedAt time.Time `gorm:"column:reviewed_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// DayRange bounds a business day for queries.
type DayRange struct {
	Start time.Time
	End   time.Time
}

// Today builds the range covering the business day containing now.
func Today(now time.Time) DayRange {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return DayRange{Start: start, End: start.Add(24 * time.Hour)}
}

// Repository is the record-store boundary for duty-manager state.
type Repository interface {
	InsertSubmission(ctx context.Context, sub *Submission) error
	UpdateReviewStatus(ctx context.Context, taskID string, review Review) error
	FetchTodaySubmissions(ctx context.Context, taskIDs []string, userID string, day DayRange) ([]Submission, error)
}

type gormRepository struct {
	db   *gorm.DB
	node *snowflake.Node
}

// NewRepository returns a gorm backed Repository implementation.
func NewRepository(db *gorm.DB, node *snowflake.Node) Repository {
	return &gormRepository{db: db, node: node}
}

func (r *gormRepository) InsertSubmission(ctx context.Context, sub *Submission) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	content, err := json.Marshal(sub.Content)
	if err != nil {
		return err
	}

	day := Today(sub.SubmittedAt)

	// Re-submission replaces the prior record for the same task and day.
	var existing SubmissionRecord
	err = r.db.WithContext(ctx).
		Where("task_id = ? AND submitted_at >= ? AND submitted_at < ?", sub.TaskID, day.Start, day.End).
		First(&existing).Error
	if err == nil {
		return r.db.WithContext(ctx).Model(&SubmissionRecord{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"task_title":   sub.TaskTitle,
				"user_id":      sub.SubmittedBy,
				"submitted_at": sub.SubmittedAt,
				"content":      datatypes.JSON(content),
			}).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	record := SubmissionRecord{
		ID:          r.node.Generate().String(),
		TaskID:      sub.TaskID,
		TaskTitle:   sub.TaskTitle,
		UserID:      sub.SubmittedBy,
		SubmittedAt: sub.SubmittedAt,
		Content:     datatypes.JSON(content),
	}
	return r.db.WithContext(ctx).Create(&record).Error
}

func (r *gormRepository) UpdateReviewStatus(ctx context.Context, taskID string, review Review) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	var existing ReviewRecord
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&existing).Error
	if err == nil {
		return r.db.WithContext(ctx).Model(&ReviewRecord{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"status":      string(review.Status),
				"reason":      review.Reason,
				"reviewed_at": review.ReviewedAt,
			}).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	record := ReviewRecord{
		ID:         r.node.Generate().String(),
		TaskID:     taskID,
		Status:     string(review.Status),
		Reason:     review.Reason,
		ReviewedAt: review.ReviewedAt,
	}
	return r.db.WithContext(ctx).Create(&record).Error
}

func (r *gormRepository) FetchTodaySubmissions(ctx context.Context, taskIDs []string, userID string, day DayRange) ([]Submission, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	query := r.db.WithContext(ctx).Model(&SubmissionRecord{}).
		Where("submitted_at >= ? AND submitted_at < ?", day.Start, day.End)

	if len(taskIDs) > 0 {
		query = query.Where("task_id IN ?", taskIDs)
	}
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var records []SubmissionRecord
	if err := query.Order("submitted_at ASC").Find(&records).Error; err != nil {
		return nil, err
	}

	subs := make([]Submission, 0, len(records))
	for _, rec := range records {
		var content SubmissionContent
		if len(rec.Content) > 0 {
			if err := json.Unmarshal(rec.Content, &content); err != nil {
				return nil, err
			}
		}
		subs = append(subs, Submission{
			TaskID:      rec.TaskID,
			TaskTitle:   rec.TaskTitle,
			SubmittedBy: rec.UserID,
			SubmittedAt: rec.SubmittedAt,
			Content:     content,
		})
	}
	return subs, nil
}
