package snapshot

import (
	"context"
	"encoding/json"
	"errors"

	taskq "shiftops-controlplane/pkg/asynq"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Enqueuer is the slice of asynq.Client the service needs; tests swap in a
// fake.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Service owns serialization of dashboard state. No other component reads
// or writes the snapshot tables.
type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	asynq Enqueuer
}

type Params struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node

	Asynq *asynq.Client `optional:"true"`
}

func NewService(p Params) *Service {
	s := &Service{
		db:   p.DB,
		node: p.Node,
	}
	if p.Asynq != nil {
		s.asynq = p.Asynq
	}
	return s
}

// Save upserts the current snapshot for the state's role.
func (s *Service) Save(ctx context.Context, state *State, businessDay string) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}

	record := Record{
		Role:        state.Role,
		BusinessDay: businessDay,
		Payload:     datatypes.JSON(payload),
	}

	var existing Record
	err = s.db.WithContext(ctx).Where("role = ?", state.Role).First(&existing).Error
	if err == nil {
		return s.db.WithContext(ctx).Model(&Record{}).
			Where("role = ?", state.Role).
			Updates(map[string]any{
				"business_day": businessDay,
				"payload":      record.Payload,
			}).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return s.db.WithContext(ctx).Create(&record).Error
}

// Load returns the saved snapshot for a role and the business day it was
// written on, or nil when none exists (fresh-day start).
func (s *Service) Load(ctx context.Context, role string) (*State, string, error) {
	var record Record
	err := s.db.WithContext(ctx).Where("role = ?", role).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}

	var state State
	if err := json.Unmarshal(record.Payload, &state); err != nil {
		return nil, "", err
	}
	return &state, record.BusinessDay, nil
}

// EnqueueArchive schedules the end-of-day archival job for a role's
// snapshot. Called at daily reset, before live state is wiped.
func (s *Service) EnqueueArchive(ctx context.Context, role, businessDay string) error {
	if s.asynq == nil {
		return nil
	}

	payload, _ := json.Marshal(taskq.SnapshotArchivePayload{
		Role:        role,
		BusinessDay: businessDay,
	})
	task := asynq.NewTask(taskq.SnapshotArchiveTask, payload, asynq.Queue("low"))

	if _, err := s.asynq.Enqueue(task); err != nil {
		zap.L().Error("[Snapshot] failed to enqueue archive job",
			zap.String("role", role), zap.Error(err))
		return err
	}

	zap.L().Info("[Snapshot] enqueued archive job",
		zap.String("role", role),
		zap.String("business_day", businessDay),
	)
	return nil
}

// HandleArchiveTask is the asynq worker side: copy the role's snapshot row
// into the archive table.
func (s *Service) HandleArchiveTask(ctx context.Context, t *asynq.Task) error {
	var payload taskq.SnapshotArchivePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		zap.L().Error("invalid archive payload", zap.Error(err))
		return err
	}

	var record Record
	err := s.db.WithContext(ctx).Where("role = ?", payload.Role).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil // nothing saved for that role; nothing to archive
	}
	if err != nil {
		return err
	}

	archive := ArchiveRecord{
		ID:          s.node.Generate().String(),
		Role:        payload.Role,
		BusinessDay: payload.BusinessDay,
		Payload:     record.Payload,
	}
	if err := s.db.WithContext(ctx).Create(&archive).Error; err != nil {
		return err
	}

	zap.L().Info("[Snapshot] archived business day",
		zap.String("role", payload.Role),
		zap.String("business_day", payload.BusinessDay),
	)
	return nil
}

var Module = fx.Module("snapshot.service",
	fx.Provide(NewService),
)

// RegisterHandlers mounts the archive worker on the asynq mux.
func RegisterHandlers(mux *asynq.ServeMux, svc *Service) {
	mux.HandleFunc(taskq.SnapshotArchiveTask, svc.HandleArchiveTask)
}
