package dutymanager

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"shiftops-controlplane/pkg/bus"
	"shiftops-controlplane/pkg/errutil"
	"shiftops-controlplane/services/workday"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Service is the duty-manager coordinator: at most one trigger per service
// block (lunch and dinner tracked independently), submissions keyed by task
// id, review verdicts per submission cycle.
//
// State machine, independently per trigger type:
//
//	Idle → Triggered → (Submitted ⇄ Rejected) → Approved → Idle (cleared)
//
// Local mutations persist to the record store and broadcast to every other
// context; Apply is the receive path and may only append or replace what it
// was handed, never fabricate or re-publish. Races between contexts resolve
// by last write observed locally; there is no causal ordering.
type Service struct {
	mu          sync.Mutex
	triggers    map[TriggerType]*Trigger
	submissions []Submission
	reviews     map[string]Review

	bus  *bus.Bus
	repo Repository
}

type Params struct {
	fx.In
	Bus  *bus.Bus
	Repo Repository
}

func NewService(p Params) *Service {
	return &Service{
		bus:      p.Bus,
		repo:     p.Repo,
		triggers: make(map[TriggerType]*Trigger),
		reviews:  make(map[string]Review),
	}
}

type reviewStatusMessage struct {
	TaskID     string      `json:"taskId"`
	Status     ReviewState `json:"status"`
	ReviewedAt time.Time   `json:"reviewedAt"`
	Reason     string      `json:"reason,omitempty"`
}

// SetTrigger fires the handover event and returns the synthesized review
// tasks the session must inject into its active period instance. Each
// service block triggers independently: the lunch trigger staying set does
// not block the dinner trigger. Firing an already-set trigger type is a
// no-op returning nil.
func (s *Service) SetTrigger(ctx context.Context, t TriggerType, by string, now time.Time) []workday.Task {
	s.mu.Lock()
	if s.triggers[t] != nil {
		s.mu.Unlock()
		return nil
	}
	trigger := &Trigger{Type: t, TriggeredAt: now, TriggeredBy: by}
	s.triggers[t] = trigger
	s.mu.Unlock()

	zap.L().Info("[DutyManager] trigger set",
		zap.String("type", string(t)),
		zap.String("by", by),
	)

	s.broadcast(ctx, bus.MessageTrigger, trigger)
	return ReviewTasksFor(t)
}

// AddSubmission records (or replaces) the duty manager's evidence for a
// task. A prior rejected review resets to pending in the same transition:
// re-submission implicitly re-opens review.
func (s *Service) AddSubmission(ctx context.Context, sub Submission) error {
	s.mu.Lock()
	s.upsertSubmissionLocked(sub)
	if rv, ok := s.reviews[sub.TaskID]; ok && rv.Status == ReviewRejected {
		s.reviews[sub.TaskID] = Review{Status: ReviewPending}
	}
	s.mu.Unlock()

	if err := s.repo.InsertSubmission(ctx, &sub); err != nil {
		// Transient I/O: local state stays, the user retries explicitly.
		zap.L().Error("[DutyManager] failed to persist submission",
			zap.String("task_id", sub.TaskID), zap.Error(err))
		return errutil.Internal("failed to save submission", err)
	}

	s.broadcast(ctx, bus.MessageSubmission, sub)
	return nil
}

// UpdateReviewStatus records the manager's verdict. Rejection atomically
// removes the submission for that task so the duty manager must redo it;
// approval keeps the submission as the audit record.
func (s *Service) UpdateReviewStatus(ctx context.Context, taskID string, status ReviewState, reason string, now time.Time) error {
	review := Review{Status: status, ReviewedAt: now, Reason: reason}

	s.mu.Lock()
	s.reviews[taskID] = review
	if status == ReviewRejected {
		s.removeSubmissionLocked(taskID)
	}
	s.mu.Unlock()

	if err := s.repo.UpdateReviewStatus(ctx, taskID, review); err != nil {
		zap.L().Error("[DutyManager] failed to persist review status",
			zap.String("task_id", taskID), zap.Error(err))
		return errutil.Internal("failed to save review status", err)
	}

	s.broadcast(ctx, bus.MessageReviewStatus, reviewStatusMessage{
		TaskID:     taskID,
		Status:     status,
		ReviewedAt: now,
		Reason:     reason,
	})
	return nil
}

// ClearTrigger returns the coordinator to idle: triggers of both service
// blocks, submissions and review statuses for the business day are wiped.
// Used at closing confirmation and daily reset.
func (s *Service) ClearTrigger(ctx context.Context) {
	s.mu.Lock()
	s.triggers = make(map[TriggerType]*Trigger)
	s.submissions = nil
	s.reviews = make(map[string]Review)
	s.mu.Unlock()

	s.broadcast(ctx, bus.MessageTrigger, (*Trigger)(nil))
	s.broadcast(ctx, bus.MessageClearSubmissions, struct{}{})
}

// Hydrate reloads today's submissions from the record store, e.g. after a
// process restart. Absence is a fresh day, not an error.
func (s *Service) Hydrate(ctx context.Context, userID string, day DayRange) error {
	var ids []string
	for _, t := range []TriggerType{TriggerLastCustomerLeftLunch, TriggerLastCustomerLeftDinner} {
		ids = append(ids, dutyTaskIDs[t]...)
	}

	subs, err := s.repo.FetchTodaySubmissions(ctx, ids, userID, day)
	if err != nil {
		return errutil.Internal("failed to load submissions", err)
	}

	s.mu.Lock()
	for _, sub := range subs {
		s.upsertSubmissionLocked(sub)
	}
	s.mu.Unlock()
	return nil
}

// Apply is the reducer for broadcast messages received from other contexts.
// Both transports feed it with identical semantics. It mirrors the local
// side effects (a rejected review also drops the submission) but never
// writes to the record store and never re-publishes.
func (s *Service) Apply(env bus.Envelope) {
	switch env.Type {
	case bus.MessageTrigger:
		var trigger *Trigger
		if err := json.Unmarshal(env.Data, &trigger); err != nil {
			zap.L().Warn("[DutyManager] dropping malformed trigger message", zap.Error(err))
			return
		}
		s.mu.Lock()
		if trigger == nil {
			s.triggers = make(map[TriggerType]*Trigger)
		} else {
			s.triggers[trigger.Type] = trigger
		}
		s.mu.Unlock()

	case bus.MessageSubmission:
		var sub Submission
		if err := json.Unmarshal(env.Data, &sub); err != nil {
			zap.L().Warn("[DutyManager] dropping malformed submission message", zap.Error(err))
			return
		}
		s.mu.Lock()
		s.upsertSubmissionLocked(sub)
		if rv, ok := s.reviews[sub.TaskID]; ok && rv.Status == ReviewRejected {
			s.reviews[sub.TaskID] = Review{Status: ReviewPending}
		}
		s.mu.Unlock()

	case bus.MessageClearSubmissions:
		s.mu.Lock()
		s.submissions = nil
		s.mu.Unlock()

	case bus.MessageReviewStatus:
		var msg reviewStatusMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			zap.L().Warn("[DutyManager] dropping malformed review message", zap.Error(err))
			return
		}
		s.mu.Lock()
		s.reviews[msg.TaskID] = Review{Status: msg.Status, ReviewedAt: msg.ReviewedAt, Reason: msg.Reason}
		if msg.Status == ReviewRejected {
			s.removeSubmissionLocked(msg.TaskID)
		}
		s.mu.Unlock()
	}
}

// Trigger returns the trigger for one service block, nil when idle.
func (s *Service) Trigger(t TriggerType) *Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	trigger := s.triggers[t]
	if trigger == nil {
		return nil
	}
	copied := *trigger
	return &copied
}

// Triggers returns the fired triggers of the business day.
func (s *Service) Triggers() []Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Trigger, 0, len(s.triggers))
	for _, t := range []TriggerType{TriggerLastCustomerLeftLunch, TriggerLastCustomerLeftDinner} {
		if trigger := s.triggers[t]; trigger != nil {
			out = append(out, *trigger)
		}
	}
	return out
}

// Submissions returns the current submission list.
func (s *Service) Submissions() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Submission, len(s.submissions))
	copy(out, s.submissions)
	return out
}

// Submission returns the current submission for a task, if any.
func (s *Service) Submission(taskID string) (Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.submissions {
		if sub.TaskID == taskID {
			return sub, true
		}
	}
	return Submission{}, false
}

// ReviewStatus returns the review verdict for a task, if any.
func (s *Service) ReviewStatus(taskID string) (Review, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rv, ok := s.reviews[taskID]
	return rv, ok
}

// Reviews returns the full review-status map.
func (s *Service) Reviews() map[string]Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Review, len(s.reviews))
	for k, v := range s.reviews {
		out[k] = v
	}
	return out
}

func (s *Service) upsertSubmissionLocked(sub Submission) {
	for i, existing := range s.submissions {
		if existing.TaskID == sub.TaskID {
			s.submissions[i] = sub
			return
		}
	}
	s.submissions = append(s.submissions, sub)
}

func (s *Service) removeSubmissionLocked(taskID string) {
	for i, sub := range s.submissions {
		if sub.TaskID == taskID {
			s.submissions = append(s.submissions[:i], s.submissions[i+1:]...)
			return
		}
	}
}

func (s *Service) broadcast(ctx context.Context, t bus.MessageType, v any) {
	env, err := bus.NewEnvelope(t, v)
	if err != nil {
		zap.L().Error("[DutyManager] failed to encode broadcast", zap.String("type", string(t)), zap.Error(err))
		return
	}
	if err := s.bus.Publish(ctx, env); err != nil {
		zap.L().Warn("[DutyManager] broadcast failed", zap.String("type", string(t)), zap.Error(err))
	}
}

var Module = fx.Module("dutymanager.service",
	fx.Provide(
		NewRepository,
		NewService,
	),
	fx.Invoke(RegisterSync),
)

// RegisterSync wires the reducer to the broadcast bus. Both transport
// adapters deliver through the same path.
func RegisterSync(b *bus.Bus, svc *Service) {
	b.Subscribe(svc.Apply)
}
