package session

import (
	"context"

	"shiftops-controlplane/pkg/config"
	"shiftops-controlplane/services/dutymanager"
	"shiftops-controlplane/services/evidence"
	"shiftops-controlplane/services/snapshot"
	"shiftops-controlplane/services/workday"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("session.module",
	fx.Provide(
		ProvideSession,
		NewTicker,
		NewHandler,
	),
	fx.Invoke(
		Restore,
		StartTicker,
		RegisterRoutes,
	),
)

type SessionParams struct {
	fx.In
	Config    *config.Config
	Calendar  *workday.Service
	Duty      *dutymanager.Service
	Snapshots *snapshot.Service

	Evidence evidence.Store `optional:"true"`
}

func ProvideSession(p SessionParams) *Session {
	role := workday.RoleManager
	if len(p.Config.Workday.Roles) > 0 {
		role = workday.Role(p.Config.Workday.Roles[0])
	}

	openingHour := p.Config.Workday.OpeningHour
	if openingHour == 0 {
		if opening := p.Calendar.Opening(); opening != nil {
			openingHour = opening.Start.Hour
		}
	}

	return New(Options{
		Role:        role,
		Calendar:    p.Calendar,
		Duty:        p.Duty,
		Snapshots:   p.Snapshots,
		Evidence:    p.Evidence,
		OpeningHour: openingHour,
	})
}

// Restore rehydrates the session from the last persisted snapshot and
// today's duty-manager submissions on startup.
func Restore(lc fx.Lifecycle, s *Session) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := s.RestoreState(ctx); err != nil {
				// Transient: a failed load means a fresh-day start, not a
				// startup abort.
				zap.L().Warn("[Session] snapshot restore failed", zap.Error(err))
			}
			if err := s.Duty().Hydrate(ctx, "", dutymanager.Today(s.Now())); err != nil {
				zap.L().Warn("[Session] submission hydrate failed", zap.Error(err))
			}
			return nil
		},
	})
}
