package workday

import (
	"fmt"
	"time"

	"shiftops-controlplane/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Service answers "which operational period is active" from the static
// period table. Event-driven progression (pre-closing, closing) is tracked
// by the session, not derivable from the clock; the session hands it in as
// the override id.
type Service struct {
	periods []*Period
	index   map[string]*Period
}

type Params struct {
	fx.In
	Config *config.Config
}

func NewService(p Params) (*Service, error) {
	table, err := buildTable(p.Config.Workday.Periods)
	if err != nil {
		return nil, fmt.Errorf("period table: %w", err)
	}
	zap.L().Info("[Workday] period table loaded", zap.Int("periods", len(table.periods)))
	return table, nil
}

// buildTable validates the configured period table. Malformed tables are
// configuration errors and abort startup.
func buildTable(configs []config.PeriodConfig) (*Service, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("no periods configured")
	}

	s := &Service{index: make(map[string]*Period)}
	for _, pc := range configs {
		if pc.ID == "" {
			return nil, fmt.Errorf("period with empty id")
		}
		if _, dup := s.index[pc.ID]; dup {
			return nil, fmt.Errorf("duplicate period id %q", pc.ID)
		}

		period := &Period{
			ID:          pc.ID,
			DisplayName: pc.DisplayName,
			EventDriven: pc.EventDriven,
			TasksByRole: make(map[Role][]Task),
		}

		if pc.Start != "" {
			start, err := ParseClockTime(pc.Start)
			if err != nil {
				return nil, fmt.Errorf("period %q: %w", pc.ID, err)
			}
			period.Start = start
		}

		if !pc.EventDriven {
			end, err := ParseClockTime(pc.End)
			if err != nil {
				return nil, fmt.Errorf("period %q: %w", pc.ID, err)
			}
			if end.Minutes() <= period.Start.Minutes() {
				return nil, fmt.Errorf("period %q ends before it starts", pc.ID)
			}
			period.End = end
		}

		for roleName, tasks := range pc.Tasks {
			role := Role(roleName)
			for _, tc := range tasks {
				upload := UploadKind(tc.Upload)
				if upload == "" {
					upload = UploadNone
				}
				period.TasksByRole[role] = append(period.TasksByRole[role], Task{
					ID:            tc.ID,
					Title:         tc.Title,
					Role:          role,
					Upload:        upload,
					LinkedTaskIDs: tc.LinkedTasks,
					Notice:        tc.Notice,
				})
			}
		}

		s.periods = append(s.periods, period)
		s.index[pc.ID] = period
	}

	return s, nil
}

// CurrentPeriod maps a clock reading to the active period.
//
// waitingForNextDay keeps the dashboard idle after closing confirmation;
// the wait ends only when the clock re-enters the opening period. A manual
// override freezes calendar progression on the overridden period until
// natural time catches up with it.
func (s *Service) CurrentPeriod(clock time.Time, overrideID string, waitingForNextDay bool) *Period {
	if waitingForNextDay {
		if opening := s.Opening(); opening != nil && opening.Contains(clock) {
			return opening
		}
		return nil
	}

	natural := s.natural(clock)

	if overrideID != "" {
		if natural != nil && natural.ID == overrideID {
			return natural // caught up; caller clears the override
		}
		if p, ok := s.index[overrideID]; ok {
			return p
		}
	}

	return natural
}

// natural is the pure clock lookup: the timed period containing clock, or
// the first event-driven period once every timed window has passed (late
// evening through to next opening).
func (s *Service) natural(clock time.Time) *Period {
	for _, p := range s.periods {
		if p.Contains(clock) {
			return p
		}
	}

	for _, p := range s.periods {
		if p.EventDriven {
			return p
		}
	}
	return nil
}

// NextPeriod returns the fixed-sequence successor of the current period.
// Display only; never drives state transitions.
func (s *Service) NextPeriod(clock time.Time) *Period {
	current := s.natural(clock)
	if current == nil {
		return nil
	}
	for i, p := range s.periods {
		if p.ID == current.ID && i+1 < len(s.periods) {
			return s.periods[i+1]
		}
	}
	return nil
}

// Next returns the period after the given one in table order.
func (s *Service) Next(id string) *Period {
	for i, p := range s.periods {
		if p.ID == id && i+1 < len(s.periods) {
			return s.periods[i+1]
		}
	}
	return nil
}

// Period resolves a period id, nil when unknown.
func (s *Service) Period(id string) *Period {
	return s.index[id]
}

// Opening is the first period of the day.
func (s *Service) Opening() *Period {
	if len(s.periods) == 0 {
		return nil
	}
	return s.periods[0]
}

// Sequence exposes the full table in day order.
func (s *Service) Sequence() []*Period {
	return s.periods
}

var Module = fx.Module("workday.service",
	fx.Provide(NewService),
)
