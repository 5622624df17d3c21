package workday

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Role identifies which staff group a task list belongs to.
type Role string

const (
	RoleManager      Role = "manager"
	RoleDutyManager  Role = "duty_manager"
	RoleChef         Role = "chef"
	RoleFrontOfHouse Role = "front_of_house"
)

// UploadKind is the evidence a task requires on completion.
type UploadKind string

const (
	UploadNone   UploadKind = "none"
	UploadPhoto  UploadKind = "photo"
	UploadAudio  UploadKind = "audio"
	UploadText   UploadKind = "text"
	UploadList   UploadKind = "list"
	UploadReview UploadKind = "review"
)

// Task is a checklist item defined per period per role. AutoGenerated tasks
// (review/audit) are synthesized at runtime and never appear in the static
// table.
type Task struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Role          Role       `json:"role"`
	Upload        UploadKind `json:"uploadRequirement"`
	LinkedTaskIDs []string   `json:"linkedTaskIds,omitempty"`
	AutoGenerated bool       `json:"autoGenerated"`
	Notice        bool       `json:"isNotice"`
}

// ClockTime is a wall-clock instant within a day ("HH:MM").
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses the "HH:MM" form used by the period table.
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return ClockTime{}, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return ClockTime{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return ClockTime{}, fmt.Errorf("invalid minute in %q", s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

func (c ClockTime) Minutes() int { return c.Hour*60 + c.Minute }

func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

func minutesOfDay(t time.Time) int { return t.Hour()*60 + t.Minute() }

// Period is one named phase of the restaurant's day. Immutable once loaded;
// event-driven periods have no End and only exit via an explicit business
// event or manual advance.
type Period struct {
	ID          string
	DisplayName string
	Start       ClockTime
	End         ClockTime
	EventDriven bool
	TasksByRole map[Role][]Task
}

// Contains reports whether the clock reading falls inside [Start, End).
// Event-driven periods have no natural window beyond their start.
func (p *Period) Contains(t time.Time) bool {
	if p.EventDriven {
		return false
	}
	m := minutesOfDay(t)
	return m >= p.Start.Minutes() && m < p.End.Minutes()
}

// AllTasks flattens the per-role task lists in a stable role order.
func (p *Period) AllTasks() []Task {
	var out []Task
	for _, role := range []Role{RoleManager, RoleDutyManager, RoleChef, RoleFrontOfHouse} {
		out = append(out, p.TasksByRole[role]...)
	}
	return out
}

// Tasks returns the static task list for one role.
func (p *Period) Tasks(role Role) []Task {
	return p.TasksByRole[role]
}
