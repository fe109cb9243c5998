// Package domain holds the Roof Flow entity model. Types here are pure data;
// all behavior lives in the store and its collaborators.
package domain

import "time"

// Todo status values.
const (
	TodoOpen = "open"
	TodoDone = "done"
)

// Issue status values.
const (
	IssueOpen     = "open"
	IssueResolved = "resolved"
)

// Goal status values. Flat enum, any state reachable from any other.
const (
	GoalOnTrack  = "onTrack"
	GoalOffTrack = "offTrack"
	GoalDone     = "done"
)

// KPI units.
const (
	UnitCount   = "count"
	UnitPercent = "%"
	UnitDollars = "$"
)

// Meeting run status values. Weeks without a record default to scheduled.
const (
	RunScheduled = "scheduled"
	RunCanceled  = "canceled"
)

// TodoSourceExternal marks todos ingested from a chat integration rather
// than created by a user action.
const TodoSourceExternal = "external"

type User struct {
	ID            string     `json:"-"`
	DisplayName   string     `json:"displayName"`
	Email         string     `json:"email,omitempty"`
	PasswordHash  string     `json:"passwordHash,omitempty"`
	RoleID        string     `json:"roleId"`
	DeactivatedAt *time.Time `json:"deactivatedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Active reports whether the user has not been soft-deleted.
func (u User) Active() bool { return u.DeactivatedAt == nil }

type Role struct {
	ID              string    `json:"-"`
	Name            string    `json:"name"`
	PermissionCodes []string  `json:"permissionCodes"`
	ParentRoleID    *string   `json:"parentRoleId,omitempty"`
	IsSuperAdmin    bool      `json:"isSuperAdmin,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// SourceMeta describes where an externally ingested todo came from.
// MessageRef is the idempotency key for ingestion.
type SourceMeta struct {
	Channel    string `json:"channel,omitempty"`
	MessageRef string `json:"messageRef,omitempty"`
	SenderName string `json:"senderName,omitempty"`
}

type TodoItem struct {
	ID         string      `json:"-"`
	Title      string      `json:"title"`
	OwnerID    string      `json:"ownerId"`
	DueDate    *time.Time  `json:"dueDate,omitempty"`
	Status     string      `json:"status"`
	Notes      string      `json:"notes,omitempty"`
	Source     string      `json:"source,omitempty"`
	SourceMeta *SourceMeta `json:"sourceMeta,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

type IssueItem struct {
	ID        string    `json:"-"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Priority  int       `json:"priority"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type QuarterlyGoal struct {
	ID        string    `json:"-"`
	Title     string    `json:"title"`
	OwnerID   string    `json:"ownerId"`
	Status    string    `json:"status"`
	DueDate   time.Time `json:"dueDate"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type KpiDefinition struct {
	ID        string    `json:"-"`
	Title     string    `json:"title"`
	OwnerID   string    `json:"ownerId"`
	Goal      float64   `json:"goal"`
	Unit      string    `json:"unit"`
	CreatedAt time.Time `json:"createdAt"`
}

// KpiEntry is composite-unique on (KpiID, WeekOf); writes for an existing
// pair overwrite the value rather than appending.
type KpiEntry struct {
	ID        string    `json:"-"`
	KpiID     string    `json:"kpiId"`
	WeekOf    string    `json:"weekOf"`
	Value     float64   `json:"value"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type MeetingSection struct {
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	Title           string `json:"title"`
	DurationMinutes int    `json:"durationMinutes"`
}

type MeetingSchedule struct {
	Weekday   time.Weekday `json:"weekday"`
	StartTime string       `json:"startTime"`
	Recurring bool         `json:"recurring"`
}

// MeetingTemplate sections are ordered; the order drives meeting-run
// navigation.
type MeetingTemplate struct {
	ID        string           `json:"-"`
	Title     string           `json:"title"`
	Sections  []MeetingSection `json:"sections"`
	Schedule  *MeetingSchedule `json:"schedule,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// MeetingRun is the per-week meeting record, keyed by week key.
type MeetingRun struct {
	WeekOf string `json:"-"`
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

type MeetingFeedback struct {
	WeekOf    string    `json:"-"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Vision is a singleton document.
type Vision struct {
	Purpose    string   `json:"purpose"`
	CoreValues []string `json:"coreValues"`
	Focus      string   `json:"focus"`
}

// FeedbackItem is append-only product feedback.
type FeedbackItem struct {
	ID        string    `json:"-"`
	UserName  string    `json:"userName"`
	Page      string    `json:"page"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

func ValidGoalStatus(s string) bool {
	return s == GoalOnTrack || s == GoalOffTrack || s == GoalDone
}

func ValidRunStatus(s string) bool {
	return s == RunScheduled || s == RunCanceled
}

func ValidUnit(s string) bool {
	return s == UnitCount || s == UnitPercent || s == UnitDollars
}
