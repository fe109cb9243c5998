package domain

// Collection names shared by the reactive store and the document store.
// Each is scoped under a (companyId, teamId) tenant path when persisted.
const (
	ColTodos            = "todos"
	ColIssues           = "issues"
	ColGoals            = "goals"
	ColKpis             = "kpis"
	ColKpiEntries       = "kpiEntries"
	ColMeetingTemplates = "meetingTemplates"
	ColMeetingRuns      = "meetingRuns"
	ColMeetingFeedback  = "meetingFeedback"
	ColRoles            = "roles"
	ColUsers            = "users"
	ColVision           = "vision"
	ColFeedback         = "feedback"
)

// VisionDocID keys the singleton vision document.
const VisionDocID = "vision"

// Collections lists every synchronized collection in subscription order.
func Collections() []string {
	return []string{
		ColTodos, ColIssues, ColGoals, ColKpis, ColKpiEntries,
		ColMeetingTemplates, ColMeetingRuns, ColMeetingFeedback,
		ColRoles, ColUsers, ColVision, ColFeedback,
	}
}
