package app

import (
	"roofflow/api/internal/domain"
)

// View helpers re-attach document IDs, which the domain types keep out
// of their persisted field sets.

func todoView(t domain.TodoItem) map[string]any {
	v := map[string]any{
		"id":        t.ID,
		"title":     t.Title,
		"ownerId":   t.OwnerID,
		"status":    t.Status,
		"createdAt": t.CreatedAt,
	}
	if t.Notes != "" {
		v["notes"] = t.Notes
	}
	if t.DueDate != nil {
		v["dueDate"] = t.DueDate
	}
	if t.Source != "" {
		v["source"] = t.Source
	}
	if t.SourceMeta != nil {
		v["sourceMeta"] = t.SourceMeta
	}
	return v
}

func issueView(is domain.IssueItem) map[string]any {
	v := map[string]any{
		"id":        is.ID,
		"title":     is.Title,
		"status":    is.Status,
		"priority":  is.Priority,
		"createdAt": is.CreatedAt,
	}
	if is.Notes != "" {
		v["notes"] = is.Notes
	}
	return v
}

func goalView(g domain.QuarterlyGoal) map[string]any {
	v := map[string]any{
		"id":        g.ID,
		"title":     g.Title,
		"ownerId":   g.OwnerID,
		"status":    g.Status,
		"dueDate":   g.DueDate,
		"createdAt": g.CreatedAt,
	}
	if g.Notes != "" {
		v["notes"] = g.Notes
	}
	return v
}

func kpiView(k domain.KpiDefinition) map[string]any {
	return map[string]any{
		"id":        k.ID,
		"title":     k.Title,
		"ownerId":   k.OwnerID,
		"goal":      k.Goal,
		"unit":      k.Unit,
		"createdAt": k.CreatedAt,
	}
}

func kpiEntryView(e domain.KpiEntry) map[string]any {
	v := map[string]any{
		"id":     e.ID,
		"kpiId":  e.KpiID,
		"weekOf": e.WeekOf,
		"value":  e.Value,
	}
	if e.Note != "" {
		v["note"] = e.Note
	}
	return v
}

func userView(u domain.User) map[string]any {
	v := map[string]any{
		"id":          u.ID,
		"displayName": u.DisplayName,
		"roleId":      u.RoleID,
		"active":      u.Active(),
		"createdAt":   u.CreatedAt,
	}
	if u.Email != "" {
		v["email"] = u.Email
	}
	if u.DeactivatedAt != nil {
		v["deactivatedAt"] = u.DeactivatedAt
	}
	return v
}

func roleView(r domain.Role) map[string]any {
	v := map[string]any{
		"id":              r.ID,
		"name":            r.Name,
		"permissionCodes": r.PermissionCodes,
		"isSuperAdmin":    r.IsSuperAdmin,
		"createdAt":       r.CreatedAt,
	}
	if r.ParentRoleID != nil {
		v["parentRoleId"] = *r.ParentRoleID
	}
	return v
}

func templateView(t domain.MeetingTemplate) map[string]any {
	v := map[string]any{
		"id":        t.ID,
		"title":     t.Title,
		"sections":  t.Sections,
		"createdAt": t.CreatedAt,
	}
	if t.Schedule != nil {
		v["schedule"] = t.Schedule
	}
	return v
}

func runView(r domain.MeetingRun) map[string]any {
	return map[string]any{
		"weekOf": r.WeekOf,
		"status": r.Status,
		"notes":  r.Notes,
	}
}

func meetingFeedbackView(f domain.MeetingFeedback) map[string]any {
	return map[string]any{
		"weekOf":    f.WeekOf,
		"rating":    f.Rating,
		"comment":   f.Comment,
		"createdAt": f.CreatedAt,
	}
}

func feedbackView(f domain.FeedbackItem) map[string]any {
	return map[string]any{
		"id":        f.ID,
		"userName":  f.UserName,
		"page":      f.Page,
		"message":   f.Message,
		"createdAt": f.CreatedAt,
	}
}

func todoViews(items []domain.TodoItem) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, t := range items {
		out = append(out, todoView(t))
	}
	return out
}

func issueViews(items []domain.IssueItem) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, is := range items {
		out = append(out, issueView(is))
	}
	return out
}

func goalViews(items []domain.QuarterlyGoal) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, g := range items {
		out = append(out, goalView(g))
	}
	return out
}

func kpiViews(items []domain.KpiDefinition) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, k := range items {
		out = append(out, kpiView(k))
	}
	return out
}

func kpiEntryViews(items []domain.KpiEntry) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, e := range items {
		out = append(out, kpiEntryView(e))
	}
	return out
}

func userViews(items []domain.User) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, u := range items {
		out = append(out, userView(u))
	}
	return out
}

func roleViews(items []domain.Role) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, r := range items {
		out = append(out, roleView(r))
	}
	return out
}

func feedbackViews(items []domain.FeedbackItem) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, f := range items {
		out = append(out, feedbackView(f))
	}
	return out
}
