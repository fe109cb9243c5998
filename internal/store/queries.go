package store

import (
	"sort"

	"roofflow/api/internal/domain"
)

// Query methods return sorted copies of the snapshot. They never fail.

func (s *Store) Todos() []domain.TodoItem {
	s.mu.RLock()
	items := make([]domain.TodoItem, 0, len(s.todos))
	for _, t := range s.todos {
		items = append(items, t)
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items
}

func (s *Store) Todo(id string) (domain.TodoItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.todos[id]
	return t, ok
}

// Issues are ordered by queue position, then age.
func (s *Store) Issues() []domain.IssueItem {
	s.mu.RLock()
	items := make([]domain.IssueItem, 0, len(s.issues))
	for _, is := range s.issues {
		items = append(items, is)
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority < items[j].Priority
		}
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items
}

func (s *Store) Issue(id string) (domain.IssueItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	is, ok := s.issues[id]
	return is, ok
}

func (s *Store) Goals() []domain.QuarterlyGoal {
	s.mu.RLock()
	items := make([]domain.QuarterlyGoal, 0, len(s.goals))
	for _, g := range s.goals {
		items = append(items, g)
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items
}

func (s *Store) Goal(id string) (domain.QuarterlyGoal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[id]
	return g, ok
}

func (s *Store) Kpis() []domain.KpiDefinition {
	s.mu.RLock()
	items := make([]domain.KpiDefinition, 0, len(s.kpis))
	for _, k := range s.kpis {
		items = append(items, k)
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items
}

func (s *Store) Kpi(id string) (domain.KpiDefinition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.kpis[id]
	return k, ok
}

// KpiEntriesForWeek returns every entry recorded for one week key.
func (s *Store) KpiEntriesForWeek(weekKey string) []domain.KpiEntry {
	s.mu.RLock()
	items := make([]domain.KpiEntry, 0)
	for _, e := range s.kpiEntries {
		if e.WeekOf == weekKey {
			items = append(items, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].KpiID < items[j].KpiID })
	return items
}

// KpiEntryFor returns the unique entry for a (kpiID, weekKey) pair.
func (s *Store) KpiEntryFor(kpiID, weekKey string) (domain.KpiEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.kpiEntries {
		if e.KpiID == kpiID && e.WeekOf == weekKey {
			return e, true
		}
	}
	return domain.KpiEntry{}, false
}

func (s *Store) Users() []domain.User {
	s.mu.RLock()
	items := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		items = append(items, u)
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].DisplayName != items[j].DisplayName {
			return items[i].DisplayName < items[j].DisplayName
		}
		return items[i].ID < items[j].ID
	})
	return items
}

func (s *Store) User(id string) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *Store) UserByEmail(email string) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email && u.Active() {
			return u, true
		}
	}
	return domain.User{}, false
}

func (s *Store) Roles() []domain.Role {
	s.mu.RLock()
	items := make([]domain.Role, 0, len(s.roles))
	for _, r := range s.roles {
		items = append(items, r)
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID < items[j].ID
	})
	return items
}

func (s *Store) Role(id string) (domain.Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[id]
	return r, ok
}

// MeetingTemplate returns the team's agenda template, if one exists. When
// several exist the oldest wins, matching the original single-template UI.
func (s *Store) MeetingTemplate() (domain.MeetingTemplate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best domain.MeetingTemplate
	found := false
	for _, tpl := range s.templates {
		if !found || tpl.CreatedAt.Before(best.CreatedAt) ||
			(tpl.CreatedAt.Equal(best.CreatedAt) && tpl.ID < best.ID) {
			best = tpl
			found = true
		}
	}
	return best, found
}

// MeetingRun returns the run record for a week. Weeks without a record
// default to scheduled (sparse map, not a record per week).
func (s *Store) MeetingRun(weekKey string) domain.MeetingRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if run, ok := s.runs[weekKey]; ok {
		return run
	}
	return domain.MeetingRun{WeekOf: weekKey, Status: domain.RunScheduled}
}

func (s *Store) MeetingFeedbackFor(weekKey string) (domain.MeetingFeedback, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fb, ok := s.meetingFeed[weekKey]
	return fb, ok
}

func (s *Store) Vision() (domain.Vision, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vision, s.hasVision
}

func (s *Store) FeedbackItems() []domain.FeedbackItem {
	s.mu.RLock()
	items := make([]domain.FeedbackItem, 0, len(s.feedback))
	for _, f := range s.feedback {
		items = append(items, f)
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items
}
