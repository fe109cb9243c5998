package store

import (
	"context"
	"fmt"

	"roofflow/api/internal/domain"
	"roofflow/api/internal/perm"
	"roofflow/api/internal/util"
	"roofflow/api/internal/week"
)

// seed populates starter data for standalone mode so the dashboard is usable
// without a remote backend.
func (s *Store) seed() {
	now := s.now()

	ownerRole := domain.Role{
		ID:           util.NewID("rl"),
		Name:         perm.OwnerRoleName,
		IsSuperAdmin: true,
		CreatedAt:    now,
	}
	opsRole := domain.Role{
		ID:   util.NewID("rl"),
		Name: "Operations Manager",
		PermissionCodes: []string{
			string(perm.RunMeeting), string(perm.EditScorecard),
			string(perm.ManageTodos), string(perm.ManageIssues), string(perm.ManageGoals),
		},
		ParentRoleID: &ownerRole.ID,
		CreatedAt:    now,
	}
	crewRole := domain.Role{
		ID:              util.NewID("rl"),
		Name:            "Crew Lead",
		PermissionCodes: []string{string(perm.ManageTodos)},
		ParentRoleID:    &opsRole.ID,
		CreatedAt:       now,
	}
	s.roles[ownerRole.ID] = ownerRole
	s.roles[opsRole.ID] = opsRole
	s.roles[crewRole.ID] = crewRole

	owner := domain.User{
		ID:           util.NewID("usr"),
		DisplayName:  "Dana Whitfield",
		Email:        "dana@roofflow.local",
		RoleID:       ownerRole.ID,
		PasswordHash: s.ownerHash,
		CreatedAt:    now,
	}
	ops := domain.User{
		ID:          util.NewID("usr"),
		DisplayName: "Miguel Santos",
		Email:       "miguel@roofflow.local",
		RoleID:      opsRole.ID,
		CreatedAt:   now,
	}
	s.users[owner.ID] = owner
	s.users[ops.ID] = ops

	// Classic L10 agenda.
	tpl := domain.MeetingTemplate{
		ID:    util.NewID("mt"),
		Title: "Weekly Leadership Meeting",
		Sections: []domain.MeetingSection{
			{ID: util.NewID("sec"), Kind: "segue", Title: "Segue", DurationMinutes: 5},
			{ID: util.NewID("sec"), Kind: "scorecard", Title: "Scorecard Review", DurationMinutes: 5},
			{ID: util.NewID("sec"), Kind: "goals", Title: "Quarterly Goals", DurationMinutes: 5},
			{ID: util.NewID("sec"), Kind: "headlines", Title: "Customer & Employee Headlines", DurationMinutes: 5},
			{ID: util.NewID("sec"), Kind: "todos", Title: "To-Do List", DurationMinutes: 5},
			{ID: util.NewID("sec"), Kind: "issues", Title: "Identify, Discuss, Solve", DurationMinutes: 60},
			{ID: util.NewID("sec"), Kind: "conclude", Title: "Conclude", DurationMinutes: 5},
		},
		CreatedAt: now,
	}
	s.templates[tpl.ID] = tpl

	s.vision = domain.Vision{
		Purpose:    "Every roof done right, every customer kept for life.",
		CoreValues: []string{"Do what you say", "Own the outcome", "Leave it cleaner"},
		Focus:      "Residential re-roofs in the metro area",
	}
	s.hasVision = true

	jobsKpi := domain.KpiDefinition{
		ID:        util.NewID("kpi"),
		Title:     "Jobs Completed",
		OwnerID:   ops.ID,
		Goal:      8,
		Unit:      domain.UnitCount,
		CreatedAt: now,
	}
	closeKpi := domain.KpiDefinition{
		ID:        util.NewID("kpi"),
		Title:     "Estimate Close Rate",
		OwnerID:   owner.ID,
		Goal:      40,
		Unit:      domain.UnitPercent,
		CreatedAt: now,
	}
	s.kpis[jobsKpi.ID] = jobsKpi
	s.kpis[closeKpi.ID] = closeKpi

	entry := domain.KpiEntry{
		ID:        util.NewID("ke"),
		KpiID:     jobsKpi.ID,
		WeekOf:    week.Key(now),
		Value:     6,
		CreatedAt: now,
	}
	s.kpiEntries[entry.ID] = entry

	todo := domain.TodoItem{
		ID:        util.NewID("td"),
		Title:     "Order materials for the Hillcrest job",
		OwnerID:   ops.ID,
		Status:    domain.TodoOpen,
		CreatedAt: now,
	}
	s.todos[todo.ID] = todo

	issue := domain.IssueItem{
		ID:        util.NewID("is"),
		Title:     "Crew B short-staffed on Fridays",
		Status:    domain.IssueOpen,
		Priority:  1,
		CreatedAt: now,
	}
	s.issues[issue.ID] = issue
}

// pushSeed writes the just-seeded snapshot through to the remote so a fresh
// tenant ends up with the same starter data a standalone store gets. Writes
// are synchronous: a roster that never lands means nobody can sign in.
// A competing first run converges through inbound reloads.
func (s *Store) pushSeed() error {
	type doc struct {
		collection string
		id         string
		entity     any
	}
	var docs []doc

	s.mu.RLock()
	for id, role := range s.roles {
		docs = append(docs, doc{domain.ColRoles, id, role})
	}
	for id, user := range s.users {
		docs = append(docs, doc{domain.ColUsers, id, user})
	}
	for id, tpl := range s.templates {
		docs = append(docs, doc{domain.ColMeetingTemplates, id, tpl})
	}
	for id, kpi := range s.kpis {
		docs = append(docs, doc{domain.ColKpis, id, kpi})
	}
	for id, entry := range s.kpiEntries {
		docs = append(docs, doc{domain.ColKpiEntries, id, entry})
	}
	for id, todo := range s.todos {
		docs = append(docs, doc{domain.ColTodos, id, todo})
	}
	for id, issue := range s.issues {
		docs = append(docs, doc{domain.ColIssues, id, issue})
	}
	if s.hasVision {
		docs = append(docs, doc{domain.ColVision, domain.VisionDocID, s.vision})
	}
	s.mu.RUnlock()

	for _, d := range docs {
		ctx, cancel := context.WithTimeout(context.Background(), s.syncTimeout)
		err := s.remote.Create(ctx, d.collection, d.id, toFields(d.entity))
		cancel()
		if err != nil {
			return fmt.Errorf("seed %s/%s: %w", d.collection, d.id, err)
		}
	}
	return nil
}
