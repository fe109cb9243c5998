package store

import (
	"strings"

	"roofflow/api/internal/domain"
	"roofflow/api/internal/util"
)

// CreateGoal adds a quarterly goal owned by the acting user, due 75 days
// out and on track.
func (s *Store) CreateGoal(actor domain.User, title string) (domain.QuarterlyGoal, error) {
	if s.isClosed() {
		return domain.QuarterlyGoal{}, ErrClosed
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.QuarterlyGoal{}, ErrInvalidInput
	}

	now := s.now()
	goal := domain.QuarterlyGoal{
		ID:        util.NewID("gl"),
		Title:     title,
		OwnerID:   actor.ID,
		Status:    domain.GoalOnTrack,
		DueDate:   now.AddDate(0, 0, goalHorizonDays),
		CreatedAt: now,
	}

	s.mu.Lock()
	s.goals[goal.ID] = goal
	idx := s.indexer
	s.mu.Unlock()
	s.notify()

	if idx != nil {
		idx.IndexGoal(goal)
	}
	s.syncCreate(domain.ColGoals, goal.ID, goal, func() {
		delete(s.goals, goal.ID)
	})
	return goal, nil
}

// SetGoalStatus overwrites the status unconditionally; the three labels form
// a flat enum with no transition restrictions.
func (s *Store) SetGoalStatus(id, status string) (domain.QuarterlyGoal, error) {
	if s.isClosed() {
		return domain.QuarterlyGoal{}, ErrClosed
	}
	if !domain.ValidGoalStatus(status) {
		return domain.QuarterlyGoal{}, ErrInvalidInput
	}

	s.mu.Lock()
	goal, ok := s.goals[id]
	if !ok {
		s.mu.Unlock()
		return domain.QuarterlyGoal{}, ErrNotFound
	}
	prev := goal
	goal.Status = status
	s.goals[id] = goal
	s.mu.Unlock()
	s.notify()

	s.syncPatch(domain.ColGoals, id, map[string]any{"status": status}, func() {
		s.goals[id] = prev
	})
	return goal, nil
}

// SetGoalNotes patches the notes field only.
func (s *Store) SetGoalNotes(id, notes string) (domain.QuarterlyGoal, error) {
	if s.isClosed() {
		return domain.QuarterlyGoal{}, ErrClosed
	}

	s.mu.Lock()
	goal, ok := s.goals[id]
	if !ok {
		s.mu.Unlock()
		return domain.QuarterlyGoal{}, ErrNotFound
	}
	prev := goal
	goal.Notes = notes
	s.goals[id] = goal
	s.mu.Unlock()
	s.notify()

	s.syncPatch(domain.ColGoals, id, map[string]any{"notes": notes}, func() {
		s.goals[id] = prev
	})
	return goal, nil
}
