package store

import (
	"strings"

	"roofflow/api/internal/domain"
	"roofflow/api/internal/util"
)

// CreateIssue appends an open issue at the back of the priority queue:
// priority = min(cap, highest existing + 1), so repeated creates yield
// 1, 2, 3, ... up to the cap and then stay there.
func (s *Store) CreateIssue(title string) (domain.IssueItem, error) {
	if s.isClosed() {
		return domain.IssueItem{}, ErrClosed
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.IssueItem{}, ErrInvalidInput
	}

	s.mu.Lock()
	highest := 0
	for _, is := range s.issues {
		if is.Priority > highest {
			highest = is.Priority
		}
	}
	priority := highest + 1
	if priority > s.maxPriority {
		priority = s.maxPriority
	}
	issue := domain.IssueItem{
		ID:        util.NewID("is"),
		Title:     title,
		Status:    domain.IssueOpen,
		Priority:  priority,
		CreatedAt: s.now(),
	}
	s.issues[issue.ID] = issue
	idx := s.indexer
	s.mu.Unlock()
	s.notify()

	if idx != nil {
		idx.IndexIssue(issue)
	}
	s.syncCreate(domain.ColIssues, issue.ID, issue, func() {
		delete(s.issues, issue.ID)
	})
	return issue, nil
}

// ResolveIssue marks an issue resolved. Resolved issues are retained and
// reversible via ReopenIssue.
func (s *Store) ResolveIssue(id string) (domain.IssueItem, error) {
	return s.setIssueStatus(id, domain.IssueResolved)
}

// ReopenIssue is the symmetric inverse of ResolveIssue.
func (s *Store) ReopenIssue(id string) (domain.IssueItem, error) {
	return s.setIssueStatus(id, domain.IssueOpen)
}

func (s *Store) setIssueStatus(id, status string) (domain.IssueItem, error) {
	if s.isClosed() {
		return domain.IssueItem{}, ErrClosed
	}

	s.mu.Lock()
	issue, ok := s.issues[id]
	if !ok {
		s.mu.Unlock()
		return domain.IssueItem{}, ErrNotFound
	}
	prev := issue
	issue.Status = status
	s.issues[id] = issue
	s.mu.Unlock()
	s.notify()

	s.syncPatch(domain.ColIssues, id, map[string]any{"status": status}, func() {
		s.issues[id] = prev
	})
	return issue, nil
}

// SetIssueNotes patches the notes field only.
func (s *Store) SetIssueNotes(id, notes string) (domain.IssueItem, error) {
	if s.isClosed() {
		return domain.IssueItem{}, ErrClosed
	}

	s.mu.Lock()
	issue, ok := s.issues[id]
	if !ok {
		s.mu.Unlock()
		return domain.IssueItem{}, ErrNotFound
	}
	prev := issue
	issue.Notes = notes
	s.issues[id] = issue
	s.mu.Unlock()
	s.notify()

	s.syncPatch(domain.ColIssues, id, map[string]any{"notes": notes}, func() {
		s.issues[id] = prev
	})
	return issue, nil
}
