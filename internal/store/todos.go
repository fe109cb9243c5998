package store

import (
	"strings"
	"time"

	"roofflow/api/internal/domain"
	"roofflow/api/internal/util"
)

// CreateTodo adds an open to-do owned by the acting user.
func (s *Store) CreateTodo(actor domain.User, title string) (domain.TodoItem, error) {
	if s.isClosed() {
		return domain.TodoItem{}, ErrClosed
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.TodoItem{}, ErrInvalidInput
	}

	todo := domain.TodoItem{
		ID:        util.NewID("td"),
		Title:     title,
		OwnerID:   actor.ID,
		Status:    domain.TodoOpen,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.todos[todo.ID] = todo
	idx := s.indexer
	s.mu.Unlock()
	s.notify()

	if idx != nil {
		idx.IndexTodo(todo)
	}
	s.syncCreate(domain.ColTodos, todo.ID, todo, func() {
		delete(s.todos, todo.ID)
	})
	return todo, nil
}

// CreateExternalTodo ingests a to-do from a chat integration. Ingestion is
// idempotent on the origin message reference: replaying the same message
// returns the existing record instead of appending a duplicate.
func (s *Store) CreateExternalTodo(title string, meta domain.SourceMeta) (domain.TodoItem, error) {
	if s.isClosed() {
		return domain.TodoItem{}, ErrClosed
	}
	title = strings.TrimSpace(title)
	if title == "" || meta.MessageRef == "" {
		return domain.TodoItem{}, ErrInvalidInput
	}

	s.mu.Lock()
	for _, existing := range s.todos {
		if existing.SourceMeta != nil && existing.SourceMeta.MessageRef == meta.MessageRef {
			s.mu.Unlock()
			return existing, nil
		}
	}
	metaCopy := meta
	todo := domain.TodoItem{
		ID:         util.NewID("td"),
		Title:      title,
		Status:     domain.TodoOpen,
		Source:     domain.TodoSourceExternal,
		SourceMeta: &metaCopy,
		CreatedAt:  s.now(),
	}
	s.todos[todo.ID] = todo
	idx := s.indexer
	s.mu.Unlock()
	s.notify()

	if idx != nil {
		idx.IndexTodo(todo)
	}
	s.syncCreate(domain.ColTodos, todo.ID, todo, func() {
		delete(s.todos, todo.ID)
	})
	return todo, nil
}

// ToggleTodo flips open and done. Toggling twice restores the original
// record; no other field changes.
func (s *Store) ToggleTodo(id string) (domain.TodoItem, error) {
	if s.isClosed() {
		return domain.TodoItem{}, ErrClosed
	}

	s.mu.Lock()
	todo, ok := s.todos[id]
	if !ok {
		s.mu.Unlock()
		return domain.TodoItem{}, ErrNotFound
	}
	prev := todo
	if todo.Status == domain.TodoOpen {
		todo.Status = domain.TodoDone
	} else {
		todo.Status = domain.TodoOpen
	}
	s.todos[id] = todo
	s.mu.Unlock()
	s.notify()

	s.syncPatch(domain.ColTodos, id, map[string]any{"status": todo.Status}, func() {
		s.todos[id] = prev
	})
	return todo, nil
}

// TodoPatch carries targeted field updates; nil fields are untouched.
type TodoPatch struct {
	Title        *string
	Notes        *string
	DueDate      *time.Time
	ClearDueDate bool
}

func (s *Store) UpdateTodo(id string, patch TodoPatch) (domain.TodoItem, error) {
	if s.isClosed() {
		return domain.TodoItem{}, ErrClosed
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return domain.TodoItem{}, ErrInvalidInput
	}

	s.mu.Lock()
	todo, ok := s.todos[id]
	if !ok {
		s.mu.Unlock()
		return domain.TodoItem{}, ErrNotFound
	}
	prev := todo
	fields := map[string]any{}
	if patch.Title != nil {
		todo.Title = strings.TrimSpace(*patch.Title)
		fields["title"] = todo.Title
	}
	if patch.Notes != nil {
		todo.Notes = *patch.Notes
		fields["notes"] = todo.Notes
	}
	if patch.ClearDueDate {
		todo.DueDate = nil
		fields["dueDate"] = nil
	} else if patch.DueDate != nil {
		due := *patch.DueDate
		todo.DueDate = &due
		fields["dueDate"] = due
	}
	s.todos[id] = todo
	idx := s.indexer
	s.mu.Unlock()
	s.notify()

	if idx != nil {
		idx.IndexTodo(todo)
	}
	if len(fields) > 0 {
		s.syncPatch(domain.ColTodos, id, fields, func() {
			s.todos[id] = prev
		})
	}
	return todo, nil
}
