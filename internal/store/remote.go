package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"roofflow/api/internal/docstore"
	"roofflow/api/internal/domain"
)

// toFields flattens an entity into document fields. The entity id never
// appears in the fields; it is the document key.
func toFields(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}

// decodeDoc reconstitutes an entity from document fields. The caller assigns
// the id from the document key afterwards.
func decodeDoc[T any](doc docstore.Document) (T, error) {
	var v T
	raw, err := json.Marshal(doc.Fields)
	if err != nil {
		return v, fmt.Errorf("re-marshal fields: %w", err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	return v, nil
}

// syncCreate writes a new document through to the remote store without
// blocking the caller. On failure the optimistic local record is rolled back
// via restore and the error is reported through OnSyncError.
func (s *Store) syncCreate(collection, id string, entity any, restore func()) {
	if s.remote == nil {
		return
	}
	fields := toFields(entity)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.syncTimeout)
		defer cancel()
		if err := s.remote.Create(ctx, collection, id, fields); err != nil {
			s.rollback("create "+collection+"/"+id, err, restore)
		}
	}()
}

// syncPatch issues a minimal-field merge patch; fields not in the patch are
// untouched remotely.
func (s *Store) syncPatch(collection, id string, partial map[string]any, restore func()) {
	if s.remote == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.syncTimeout)
		defer cancel()
		if err := s.remote.MergePatch(ctx, collection, id, partial); err != nil {
			s.rollback("patch "+collection+"/"+id, err, restore)
		}
	}()
}

func (s *Store) syncDelete(collection, id string, restore func()) {
	if s.remote == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.syncTimeout)
		defer cancel()
		if err := s.remote.Delete(ctx, collection, id); err != nil {
			s.rollback("delete "+collection+"/"+id, err, restore)
		}
	}()
}

func (s *Store) rollback(op string, err error, restore func()) {
	log.Printf("store: sync %s failed, rolling back: %v", op, err)
	if restore != nil {
		s.mu.Lock()
		restore()
		s.mu.Unlock()
		s.notify()
	}
	if s.onSyncError != nil {
		s.onSyncError(op, err)
	}
}

// attach opens one inbound subscription per collection. Each inbound event
// delivers the authoritative full set, applied as per-id upsert/delete
// against the indexed maps.
func (s *Store) attach() error {
	handlers := []struct {
		collection string
		apply      func([]docstore.Document)
	}{
		{domain.ColTodos, applyInbound(s, func() map[string]domain.TodoItem { return s.todos }, func(v *domain.TodoItem, id string) { v.ID = id })},
		{domain.ColIssues, applyInbound(s, func() map[string]domain.IssueItem { return s.issues }, func(v *domain.IssueItem, id string) { v.ID = id })},
		{domain.ColGoals, applyInbound(s, func() map[string]domain.QuarterlyGoal { return s.goals }, func(v *domain.QuarterlyGoal, id string) { v.ID = id })},
		{domain.ColKpis, applyInbound(s, func() map[string]domain.KpiDefinition { return s.kpis }, func(v *domain.KpiDefinition, id string) { v.ID = id })},
		{domain.ColKpiEntries, applyInbound(s, func() map[string]domain.KpiEntry { return s.kpiEntries }, func(v *domain.KpiEntry, id string) { v.ID = id })},
		{domain.ColMeetingTemplates, applyInbound(s, func() map[string]domain.MeetingTemplate { return s.templates }, func(v *domain.MeetingTemplate, id string) { v.ID = id })},
		{domain.ColMeetingRuns, applyInbound(s, func() map[string]domain.MeetingRun { return s.runs }, func(v *domain.MeetingRun, id string) { v.WeekOf = id })},
		{domain.ColMeetingFeedback, applyInbound(s, func() map[string]domain.MeetingFeedback { return s.meetingFeed }, func(v *domain.MeetingFeedback, id string) { v.WeekOf = id })},
		{domain.ColRoles, applyInbound(s, func() map[string]domain.Role { return s.roles }, func(v *domain.Role, id string) { v.ID = id })},
		{domain.ColUsers, applyInbound(s, func() map[string]domain.User { return s.users }, func(v *domain.User, id string) { v.ID = id })},
		{domain.ColFeedback, applyInbound(s, func() map[string]domain.FeedbackItem { return s.feedback }, func(v *domain.FeedbackItem, id string) { v.ID = id })},
		{domain.ColVision, s.applyVision},
	}

	for _, h := range handlers {
		apply := h.apply
		cancel, err := s.remote.Subscribe(context.Background(), h.collection, func(docs []docstore.Document) {
			apply(docs)
			s.notify()
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", h.collection, err)
		}
		s.mu.Lock()
		s.cancels = append(s.cancels, cancel)
		s.mu.Unlock()
	}
	return nil
}

// applyInbound builds a handler that reconciles one indexed map with an
// inbound full set: decode-and-upsert every document, drop ids not present.
func applyInbound[T any](s *Store, target func() map[string]T, setID func(*T, string)) func([]docstore.Document) {
	return func(docs []docstore.Document) {
		s.mu.Lock()
		defer s.mu.Unlock()

		m := target()
		seen := make(map[string]bool, len(docs))
		for _, doc := range docs {
			entity, err := decodeDoc[T](doc)
			if err != nil {
				log.Printf("store: %v", err)
				continue
			}
			setID(&entity, doc.ID)
			m[doc.ID] = entity
			seen[doc.ID] = true
		}
		for id := range m {
			if !seen[id] {
				delete(m, id)
			}
		}
	}
}

func (s *Store) applyVision(docs []docstore.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hasVision = false
	for _, doc := range docs {
		if doc.ID != domain.VisionDocID {
			continue
		}
		vision, err := decodeDoc[domain.Vision](doc)
		if err != nil {
			log.Printf("store: %v", err)
			return
		}
		s.vision = vision
		s.hasVision = true
	}
}
