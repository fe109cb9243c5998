package store

import (
	"strings"

	"roofflow/api/internal/domain"
	"roofflow/api/internal/perm"
	"roofflow/api/internal/util"
	"roofflow/api/internal/week"
)

// SetMeetingNotes writes the running notes for one week's meeting.
func (s *Store) SetMeetingNotes(weekKey, notes string) (domain.MeetingRun, error) {
	if s.isClosed() {
		return domain.MeetingRun{}, ErrClosed
	}
	if _, err := week.ParseKey(weekKey); err != nil {
		return domain.MeetingRun{}, ErrInvalidInput
	}

	s.mu.Lock()
	run, existed := s.runs[weekKey]
	prev := run
	if !existed {
		run = domain.MeetingRun{WeekOf: weekKey, Status: domain.RunScheduled}
	}
	run.Notes = notes
	s.runs[weekKey] = run
	s.mu.Unlock()
	s.notify()

	restore := func() {
		if existed {
			s.runs[weekKey] = prev
		} else {
			delete(s.runs, weekKey)
		}
	}
	if existed {
		s.syncPatch(domain.ColMeetingRuns, weekKey, map[string]any{"notes": notes}, restore)
	} else {
		s.syncCreate(domain.ColMeetingRuns, weekKey, run, restore)
	}
	return run, nil
}

// SetMeetingRunStatus schedules or cancels one week's meeting. Gated on
// run_meeting.
func (s *Store) SetMeetingRunStatus(actor domain.User, weekKey, status string) (domain.MeetingRun, error) {
	if err := s.gate(actor, perm.RunMeeting); err != nil {
		return domain.MeetingRun{}, err
	}
	if !domain.ValidRunStatus(status) {
		return domain.MeetingRun{}, ErrInvalidInput
	}
	if _, err := week.ParseKey(weekKey); err != nil {
		return domain.MeetingRun{}, ErrInvalidInput
	}

	s.mu.Lock()
	run, existed := s.runs[weekKey]
	prev := run
	if !existed {
		run = domain.MeetingRun{WeekOf: weekKey}
	}
	run.Status = status
	s.runs[weekKey] = run
	s.mu.Unlock()
	s.notify()

	restore := func() {
		if existed {
			s.runs[weekKey] = prev
		} else {
			delete(s.runs, weekKey)
		}
	}
	if existed {
		s.syncPatch(domain.ColMeetingRuns, weekKey, map[string]any{"status": status}, restore)
	} else {
		s.syncCreate(domain.ColMeetingRuns, weekKey, run, restore)
	}
	return run, nil
}

// SetMeetingFeedback records the 1-10 meeting rating for a week.
func (s *Store) SetMeetingFeedback(weekKey string, rating int, comment string) (domain.MeetingFeedback, error) {
	if s.isClosed() {
		return domain.MeetingFeedback{}, ErrClosed
	}
	if rating < 1 || rating > 10 {
		return domain.MeetingFeedback{}, ErrInvalidInput
	}
	if _, err := week.ParseKey(weekKey); err != nil {
		return domain.MeetingFeedback{}, ErrInvalidInput
	}

	fb := domain.MeetingFeedback{
		WeekOf:    weekKey,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	prev, existed := s.meetingFeed[weekKey]
	s.meetingFeed[weekKey] = fb
	s.mu.Unlock()
	s.notify()

	s.syncCreate(domain.ColMeetingFeedback, weekKey, fb, func() {
		if existed {
			s.meetingFeed[weekKey] = prev
		} else {
			delete(s.meetingFeed, weekKey)
		}
	})
	return fb, nil
}

// SaveMeetingTemplate creates or replaces the agenda template. Section order
// is preserved as given; it drives meeting-run navigation. Gated on
// run_meeting.
func (s *Store) SaveMeetingTemplate(actor domain.User, tpl domain.MeetingTemplate) (domain.MeetingTemplate, error) {
	if err := s.gate(actor, perm.RunMeeting); err != nil {
		return domain.MeetingTemplate{}, err
	}
	if strings.TrimSpace(tpl.Title) == "" || len(tpl.Sections) == 0 {
		return domain.MeetingTemplate{}, ErrInvalidInput
	}
	for i := range tpl.Sections {
		if tpl.Sections[i].ID == "" {
			tpl.Sections[i].ID = util.NewID("sec")
		}
	}

	s.mu.Lock()
	created := tpl.ID == ""
	var prev domain.MeetingTemplate
	if created {
		tpl.ID = util.NewID("mt")
		tpl.CreatedAt = s.now()
	} else {
		existing, ok := s.templates[tpl.ID]
		if !ok {
			s.mu.Unlock()
			return domain.MeetingTemplate{}, ErrNotFound
		}
		prev = existing
		tpl.CreatedAt = existing.CreatedAt
	}
	s.templates[tpl.ID] = tpl
	s.mu.Unlock()
	s.notify()

	id := tpl.ID
	restore := func() {
		if created {
			delete(s.templates, id)
		} else {
			s.templates[id] = prev
		}
	}
	s.syncCreate(domain.ColMeetingTemplates, id, tpl, restore)
	return tpl, nil
}

// DeleteMeetingTemplate removes an agenda template. Gated on run_meeting.
func (s *Store) DeleteMeetingTemplate(actor domain.User, id string) error {
	if err := s.gate(actor, perm.RunMeeting); err != nil {
		return err
	}

	s.mu.Lock()
	tpl, ok := s.templates[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.templates, id)
	s.mu.Unlock()
	s.notify()

	s.syncDelete(domain.ColMeetingTemplates, id, func() {
		s.templates[id] = tpl
	})
	return nil
}
