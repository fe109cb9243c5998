package store

import (
	"math"
	"strings"

	"roofflow/api/internal/domain"
	"roofflow/api/internal/perm"
	"roofflow/api/internal/util"
	"roofflow/api/internal/week"
)

// CreateKpi defines a scorecard metric. Gated on edit_scorecard.
func (s *Store) CreateKpi(actor domain.User, title string, goal float64, unit string) (domain.KpiDefinition, error) {
	if err := s.gate(actor, perm.EditScorecard); err != nil {
		return domain.KpiDefinition{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" || !domain.ValidUnit(unit) || math.IsNaN(goal) || math.IsInf(goal, 0) {
		return domain.KpiDefinition{}, ErrInvalidInput
	}

	kpi := domain.KpiDefinition{
		ID:        util.NewID("kpi"),
		Title:     title,
		OwnerID:   actor.ID,
		Goal:      goal,
		Unit:      unit,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.kpis[kpi.ID] = kpi
	s.mu.Unlock()
	s.notify()

	s.syncCreate(domain.ColKpis, kpi.ID, kpi, func() {
		delete(s.kpis, kpi.ID)
	})
	return kpi, nil
}

// DeleteKpi removes a metric definition outright. Its entries are retained;
// scorecard reads tolerate entries whose definition is gone.
func (s *Store) DeleteKpi(actor domain.User, id string) error {
	if err := s.gate(actor, perm.EditScorecard); err != nil {
		return err
	}

	s.mu.Lock()
	kpi, ok := s.kpis[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.kpis, id)
	s.mu.Unlock()
	s.notify()

	s.syncDelete(domain.ColKpis, id, func() {
		s.kpis[id] = kpi
	})
	return nil
}

// UpsertKpiEntry records a scorecard value for one (kpiID, weekKey) pair.
// The pair is composite-unique: a second write overwrites the value instead
// of appending, and rapid repeated calls never produce duplicates.
func (s *Store) UpsertKpiEntry(kpiID, weekKey string, value float64) (domain.KpiEntry, error) {
	if s.isClosed() {
		return domain.KpiEntry{}, ErrClosed
	}
	if kpiID == "" || math.IsNaN(value) || math.IsInf(value, 0) {
		return domain.KpiEntry{}, ErrInvalidInput
	}
	if _, err := week.ParseKey(weekKey); err != nil {
		return domain.KpiEntry{}, ErrInvalidInput
	}

	s.mu.Lock()
	var entry domain.KpiEntry
	var prev domain.KpiEntry
	existing := false
	for id, e := range s.kpiEntries {
		if e.KpiID == kpiID && e.WeekOf == weekKey {
			prev = e
			entry = e
			entry.Value = value
			s.kpiEntries[id] = entry
			existing = true
			break
		}
	}
	if !existing {
		entry = domain.KpiEntry{
			ID:        util.NewID("ke"),
			KpiID:     kpiID,
			WeekOf:    weekKey,
			Value:     value,
			CreatedAt: s.now(),
		}
		s.kpiEntries[entry.ID] = entry
	}
	s.mu.Unlock()
	s.notify()

	if existing {
		s.syncPatch(domain.ColKpiEntries, entry.ID, map[string]any{"value": value}, func() {
			s.kpiEntries[prev.ID] = prev
		})
	} else {
		s.syncCreate(domain.ColKpiEntries, entry.ID, entry, func() {
			delete(s.kpiEntries, entry.ID)
		})
	}
	return entry, nil
}
