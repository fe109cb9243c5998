package search

import (
	"sort"
	"strings"

	"roofflow/api/internal/store"
)

// Snapshot searches the in-memory store directly. It is the fallback
// when Meilisearch is unreachable: slower ranking, but never stale and
// never unavailable.
type Snapshot struct {
	store *store.Store
}

func NewSnapshot(st *store.Store) *Snapshot {
	return &Snapshot{store: st}
}

// Healthy always reports true; the snapshot has no external dependency.
func (s *Snapshot) Healthy() bool { return true }

// Search scans the current snapshot for case-insensitive substring
// matches on titles and notes.
func (s *Snapshot) Search(q Query) ([]Result, int, error) {
	q = q.normalized()
	needle := strings.ToLower(strings.TrimSpace(q.Text))

	var all []Result
	if q.FilterType == "" || q.FilterType == ResultTodo {
		for _, t := range s.store.Todos() {
			if matches(needle, t.Title, t.Notes) {
				all = append(all, Result{
					Type:    ResultTodo,
					ID:      t.ID,
					Title:   t.Title,
					Snippet: snippet(t.Notes),
					Status:  t.Status,
				})
			}
		}
	}
	if q.FilterType == "" || q.FilterType == ResultIssue {
		for _, is := range s.store.Issues() {
			if matches(needle, is.Title, is.Notes) {
				all = append(all, Result{
					Type:    ResultIssue,
					ID:      is.ID,
					Title:   is.Title,
					Snippet: snippet(is.Notes),
					Status:  is.Status,
				})
			}
		}
	}
	if q.FilterType == "" || q.FilterType == ResultGoal {
		for _, g := range s.store.Goals() {
			if matches(needle, g.Title, g.Notes) {
				all = append(all, Result{
					Type:    ResultGoal,
					ID:      g.ID,
					Title:   g.Title,
					Snippet: snippet(g.Notes),
					Status:  g.Status,
				})
			}
		}
	}

	sort.Slice(all, func(i, j int) bool {
		ti := strings.Contains(strings.ToLower(all[i].Title), needle)
		tj := strings.Contains(strings.ToLower(all[j].Title), needle)
		if ti != tj {
			return ti // title matches rank above notes-only matches
		}
		return all[i].ID < all[j].ID
	})

	total := len(all)
	if q.Offset >= total {
		return nil, total, nil
	}
	end := q.Offset + q.Limit
	if end > total {
		end = total
	}
	return all[q.Offset:end], total, nil
}

func matches(needle, title, notes string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(title), needle) ||
		strings.Contains(strings.ToLower(notes), needle)
}

func snippet(notes string) string {
	notes = strings.TrimSpace(notes)
	const max = 120
	if len(notes) > max {
		return notes[:max] + "…"
	}
	return notes
}
