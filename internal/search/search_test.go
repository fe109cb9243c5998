package search

import (
	"testing"
	"time"

	"roofflow/api/internal/domain"
	"roofflow/api/internal/store"
)

func fixtureStore(t *testing.T) (*store.Store, domain.User) {
	t.Helper()
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	st, err := store.Open(store.Options{
		Clock: func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(st.Close)

	users := st.Users()
	if len(users) == 0 {
		t.Fatal("seeded store has no users")
	}
	var owner domain.User
	for _, u := range users {
		role, ok := st.Role(u.RoleID)
		if ok && role.IsSuperAdmin {
			owner = u
			break
		}
	}
	if owner.ID == "" {
		t.Fatal("seeded store has no super-admin user")
	}
	return st, owner
}

func TestSnapshotSearchMatchesTitleAndNotes(t *testing.T) {
	st, owner := fixtureStore(t)

	todo, err := st.CreateTodo(owner, "Order ridge shingles")
	if err != nil {
		t.Fatalf("CreateTodo: %v", err)
	}
	if _, err := st.UpdateTodo(todo.ID, store.TodoPatch{Notes: strptr("supplier quote pending")}); err != nil {
		t.Fatalf("UpdateTodo: %v", err)
	}
	issue, err := st.CreateIssue("Shingle delivery delayed")
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}

	snap := NewSnapshot(st)

	results, total, err := snap.Search(Query{Text: "shingle"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 2 || len(results) != 2 {
		t.Fatalf("total = %d, results = %d, want 2 each", total, len(results))
	}

	results, _, err = snap.Search(Query{Text: "supplier quote"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != todo.ID {
		t.Errorf("notes match = %+v", results)
	}

	results, _, err = snap.Search(Query{Text: "delayed", FilterType: ResultIssue})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != issue.ID || results[0].Type != ResultIssue {
		t.Errorf("filtered match = %+v", results)
	}
}

func TestSnapshotSearchFilterExcludesOtherTypes(t *testing.T) {
	st, owner := fixtureStore(t)

	if _, err := st.CreateTodo(owner, "Quarterly planning prep"); err != nil {
		t.Fatalf("CreateTodo: %v", err)
	}
	goal, err := st.CreateGoal(owner, "Quarterly revenue target")
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}

	snap := NewSnapshot(st)
	results, _, err := snap.Search(Query{Text: "quarterly", FilterType: ResultGoal})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != goal.ID {
		t.Errorf("results = %+v, want only the goal", results)
	}
}

func TestSnapshotSearchPagination(t *testing.T) {
	st, owner := fixtureStore(t)
	for _, title := range []string{"paint crew north", "paint crew south", "paint crew east"} {
		if _, err := st.CreateTodo(owner, title); err != nil {
			t.Fatalf("CreateTodo: %v", err)
		}
	}

	snap := NewSnapshot(st)
	page1, total, err := snap.Search(Query{Text: "paint crew", Limit: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 3 || len(page1) != 2 {
		t.Fatalf("page1: total = %d, len = %d", total, len(page1))
	}
	page2, _, err := snap.Search(Query{Text: "paint crew", Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(page2) != 1 {
		t.Fatalf("page2 len = %d, want 1", len(page2))
	}
	if page2[0].ID == page1[0].ID || page2[0].ID == page1[1].ID {
		t.Error("pages overlap")
	}

	// Offset past the end is empty, not an error.
	empty, total, err := snap.Search(Query{Text: "paint crew", Offset: 10})
	if err != nil || len(empty) != 0 || total != 3 {
		t.Errorf("past-end page: results = %v, total = %d, err = %v", empty, total, err)
	}
}

func TestSearchClampsNegativePaging(t *testing.T) {
	st, owner := fixtureStore(t)
	if _, err := st.CreateTodo(owner, "Flash the chimney"); err != nil {
		t.Fatalf("CreateTodo: %v", err)
	}

	snap := NewSnapshot(st)
	results, _, err := snap.Search(Query{Text: "chimney", Offset: -1, Limit: -5})
	if err != nil {
		t.Fatalf("Search with negative paging: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("results = %d, want 1 (negative paging treated as defaults)", len(results))
	}

	svc := New("", "", st)
	defer svc.Close()
	results, _, err = svc.Search(Query{Text: "chimney", Offset: -3})
	if err != nil {
		t.Fatalf("service Search with negative offset: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("service results = %d, want 1", len(results))
	}
}

func TestSnapshotRanksTitleMatchesFirst(t *testing.T) {
	st, owner := fixtureStore(t)

	notesOnly, _ := st.CreateTodo(owner, "Misc errand")
	if _, err := st.UpdateTodo(notesOnly.ID, store.TodoPatch{Notes: strptr("gutter cleanup follow-up")}); err != nil {
		t.Fatalf("UpdateTodo: %v", err)
	}
	titleHit, _ := st.CreateTodo(owner, "Gutter replacement quote")

	snap := NewSnapshot(st)
	results, _, err := snap.Search(Query{Text: "gutter"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].ID != titleHit.ID {
		t.Errorf("first result = %s, want the title match %s", results[0].ID, titleHit.ID)
	}
}

func TestServiceWithoutMeiliUsesSnapshot(t *testing.T) {
	st, owner := fixtureStore(t)
	svc := New("", "", st)
	defer svc.Close()

	if !svc.Healthy() {
		t.Error("snapshot-only service should report healthy")
	}

	todo, err := st.CreateTodo(owner, "Snapshot only search")
	if err != nil {
		t.Fatalf("CreateTodo: %v", err)
	}
	// Index calls are no-ops without a Meilisearch backend.
	svc.IndexTodo(todo)

	results, _, err := svc.Search(Query{Text: "snapshot only"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != todo.ID {
		t.Errorf("results = %+v", results)
	}
}

func strptr(s string) *string { return &s }
