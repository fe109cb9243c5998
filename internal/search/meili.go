package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"roofflow/api/internal/domain"
)

const (
	idxTodos  = "roofflow_todos"
	idxIssues = "roofflow_issues"
	idxGoals  = "roofflow_goals"
)

// todoRecord is the data indexed for a to-do.
type todoRecord struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Notes  string `json:"notes"`
	Status string `json:"status"`
}

type issueRecord struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Notes  string `json:"notes"`
	Status string `json:"status"`
}

type goalRecord struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Notes  string `json:"notes"`
	Status string `json:"status"`
}

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. An
// unreachable instance is tolerated; the health loop reconfigures on
// recovery and the service falls back to snapshot search meanwhile.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	for _, uid := range []string{idxTodos, idxIssues, idxGoals} {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        uid,
			PrimaryKey: "id",
		}); err != nil {
			log.Printf("search: create index %s (may already exist): %v", uid, err)
		}

		index := m.client.Index(uid)
		filterable := []interface{}{"status"}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			log.Printf("search: update filterable attrs for %s: %v", uid, err)
		}
		searchable := []string{"title", "notes"}
		if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
			log.Printf("search: update searchable attrs for %s: %v", uid, err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries all three indexes (or a filtered subset) and merges results.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	q = q.normalized()
	limit := int64(q.Limit)

	var queries []*meili.SearchRequest
	targetIndexes := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxTodos, ResultTodo},
		{idxIssues, ResultIssue},
		{idxGoals, ResultGoal},
	}

	for _, ti := range targetIndexes {
		if q.FilterType != "" && q.FilterType != ti.rtyp {
			continue
		}
		queries = append(queries, &meili.SearchRequest{
			IndexUID: ti.uid,
			Query:    q.Text,
			Limit:    limit,
			Offset:   int64(q.Offset),
		})
	}

	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: queries,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}

	return results, total, nil
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxTodos:
		return ResultTodo
	case idxIssues:
		return ResultIssue
	case idxGoals:
		return ResultGoal
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	return Result{
		Type:    rtyp,
		ID:      decodeString(hit, "id"),
		Title:   decodeString(hit, "title"),
		Snippet: strings.TrimSpace(decodeString(hit, "notes")),
		Status:  decodeString(hit, "status"),
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// IndexTodo adds or updates a to-do in the search index.
func (m *Meili) IndexTodo(t domain.TodoItem) error {
	rec := todoRecord{ID: t.ID, Title: t.Title, Notes: t.Notes, Status: t.Status}
	_, err := m.client.Index(idxTodos).AddDocuments([]todoRecord{rec}, nil)
	return err
}

// IndexIssue adds or updates an issue in the search index.
func (m *Meili) IndexIssue(is domain.IssueItem) error {
	rec := issueRecord{ID: is.ID, Title: is.Title, Notes: is.Notes, Status: is.Status}
	_, err := m.client.Index(idxIssues).AddDocuments([]issueRecord{rec}, nil)
	return err
}

// IndexGoal adds or updates a goal in the search index.
func (m *Meili) IndexGoal(g domain.QuarterlyGoal) error {
	rec := goalRecord{ID: g.ID, Title: g.Title, Notes: g.Notes, Status: g.Status}
	_, err := m.client.Index(idxGoals).AddDocuments([]goalRecord{rec}, nil)
	return err
}
