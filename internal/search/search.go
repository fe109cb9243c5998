package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultTodo  ResultType = "todo"
	ResultIssue ResultType = "issue"
	ResultGoal  ResultType = "goal"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet,omitempty"`
	Status  string     `json:"status,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

const defaultLimit = 20

// normalized clamps paging so no backend ever sees a negative offset or a
// non-positive limit, whatever the caller parsed them from.
func (q Query) normalized() Query {
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}
