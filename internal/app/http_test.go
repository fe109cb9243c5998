package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"roofflow/api/internal/authpw"
	"roofflow/api/internal/config"
	"roofflow/api/internal/domain"
	"roofflow/api/internal/ingest"
	"roofflow/api/internal/search"
	"roofflow/api/internal/session"
	"roofflow/api/internal/store"
)

type testEnv struct {
	handler http.Handler
	service *Service
	store   *store.Store
	admin   domain.User
	member  domain.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Config{
		JWTSecret:     "test-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    time.Hour,
		WebhookSecret: "hook-secret",
		CORSOrigin:    "*",
	}

	st, err := store.Open(store.Options{})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(st.Close)

	searchSvc := search.New("", "", st)
	t.Cleanup(searchSvc.Close)

	svc := NewService(cfg, st, searchSvc, session.NewMemoryStore())
	env := &testEnv{
		handler: NewHTTPServer(svc, cfg.CORSOrigin).Handler(),
		service: svc,
		store:   st,
	}

	for _, u := range st.Users() {
		role, ok := st.Role(u.RoleID)
		if !ok {
			t.Fatalf("user %s has unknown role", u.ID)
		}
		if role.IsSuperAdmin {
			env.admin = u
		} else {
			env.member = u
		}
	}
	if env.admin.ID == "" || env.member.ID == "" {
		t.Fatal("seed data missing admin or member")
	}

	if err := svc.Passwords().SetPassword(env.admin, env.admin.ID, "admin-password"); err != nil {
		t.Fatalf("set admin password: %v", err)
	}
	if err := svc.Passwords().SetPassword(env.admin, env.member.ID, "member-password"); err != nil {
		t.Fatalf("set member password: %v", err)
	}
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func (e *testEnv) login(t *testing.T, email, password string) (token, refresh string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", "",
		`{"email":"`+email+`","password":"`+password+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", rec.Code, rec.Body.String())
	}
	payload := decode(t, rec)
	return payload["token"].(string), payload["refreshToken"].(string)
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/health", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("health = %d", rec.Code)
	}

	// No checks registered: ready trivially.
	rec = env.do(t, http.MethodGet, "/api/ready", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("ready = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLoginRefreshLogout(t *testing.T) {
	env := newTestEnv(t)
	token, refresh := env.login(t, env.admin.Email, "admin-password")

	rec := env.do(t, http.MethodGet, "/api/session", token, "")
	payload := decode(t, rec)
	if payload["authenticated"] != true || payload["userId"] != env.admin.ID {
		t.Errorf("session = %v", payload)
	}

	// Refresh rotates: old refresh token is single-use.
	rec = env.do(t, http.MethodPost, "/api/auth/refresh", "", `{"refreshToken":"`+refresh+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh = %d: %s", rec.Code, rec.Body.String())
	}
	rotated := decode(t, rec)["refreshToken"].(string)

	rec = env.do(t, http.MethodPost, "/api/auth/refresh", "", `{"refreshToken":"`+refresh+`"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("reused refresh token = %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/logout", "", `{"refreshToken":"`+rotated+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout = %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/auth/refresh", "", `{"refreshToken":"`+rotated+`"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("refresh after logout = %d, want 401", rec.Code)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/auth/login", "",
		`{"email":"`+env.admin.Email+`","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("login = %d, want 401", rec.Code)
	}
}

func TestRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/todos", "/api/issues", "/api/users", "/api/search?q=x"} {
		rec := env.do(t, http.MethodGet, path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without token = %d, want 401", path, rec.Code)
		}
	}
	rec := env.do(t, http.MethodGet, "/api/todos", "garbage-token", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token = %d, want 401", rec.Code)
	}
}

func TestTodoLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login(t, env.admin.Email, "admin-password")

	rec := env.do(t, http.MethodPost, "/api/todos", token, `{"title":"  Call the supplier  "}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode(t, rec)
	if created["title"] != "Call the supplier" {
		t.Errorf("title = %v, want trimmed", created["title"])
	}
	if created["status"] != domain.TodoOpen {
		t.Errorf("status = %v", created["status"])
	}
	id := created["id"].(string)

	rec = env.do(t, http.MethodPost, "/api/todos/"+id+"/toggle", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle = %d", rec.Code)
	}
	if got := decode(t, rec)["status"]; got != domain.TodoDone {
		t.Errorf("toggled status = %v, want done", got)
	}

	rec = env.do(t, http.MethodPatch, "/api/todos/"+id, token, `{"notes":"left voicemail"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch = %d", rec.Code)
	}
	if got := decode(t, rec)["notes"]; got != "left voicemail" {
		t.Errorf("notes = %v", got)
	}

	rec = env.do(t, http.MethodGet, "/api/todos", token, "")
	payload := decode(t, rec)
	todos := payload["todos"].([]any)
	if len(todos) != 2 { // one seeded + one created
		t.Errorf("todos = %d, want 2", len(todos))
	}
	if payload["revision"] == nil {
		t.Error("revision missing from list payload")
	}

	rec = env.do(t, http.MethodPost, "/api/todos/td_missing/toggle", token, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("toggle missing = %d, want 404", rec.Code)
	}
}

func TestIssuePriorityAndResolveOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login(t, env.admin.Email, "admin-password")

	// One seeded issue sits at priority 1.
	rec := env.do(t, http.MethodPost, "/api/issues", token, `{"title":"Second issue"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode(t, rec)
	if got := created["priority"].(float64); got != 2 {
		t.Errorf("priority = %v, want 2", got)
	}
	id := created["id"].(string)

	rec = env.do(t, http.MethodPost, "/api/issues/"+id+"/resolve", token, "")
	if got := decode(t, rec)["status"]; got != domain.IssueResolved {
		t.Errorf("status = %v, want resolved", got)
	}
	rec = env.do(t, http.MethodPost, "/api/issues/"+id+"/reopen", token, "")
	if got := decode(t, rec)["status"]; got != domain.IssueOpen {
		t.Errorf("status = %v, want open", got)
	}
}

func TestGoalStatusOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login(t, env.admin.Email, "admin-password")

	rec := env.do(t, http.MethodPost, "/api/goals", token, `{"title":"Hit 40% close rate"}`)
	created := decode(t, rec)
	if created["status"] != domain.GoalOnTrack {
		t.Errorf("status = %v, want onTrack", created["status"])
	}
	id := created["id"].(string)

	rec = env.do(t, http.MethodPatch, "/api/goals/"+id+"/status", token, `{"status":"offTrack"}`)
	if got := decode(t, rec)["status"]; got != domain.GoalOffTrack {
		t.Errorf("status = %v, want offTrack", got)
	}

	rec = env.do(t, http.MethodPatch, "/api/goals/"+id+"/status", token, `{"status":"bogus"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bogus status = %d, want 422", rec.Code)
	}
}

func TestKpiEntryUpsertOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login(t, env.admin.Email, "admin-password")

	rec := env.do(t, http.MethodPost, "/api/kpis", token, `{"title":"Leads","goal":25,"unit":"count"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create kpi = %d: %s", rec.Code, rec.Body.String())
	}
	id := decode(t, rec)["id"].(string)

	rec = env.do(t, http.MethodPut, "/api/kpis/"+id+"/entries/2024-03-04", token, `{"value":21}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert = %d: %s", rec.Code, rec.Body.String())
	}
	first := decode(t, rec)

	rec = env.do(t, http.MethodPut, "/api/kpis/"+id+"/entries/2024-03-04", token, `{"value":23}`)
	second := decode(t, rec)
	if second["id"] != first["id"] {
		t.Errorf("upsert created a second entry: %v vs %v", second["id"], first["id"])
	}
	if second["value"].(float64) != 23 {
		t.Errorf("value = %v, want 23", second["value"])
	}

	rec = env.do(t, http.MethodGet, "/api/scorecard?week=2024-03-04", token, "")
	entries := decode(t, rec)["entries"].([]any)
	found := false
	for _, e := range entries {
		entry := e.(map[string]any)
		if entry["kpiId"] == id && entry["value"].(float64) == 23 {
			found = true
		}
	}
	if !found {
		t.Error("scorecard missing upserted entry")
	}
}

func TestMeetingRunDefaultsAndNotes(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login(t, env.admin.Email, "admin-password")

	rec := env.do(t, http.MethodGet, "/api/meeting/runs/2024-03-04", token, "")
	run := decode(t, rec)["run"].(map[string]any)
	if run["status"] != domain.RunScheduled {
		t.Errorf("default run status = %v, want scheduled", run["status"])
	}

	rec = env.do(t, http.MethodPut, "/api/meeting/runs/2024-03-04/notes", token, `{"notes":"Focused on staffing"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("notes = %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/meeting/runs/2024-03-04/feedback", token, `{"rating":8,"comment":"tight agenda"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("feedback = %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/meeting/runs/2024-03-04", token, "")
	payload := decode(t, rec)
	run = payload["run"].(map[string]any)
	if run["notes"] != "Focused on staffing" || run["status"] != domain.RunScheduled {
		t.Errorf("run = %v", run)
	}
	fb := payload["feedback"].(map[string]any)
	if fb["rating"].(float64) != 8 {
		t.Errorf("feedback = %v", fb)
	}

	rec = env.do(t, http.MethodGet, "/api/meeting/runs/not-a-week", token, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad week key = %d, want 422", rec.Code)
	}
}

func TestPermissionGatingOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	adminToken, _ := env.login(t, env.admin.Email, "admin-password")
	memberToken, _ := env.login(t, env.member.Email, "member-password")

	// The ops member lacks manage_team.
	rec := env.do(t, http.MethodPost, "/api/users", memberToken,
		`{"displayName":"New Hire","roleId":"`+env.member.RoleID+`"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("member create user = %d, want 403", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/users", adminToken,
		`{"displayName":"New Hire","email":"hire@roofflow.local","roleId":"`+env.member.RoleID+`"}`)
	if rec.Code != http.StatusCreated {
		t.Errorf("admin create user = %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/permissions", memberToken, "")
	granted := decode(t, rec)["permissions"].(map[string]any)
	if granted["manage_team"] != false {
		t.Errorf("member manage_team = %v, want false", granted["manage_team"])
	}
	if granted["run_meeting"] != true {
		t.Errorf("member run_meeting = %v, want true", granted["run_meeting"])
	}
}

func TestRoleDeleteConflictOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login(t, env.admin.Email, "admin-password")

	// Member's role is held by an active user.
	rec := env.do(t, http.MethodDelete, "/api/roles/"+env.member.RoleID, token, "")
	if rec.Code != http.StatusConflict {
		t.Errorf("delete in-use role = %d, want 409", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/api/users/"+env.member.ID, token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate = %d", rec.Code)
	}
	// Crew Lead still points at the ops role as parent; deletion detaches it.
	rec = env.do(t, http.MethodDelete, "/api/roles/"+env.member.RoleID, token, "")
	if rec.Code != http.StatusOK {
		t.Errorf("delete freed role = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestVisionOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login(t, env.admin.Email, "admin-password")

	rec := env.do(t, http.MethodGet, "/api/vision", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get vision = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/api/vision", token,
		`{"purpose":"New purpose","coreValues":["a"],"focus":"f"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put vision = %d: %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodGet, "/api/vision", token, "")
	if got := decode(t, rec)["purpose"]; got != "New purpose" {
		t.Errorf("purpose = %v", got)
	}
}

func TestSearchOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login(t, env.admin.Email, "admin-password")

	rec := env.do(t, http.MethodPost, "/api/todos", token, `{"title":"Inspect flashing on Oak St"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/search?q=flashing", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("search = %d: %s", rec.Code, rec.Body.String())
	}
	payload := decode(t, rec)
	results := payload["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	hit := results[0].(map[string]any)
	if hit["type"] != "todo" || hit["title"] != "Inspect flashing on Oak St" {
		t.Errorf("hit = %v", hit)
	}

	rec = env.do(t, http.MethodGet, "/api/search?q=x&limit=nope", token, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad limit = %d, want 422", rec.Code)
	}

	// Negative paging is clamped, never a panic.
	rec = env.do(t, http.MethodGet, "/api/search?q=flashing&offset=-1&limit=-2", token, "")
	if rec.Code != http.StatusOK {
		t.Errorf("negative paging = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestBootstrapOwnerCanLoginOverHTTP(t *testing.T) {
	cfg := config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
		CORSOrigin: "*",
	}
	hash, err := authpw.HashPassword("first-run-password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	st, err := store.Open(store.Options{OwnerPasswordHash: hash})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(st.Close)

	searchSvc := search.New("", "", st)
	t.Cleanup(searchSvc.Close)
	svc := NewService(cfg, st, searchSvc, session.NewMemoryStore())
	handler := NewHTTPServer(svc, cfg.CORSOrigin).Handler()

	var owner domain.User
	for _, u := range st.Users() {
		if role, ok := st.Role(u.RoleID); ok && role.IsSuperAdmin {
			owner = u
		}
	}
	if owner.ID == "" {
		t.Fatal("seed data missing super-admin owner")
	}

	// No password was ever set through the API; the seeded credential
	// alone must get the first operator in.
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"`+owner.Email+`","password":"first-run-password"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", rec.Code, rec.Body.String())
	}
	payload := decode(t, rec)
	if payload["userId"] != owner.ID {
		t.Errorf("logged in as %v, want %s", payload["userId"], owner.ID)
	}
}

func TestChatHookOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	body := `{"channel":"#ops","messageRef":"slack_900","senderName":"Dana","text":"Schedule the crane"}`
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := ingest.Sign([]byte("hook-secret"), ts, []byte(body))

	req := httptest.NewRequest(http.MethodPost, "/api/hooks/chat", strings.NewReader(body))
	req.Header.Set("X-Roofflow-Timestamp", ts)
	req.Header.Set("X-Roofflow-Signature", sig)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("hook = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode(t, rec)
	if created["source"] != domain.TodoSourceExternal {
		t.Errorf("source = %v, want external", created["source"])
	}

	// Redelivery: same todo, not a duplicate.
	req = httptest.NewRequest(http.MethodPost, "/api/hooks/chat", strings.NewReader(body))
	req.Header.Set("X-Roofflow-Timestamp", ts)
	req.Header.Set("X-Roofflow-Signature", sig)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if got := decode(t, rec)["id"]; got != created["id"] {
		t.Errorf("redelivery id = %v, want %v", got, created["id"])
	}

	// Tampered signature.
	req = httptest.NewRequest(http.MethodPost, "/api/hooks/chat", strings.NewReader(body))
	req.Header.Set("X-Roofflow-Timestamp", ts)
	req.Header.Set("X-Roofflow-Signature", "deadbeef")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad signature = %d, want 401", rec.Code)
	}
}

func TestDeactivatedUserTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	adminToken, _ := env.login(t, env.admin.Email, "admin-password")
	memberToken, _ := env.login(t, env.member.Email, "member-password")

	rec := env.do(t, http.MethodDelete, "/api/users/"+env.member.ID, adminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/todos", memberToken, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("deactivated user token = %d, want 401", rec.Code)
	}
}

func TestCORSAndRequestIDHeaders(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/health", "", "")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS origin = %q", got)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID missing")
	}

	rec = env.do(t, http.MethodOptions, "/api/anything", "", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight = %d, want 204", rec.Code)
	}
}
