package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"roofflow/api/internal/authpw"
	"roofflow/api/internal/domain"
	"roofflow/api/internal/perm"
	"roofflow/api/internal/search"
	"roofflow/api/internal/store"
	"roofflow/api/internal/week"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		statusCode := http.StatusOK
		checks := map[string]any{}
		for name, err := range s.service.Ready(ctx) {
			if err != nil {
				statusCode = http.StatusServiceUnavailable
				checks[name] = map[string]any{"status": "error", "error": err.Error()}
				continue
			}
			checks[name] = map[string]any{"status": "ok"}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     statusCode == http.StatusOK,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/login" {
		s.handleLogin(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/refresh" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		sess, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(sess))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/logout" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		_ = s.service.Logout(r.Context(), body.RefreshToken)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/hooks/chat" {
		s.handleChatHook(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		token := bearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
			return
		}
		sess, err := s.service.SessionFromToken(token)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"userId":        sess.UserID,
			"userName":      sess.UserName,
			"roleId":        sess.RoleID,
		})
		return
	}

	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	actor, ok := s.service.Actor(sess)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}
	st := s.service.Store()

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/password" {
		var body struct {
			UserID   string `json:"userId"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.UserID == "" {
			body.UserID = sess.UserID
		}
		if err := s.service.Passwords().SetPassword(actor, body.UserID, body.Password); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/permissions" {
		granted := map[string]bool{}
		for _, code := range perm.AllCodes() {
			granted[string(code)] = st.Can(actor, code)
		}
		writeJSON(w, http.StatusOK, map[string]any{"permissions": granted})
		return
	}

	switch r.URL.Path {
	case "/api/todos":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"todos": todoViews(st.Todos()), "revision": st.Revision()})
		case http.MethodPost:
			var body struct {
				Title string `json:"title"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			todo, err := st.CreateTodo(actor, body.Title)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, todoView(todo))
		default:
			methodNotAllowed(w)
		}
		return

	case "/api/issues":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"issues": issueViews(st.Issues()), "revision": st.Revision()})
		case http.MethodPost:
			var body struct {
				Title string `json:"title"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			issue, err := st.CreateIssue(body.Title)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, issueView(issue))
		default:
			methodNotAllowed(w)
		}
		return

	case "/api/goals":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"goals": goalViews(st.Goals()), "revision": st.Revision()})
		case http.MethodPost:
			var body struct {
				Title string `json:"title"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			goal, err := st.CreateGoal(actor, body.Title)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, goalView(goal))
		default:
			methodNotAllowed(w)
		}
		return

	case "/api/kpis":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"kpis": kpiViews(st.Kpis())})
		case http.MethodPost:
			var body struct {
				Title string  `json:"title"`
				Goal  float64 `json:"goal"`
				Unit  string  `json:"unit"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			kpi, err := st.CreateKpi(actor, body.Title, body.Goal, body.Unit)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, kpiView(kpi))
		default:
			methodNotAllowed(w)
		}
		return

	case "/api/scorecard":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		weekKey := strings.TrimSpace(r.URL.Query().Get("week"))
		if weekKey == "" {
			weekKey = week.Key(time.Now())
		} else if _, err := week.ParseKey(weekKey); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "week must be a Monday key (YYYY-MM-DD)", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"weekOf":  weekKey,
			"kpis":    kpiViews(st.Kpis()),
			"entries": kpiEntryViews(st.KpiEntriesForWeek(weekKey)),
		})
		return

	case "/api/users":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"users": userViews(st.Users())})
		case http.MethodPost:
			var body struct {
				DisplayName string `json:"displayName"`
				Email       string `json:"email"`
				RoleID      string `json:"roleId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			user, err := st.CreateUser(actor, body.DisplayName, body.Email, body.RoleID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, userView(user))
		default:
			methodNotAllowed(w)
		}
		return

	case "/api/roles":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"roles": roleViews(st.Roles())})
		case http.MethodPost:
			var body struct {
				Name            string   `json:"name"`
				PermissionCodes []string `json:"permissionCodes"`
				ParentRoleID    string   `json:"parentRoleId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			role, err := st.CreateRole(actor, body.Name, permCodes(body.PermissionCodes), body.ParentRoleID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, roleView(role))
		default:
			methodNotAllowed(w)
		}
		return

	case "/api/vision":
		switch r.Method {
		case http.MethodGet:
			vision, ok := st.Vision()
			if !ok {
				writeError(w, http.StatusNotFound, "NOT_FOUND", "No vision set", nil)
				return
			}
			writeJSON(w, http.StatusOK, vision)
		case http.MethodPut:
			var body domain.Vision
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := st.SetVision(actor, body); err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, body)
		default:
			methodNotAllowed(w)
		}
		return

	case "/api/feedback":
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"feedback": feedbackViews(st.FeedbackItems())})
		case http.MethodPost:
			var body struct {
				Page    string `json:"page"`
				Message string `json:"message"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			item, err := st.AddFeedback(sess.UserName, body.Page, body.Message)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, feedbackView(item))
		default:
			methodNotAllowed(w)
		}
		return

	case "/api/meeting/template":
		s.handleMeetingTemplate(w, r, actor)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 3 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "todos":
		s.handleTodoItem(w, r, parts)
	case "issues":
		s.handleIssueItem(w, r, parts)
	case "goals":
		s.handleGoalItem(w, r, parts)
	case "kpis":
		s.handleKpiItem(w, r, actor, parts)
	case "meeting":
		s.handleMeetingItem(w, r, actor, parts)
	case "users":
		s.handleUserItem(w, r, actor, parts)
	case "roles":
		s.handleRoleItem(w, r, actor, parts)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	sess, err := s.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, authpw.ErrBadCredentials) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Login failed", nil)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(sess))
}

func (s *HTTPServer) handleChatHook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Could not read body", nil)
		return
	}
	defer r.Body.Close()

	timestamp := strings.TrimSpace(r.Header.Get("X-Roofflow-Timestamp"))
	signature := strings.TrimSpace(r.Header.Get("X-Roofflow-Signature"))

	todo, err := s.service.Ingest(timestamp, signature, body)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, todoView(todo))
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := search.Query{
		Text:       strings.TrimSpace(r.URL.Query().Get("q")),
		FilterType: search.ResultType(strings.TrimSpace(r.URL.Query().Get("type"))),
		Limit:      20,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		q.Limit = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
			return
		}
		q.Offset = parsed
	}

	payload, err := s.service.Search(q)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleTodoItem(w http.ResponseWriter, r *http.Request, parts []string) {
	st := s.service.Store()
	id := parts[2]

	if len(parts) == 4 && parts[3] == "toggle" && r.Method == http.MethodPost {
		todo, err := st.ToggleTodo(id)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, todoView(todo))
		return
	}

	if len(parts) == 3 && r.Method == http.MethodPatch {
		var body struct {
			Title        *string    `json:"title"`
			Notes        *string    `json:"notes"`
			DueDate      *time.Time `json:"dueDate"`
			ClearDueDate bool       `json:"clearDueDate"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		todo, err := st.UpdateTodo(id, store.TodoPatch{
			Title:        body.Title,
			Notes:        body.Notes,
			DueDate:      body.DueDate,
			ClearDueDate: body.ClearDueDate,
		})
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, todoView(todo))
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleIssueItem(w http.ResponseWriter, r *http.Request, parts []string) {
	st := s.service.Store()
	id := parts[2]

	if len(parts) == 4 && r.Method == http.MethodPost {
		var issue domain.IssueItem
		var err error
		switch parts[3] {
		case "resolve":
			issue, err = st.ResolveIssue(id)
		case "reopen":
			issue, err = st.ReopenIssue(id)
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, issueView(issue))
		return
	}

	if len(parts) == 4 && parts[3] == "notes" && r.Method == http.MethodPut {
		var body struct {
			Notes string `json:"notes"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		issue, err := st.SetIssueNotes(id, body.Notes)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, issueView(issue))
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleGoalItem(w http.ResponseWriter, r *http.Request, parts []string) {
	st := s.service.Store()
	id := parts[2]

	if len(parts) == 4 && parts[3] == "status" && r.Method == http.MethodPatch {
		var body struct {
			Status string `json:"status"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		goal, err := st.SetGoalStatus(id, body.Status)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, goalView(goal))
		return
	}

	if len(parts) == 4 && parts[3] == "notes" && r.Method == http.MethodPut {
		var body struct {
			Notes string `json:"notes"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		goal, err := st.SetGoalNotes(id, body.Notes)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, goalView(goal))
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleKpiItem(w http.ResponseWriter, r *http.Request, actor domain.User, parts []string) {
	st := s.service.Store()
	id := parts[2]

	if len(parts) == 3 && r.Method == http.MethodDelete {
		if err := st.DeleteKpi(actor, id); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) == 5 && parts[3] == "entries" && r.Method == http.MethodPut {
		weekKey := parts[4]
		var body struct {
			Value float64 `json:"value"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		entry, err := st.UpsertKpiEntry(id, weekKey, body.Value)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, kpiEntryView(entry))
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleMeetingTemplate(w http.ResponseWriter, r *http.Request, actor domain.User) {
	st := s.service.Store()

	switch r.Method {
	case http.MethodGet:
		tpl, ok := st.MeetingTemplate()
		if !ok {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "No meeting template", nil)
			return
		}
		writeJSON(w, http.StatusOK, templateView(tpl))
	case http.MethodPut:
		var body struct {
			ID       string                  `json:"id"`
			Title    string                  `json:"title"`
			Sections []domain.MeetingSection `json:"sections"`
			Schedule *domain.MeetingSchedule `json:"schedule"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		tpl, err := st.SaveMeetingTemplate(actor, domain.MeetingTemplate{
			ID:       body.ID,
			Title:    body.Title,
			Sections: body.Sections,
			Schedule: body.Schedule,
		})
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, templateView(tpl))
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleMeetingItem(w http.ResponseWriter, r *http.Request, actor domain.User, parts []string) {
	st := s.service.Store()

	// /api/meeting/template/{id} — delete a template
	if len(parts) == 4 && parts[2] == "template" && r.Method == http.MethodDelete {
		if err := st.DeleteMeetingTemplate(actor, parts[3]); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	// /api/meeting/runs/{weekKey}[/notes|/feedback]
	if len(parts) < 4 || parts[2] != "runs" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	weekKey := parts[3]
	if _, err := week.ParseKey(weekKey); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "week must be a Monday key (YYYY-MM-DD)", nil)
		return
	}

	if len(parts) == 4 {
		switch r.Method {
		case http.MethodGet:
			payload := map[string]any{"run": runView(st.MeetingRun(weekKey))}
			if fb, ok := st.MeetingFeedbackFor(weekKey); ok {
				payload["feedback"] = meetingFeedbackView(fb)
			}
			writeJSON(w, http.StatusOK, payload)
		case http.MethodPut:
			var body struct {
				Status string `json:"status"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			run, err := st.SetMeetingRunStatus(actor, weekKey, body.Status)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, runView(run))
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) == 5 && parts[4] == "notes" && r.Method == http.MethodPut {
		var body struct {
			Notes string `json:"notes"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		run, err := st.SetMeetingNotes(weekKey, body.Notes)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, runView(run))
		return
	}

	if len(parts) == 5 && parts[4] == "feedback" && r.Method == http.MethodPost {
		var body struct {
			Rating  int    `json:"rating"`
			Comment string `json:"comment"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		fb, err := st.SetMeetingFeedback(weekKey, body.Rating, body.Comment)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, meetingFeedbackView(fb))
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleUserItem(w http.ResponseWriter, r *http.Request, actor domain.User, parts []string) {
	st := s.service.Store()
	id := parts[2]
	if len(parts) != 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch r.Method {
	case http.MethodGet:
		user, ok := st.User(id)
		if !ok {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		writeJSON(w, http.StatusOK, userView(user))
	case http.MethodPatch:
		var body struct {
			DisplayName *string `json:"displayName"`
			RoleID      *string `json:"roleId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		user, err := st.UpdateUser(actor, id, body.DisplayName, body.RoleID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, userView(user))
	case http.MethodDelete:
		user, err := st.DeactivateUser(actor, id)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, userView(user))
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) handleRoleItem(w http.ResponseWriter, r *http.Request, actor domain.User, parts []string) {
	st := s.service.Store()
	id := parts[2]

	if len(parts) == 4 && parts[3] == "permissions" && r.Method == http.MethodPut {
		var body struct {
			PermissionCodes []string `json:"permissionCodes"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		role, err := st.SetRolePermissions(actor, id, permCodes(body.PermissionCodes))
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, roleView(role))
		return
	}

	if len(parts) != 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var body struct {
			Name         *string `json:"name"`
			ParentRoleID *string `json:"parentRoleId"`
			ClearParent  bool    `json:"clearParent"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		role, ok := st.Role(id)
		if !ok {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		var err error
		if body.Name != nil {
			role, err = st.RenameRole(actor, id, *body.Name)
			if err != nil {
				writeMappedError(w, err)
				return
			}
		}
		if body.ClearParent {
			role, err = st.SetRoleParent(actor, id, "")
		} else if body.ParentRoleID != nil {
			role, err = st.SetRoleParent(actor, id, *body.ParentRoleID)
		}
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, roleView(role))
	case http.MethodDelete:
		if err := st.DeleteRole(actor, id); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		methodNotAllowed(w)
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	sess, err := s.service.SessionFromToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	return sess, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func sessionPayload(sess Session) map[string]any {
	return map[string]any{
		"token":        sess.Token,
		"refreshToken": sess.RefreshToken,
		"userId":       sess.UserID,
		"userName":     sess.UserName,
		"roleId":       sess.RoleID,
		"expiresAt":    sess.ExpiresAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func permCodes(raw []string) []perm.Code {
	codes := make([]perm.Code, 0, len(raw))
	for _, c := range raw {
		codes = append(codes, perm.Code(c))
	}
	return codes
}

