// Package app owns the HTTP surface of the Roof Flow API: one Service
// holding the collaborators and one handler routing requests onto them.
package app

import (
	"context"
	"time"

	"roofflow/api/internal/auth"
	"roofflow/api/internal/authpw"
	"roofflow/api/internal/config"
	"roofflow/api/internal/domain"
	"roofflow/api/internal/ingest"
	"roofflow/api/internal/perm"
	"roofflow/api/internal/search"
	"roofflow/api/internal/session"
	"roofflow/api/internal/store"
	"roofflow/api/internal/util"
)

// Session is the authenticated request context derived from a bearer
// token. Role data is re-read from the roster, never trusted from the
// token.
type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	RoleID       string
	JTI          string
	ExpiresAt    time.Time
}

// SessionStore persists refresh sessions. session.RedisStore and
// session.MemoryStore implement it.
type SessionStore interface {
	Save(ctx context.Context, tokenHash string, data session.TokenData, expiresAt time.Time) error
	Lookup(ctx context.Context, tokenHash string) (session.TokenData, error)
	Revoke(ctx context.Context, tokenHash string) error
}

// Pinger is anything with a liveness check; the readiness probe walks a
// named set of them.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Service struct {
	cfg       config.Config
	store     *store.Store
	search    *search.Service
	sessions  SessionStore
	passwords *authpw.Service
	ingest    *ingest.Service
	checks    map[string]Pinger
}

func NewService(cfg config.Config, st *store.Store, searchSvc *search.Service, sessions SessionStore) *Service {
	svc := &Service{
		cfg:       cfg,
		store:     st,
		search:    searchSvc,
		sessions:  sessions,
		passwords: authpw.New(st),
		checks:    make(map[string]Pinger),
	}
	if cfg.WebhookSecret != "" {
		svc.ingest = ingest.New(cfg.WebhookSecret, st)
	}
	return svc
}

// RegisterCheck adds a dependency to the readiness probe.
func (s *Service) RegisterCheck(name string, p Pinger) {
	s.checks[name] = p
}

func (s *Service) Store() *store.Store        { return s.store }
func (s *Service) Passwords() *authpw.Service { return s.passwords }

// Login exchanges email/password for an access + refresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.passwords.SignIn(email, password)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token: the old session is revoked and a new
// pair is issued for the same user.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	data, err := s.sessions.Lookup(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.Revoke(ctx, tokenHash); err != nil {
		return Session{}, err
	}

	user, ok := s.store.User(data.UserID)
	if !ok || !user.Active() {
		return Session{}, auth.ErrInvalidToken
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user domain.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:    user.ID,
		Name:   user.DisplayName,
		RoleID: user.RoleID,
		JTI:    jti,
		Exp:    expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewToken()
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	err = s.sessions.Save(ctx, auth.HashToken(refresh), session.TokenData{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		RoleID:      user.RoleID,
	}, refreshExpires)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		RoleID:       user.RoleID,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// SessionFromToken validates a bearer token and resolves the current
// user. Deactivated users are rejected even with a valid token.
func (s *Service) SessionFromToken(token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, ok := s.store.User(claims.Sub)
	if !ok || !user.Active() {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		RoleID:    user.RoleID,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, auth.HashToken(refreshToken))
}

// Actor resolves the domain user behind a session for permission-gated
// store calls.
func (s *Service) Actor(sess Session) (domain.User, bool) {
	return s.store.User(sess.UserID)
}

// Can answers presentation-layer permission pre-checks; the store
// re-enforces the same predicate inside each gated mutator.
func (s *Service) Can(sess Session, code perm.Code) bool {
	actor, ok := s.Actor(sess)
	if !ok {
		return false
	}
	return s.store.Can(actor, code)
}

// Ready pings every registered dependency with a shared deadline.
func (s *Service) Ready(ctx context.Context) map[string]error {
	results := make(map[string]error, len(s.checks))
	for name, p := range s.checks {
		results[name] = p.Ping(ctx)
	}
	return results
}

func (s *Service) Search(q search.Query) (search.Response, error) {
	results, total, err := s.search.Search(q)
	if err != nil {
		return search.Response{}, err
	}
	if results == nil {
		results = []search.Result{}
	}
	return search.Response{Results: results, Total: total, Query: q.Text}, nil
}

func (s *Service) Ingest(timestamp, signature string, body []byte) (domain.TodoItem, error) {
	if s.ingest == nil {
		return domain.TodoItem{}, domainError(503, "INGEST_DISABLED", "Webhook ingestion is not configured", nil)
	}
	return s.ingest.Ingest(timestamp, signature, body)
}
