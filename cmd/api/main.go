package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"roofflow/api/internal/app"
	"roofflow/api/internal/authpw"
	"roofflow/api/internal/config"
	"roofflow/api/internal/docstore"
	"roofflow/api/internal/search"
	"roofflow/api/internal/session"
	"roofflow/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// The seeded owner gets a credential so the first sign-in works on a
	// fresh deployment, standalone or synced.
	ownerHash, err := authpw.HashPassword(cfg.BootstrapPassword)
	if err != nil {
		log.Fatalf("ROOFFLOW_BOOTSTRAP_PASSWORD rejected: %v", err)
	}
	if os.Getenv("ROOFFLOW_BOOTSTRAP_PASSWORD") == "" {
		log.Printf("ROOFFLOW_BOOTSTRAP_PASSWORD not set, owner sign-in uses the built-in dev password")
	}

	opts := store.Options{
		MaxIssuePriority:  cfg.MaxIssuePriority,
		OwnerPasswordHash: ownerHash,
		SeedEmptyRemote:   true,
		OnSyncError: func(op string, err error) {
			log.Printf("sync: %s failed and was rolled back: %v", op, err)
		},
	}

	// With a database the store mirrors a tenant-scoped document store;
	// without one it runs standalone on seeded data.
	var tenant *docstore.Tenant
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := docstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()

		if err := docstore.ApplyMigrations(ctx, db); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}

		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Fatalf("synced mode requires REDIS_URL for change-stream notifications")
		}
		notifier, err := docstore.NewNotifier(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer notifier.Close()

		scope := docstore.Scope{CompanyID: cfg.CompanyID, TeamID: cfg.TeamID}
		tenant = docstore.NewTenant(db, scope, notifier)
		opts.Remote = tenant
		log.Printf("Syncing tenant %s/%s", cfg.CompanyID, cfg.TeamID)
	} else {
		log.Printf("No DATABASE_URL set, running standalone with seeded data")
	}

	st, err := store.Open(opts)
	if err != nil {
		log.Fatalf("store open failed: %v", err)
	}
	defer st.Close()

	searchService := search.New(cfg.MeiliURL, cfg.MeiliMasterKey, st)
	defer searchService.Close()
	st.SetIndexer(searchService)

	var sessions app.SessionStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis session store failed: %v", err)
		}
		defer redisStore.Close()
		sessions = redisStore
	} else {
		log.Printf("No REDIS_URL set, sessions will not survive restarts")
		sessions = session.NewMemoryStore()
	}

	service := app.NewService(cfg, st, searchService, sessions)
	if tenant != nil {
		service.RegisterCheck("database", tenant)
	}
	if pinger, ok := sessions.(interface {
		Ping(ctx context.Context) error
	}); ok {
		service.RegisterCheck("redis", pinger)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Roof Flow API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
