package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := NewRedisStoreWithClient(client)
	t.Cleanup(func() { st.Close() })
	return st, mr
}

func TestSaveAndLookup(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	data := TokenData{UserID: "usr_abc", DisplayName: "Dana", RoleID: "rl_owner"}
	if err := st.Save(ctx, "hash1", data, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := st.Lookup(ctx, "hash1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.UserID != "usr_abc" || got.DisplayName != "Dana" || got.RoleID != "rl_owner" {
		t.Errorf("data = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not defaulted on save")
	}
}

func TestLookupUnknownToken(t *testing.T) {
	st, _ := newTestStore(t)
	if _, err := st.Lookup(context.Background(), "never-saved"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveRejectsPastExpiry(t *testing.T) {
	st, _ := newTestStore(t)
	err := st.Save(context.Background(), "h", TokenData{UserID: "u"}, time.Now().Add(-time.Minute))
	if err == nil {
		t.Fatal("expected error for already-expired session")
	}
}

func TestSessionExpires(t *testing.T) {
	st, mr := newTestStore(t)
	ctx := context.Background()

	if err := st.Save(ctx, "h", TokenData{UserID: "u"}, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := st.Lookup(ctx, "h"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after TTL", err)
	}
}

func TestRevoke(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	if err := st.Save(ctx, "h", TokenData{UserID: "u"}, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := st.Revoke(ctx, "h"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := st.Lookup(ctx, "h"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after revoke", err)
	}
	// Revoking again is a no-op.
	if err := st.Revoke(ctx, "h"); err != nil {
		t.Errorf("second Revoke: %v", err)
	}
}
