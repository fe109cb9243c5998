package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestNotifier(t *testing.T) (*Notifier, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	n, err := NewNotifier("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create notifier: %v", err)
	}
	return n, s
}

func TestChannelFor(t *testing.T) {
	got := ChannelFor(Scope{CompanyID: "co_1", TeamID: "tm_2"})
	want := "roofflow:co_1:tm_2:changes"
	if got != want {
		t.Fatalf("ChannelFor = %q, want %q", got, want)
	}
}

func TestNewNotifierBadURL(t *testing.T) {
	if _, err := NewNotifier("not-a-url"); err == nil {
		t.Fatal("expected error for malformed redis url")
	}
}

func TestAnnounceDeliversCollectionName(t *testing.T) {
	n, s := setupTestNotifier(t)
	defer n.Close()
	defer s.Close()

	ctx := context.Background()
	scope := Scope{CompanyID: "co_a", TeamID: "tm_b"}

	opts, err := redis.ParseURL("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	pubsub := client.Subscribe(ctx, ChannelFor(scope))
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	n.Announce(ctx, scope, "todos")

	select {
	case msg := <-pubsub.Channel():
		if msg.Payload != "todos" {
			t.Errorf("payload = %q, want %q", msg.Payload, "todos")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change announcement received")
	}
}

func TestAnnounceScopesAreIsolated(t *testing.T) {
	n, s := setupTestNotifier(t)
	defer n.Close()
	defer s.Close()

	ctx := context.Background()
	mine := Scope{CompanyID: "co_mine", TeamID: "tm_1"}
	theirs := Scope{CompanyID: "co_theirs", TeamID: "tm_1"}

	opts, _ := redis.ParseURL("redis://" + s.Addr())
	client := redis.NewClient(opts)
	defer client.Close()

	pubsub := client.Subscribe(ctx, ChannelFor(mine))
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	n.Announce(ctx, theirs, "issues")
	n.Announce(ctx, mine, "goals")

	select {
	case msg := <-pubsub.Channel():
		if msg.Payload != "goals" {
			t.Errorf("leaked cross-tenant announcement: %q", msg.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no announcement received for own scope")
	}
}
