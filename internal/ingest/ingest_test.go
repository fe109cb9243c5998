package ingest

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"roofflow/api/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(store.Options{SkipSeed: true})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(st.Close)

	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	svc := NewWithClock("webhook-secret", st, func() time.Time { return now })
	return svc, st
}

func signedRequest(svc *Service, body []byte) (timestamp, signature string) {
	ts := strconv.FormatInt(svc.clock().Unix(), 10)
	return ts, Sign(svc.secret, ts, body)
}

func TestIngestCreatesExternalTodo(t *testing.T) {
	svc, st := newTestService(t)
	body := []byte(`{"channel":"#ops","messageRef":"slack_123","senderName":"Miguel","text":"Follow up with the inspector"}`)
	ts, sig := signedRequest(svc, body)

	todo, err := svc.Ingest(ts, sig, body)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if todo.Source != "external" {
		t.Errorf("source = %q, want external", todo.Source)
	}
	if todo.SourceMeta == nil || todo.SourceMeta.MessageRef != "slack_123" {
		t.Errorf("sourceMeta = %+v", todo.SourceMeta)
	}
	if len(st.Todos()) != 1 {
		t.Errorf("todos = %d, want 1", len(st.Todos()))
	}
}

func TestIngestRedeliveryIsIdempotent(t *testing.T) {
	svc, st := newTestService(t)
	body := []byte(`{"channel":"#ops","messageRef":"slack_777","senderName":"Dana","text":"Send the warranty docs"}`)
	ts, sig := signedRequest(svc, body)

	first, err := svc.Ingest(ts, sig, body)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	second, err := svc.Ingest(ts, sig, body)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("redelivery created new todo %q, want %q", second.ID, first.ID)
	}
	if len(st.Todos()) != 1 {
		t.Errorf("todos = %d, want 1", len(st.Todos()))
	}
}

func TestIngestRejectsBadSignature(t *testing.T) {
	svc, _ := newTestService(t)
	body := []byte(`{"messageRef":"m1","text":"hi"}`)
	ts, _ := signedRequest(svc, body)

	_, err := svc.Ingest(ts, "deadbeef", body)
	if !errors.Is(err, ErrBadSignature) {
		t.Errorf("err = %v, want ErrBadSignature", err)
	}

	// A valid signature over different bytes also fails.
	_, sig := signedRequest(svc, []byte(`{"messageRef":"m1","text":"tampered"}`))
	if _, err := svc.Ingest(ts, sig, body); !errors.Is(err, ErrBadSignature) {
		t.Errorf("err = %v, want ErrBadSignature", err)
	}
}

func TestIngestRejectsStaleTimestamp(t *testing.T) {
	svc, _ := newTestService(t)
	body := []byte(`{"messageRef":"m2","text":"old news"}`)

	stale := strconv.FormatInt(svc.clock().Add(-10*time.Minute).Unix(), 10)
	sig := Sign(svc.secret, stale, body)
	if _, err := svc.Ingest(stale, sig, body); !errors.Is(err, ErrStaleTimestamp) {
		t.Errorf("err = %v, want ErrStaleTimestamp", err)
	}

	if _, err := svc.Ingest("not-a-number", sig, body); !errors.Is(err, ErrStaleTimestamp) {
		t.Errorf("err = %v, want ErrStaleTimestamp", err)
	}
}

func TestIngestRejectsBadPayload(t *testing.T) {
	svc, _ := newTestService(t)
	cases := []struct {
		name string
		body string
	}{
		{name: "not json", body: "nope"},
		{name: "missing text", body: `{"messageRef":"m3"}`},
		{name: "missing messageRef", body: `{"text":"hello"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := []byte(tc.body)
			ts, sig := signedRequest(svc, body)
			if _, err := svc.Ingest(ts, sig, body); !errors.Is(err, ErrBadPayload) {
				t.Errorf("err = %v, want ErrBadPayload", err)
			}
		})
	}
}

func TestSignIsDeterministic(t *testing.T) {
	secret := []byte("s")
	a := Sign(secret, "100", []byte("body"))
	b := Sign(secret, "100", []byte("body"))
	if a != b {
		t.Fatal("signatures differ for identical input")
	}
	if c := Sign(secret, "101", []byte("body")); c == a {
		t.Fatal("timestamp not bound into signature")
	}
}
