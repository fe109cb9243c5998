// Package ingest accepts externally-sourced to-dos from a chat integration
// webhook. Requests are HMAC-verified and deduplicated on the origin message
// reference, so redelivered webhooks never create duplicate to-dos.
package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"roofflow/api/internal/domain"
	"roofflow/api/internal/store"
)

var (
	ErrBadSignature   = errors.New("invalid webhook signature")
	ErrStaleTimestamp = errors.New("webhook timestamp outside replay window")
	ErrBadPayload     = errors.New("invalid webhook payload")
)

// replayWindow bounds how old a signed timestamp may be.
const replayWindow = 5 * time.Minute

// Envelope is the chat integration's message shape.
type Envelope struct {
	Channel    string `json:"channel"`
	MessageRef string `json:"messageRef"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
}

type Service struct {
	secret []byte
	store  *store.Store
	clock  func() time.Time
}

func New(secret string, st *store.Store) *Service {
	return &Service{secret: []byte(secret), store: st, clock: time.Now}
}

// NewWithClock is for tests.
func NewWithClock(secret string, st *store.Store, clock func() time.Time) *Service {
	return &Service{secret: []byte(secret), store: st, clock: clock}
}

// Sign computes the signature the integration is expected to send:
// hex(HMAC-SHA256(secret, timestamp + "." + body)).
func Sign(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the signed timestamp and body signature with a
// constant-time compare.
func (s *Service) Verify(timestamp, signature string, body []byte) error {
	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrStaleTimestamp
	}
	sent := time.Unix(unix, 0)
	now := s.clock()
	if sent.Before(now.Add(-replayWindow)) || sent.After(now.Add(replayWindow)) {
		return ErrStaleTimestamp
	}

	expected := Sign(s.secret, timestamp, body)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrBadSignature
	}
	return nil
}

// Ingest verifies and applies one webhook delivery, returning the created
// (or previously created) to-do.
func (s *Service) Ingest(timestamp, signature string, body []byte) (domain.TodoItem, error) {
	if err := s.Verify(timestamp, signature, body); err != nil {
		return domain.TodoItem{}, err
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return domain.TodoItem{}, ErrBadPayload
	}
	if strings.TrimSpace(env.Text) == "" || env.MessageRef == "" {
		return domain.TodoItem{}, ErrBadPayload
	}

	todo, err := s.store.CreateExternalTodo(env.Text, domain.SourceMeta{
		Channel:    env.Channel,
		MessageRef: env.MessageRef,
		SenderName: env.SenderName,
	})
	if err != nil {
		return domain.TodoItem{}, err
	}
	return todo, nil
}
