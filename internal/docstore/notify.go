package docstore

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Notifier announces collection changes on a per-tenant Redis channel. The
// message payload is the collection name; subscribers reload that collection
// and deliver its full document set.
type Notifier struct {
	client *redis.Client
}

func NewNotifier(redisURL string) (*Notifier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Notifier{client: client}, nil
}

// NewNotifierWithClient wraps an existing Redis client.
func NewNotifierWithClient(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

// ChannelFor returns the change channel for a tenant scope.
func ChannelFor(scope Scope) string {
	return "roofflow:" + scope.CompanyID + ":" + scope.TeamID + ":changes"
}

// Announce publishes a collection-changed event. Failures are logged, not
// returned: a missed announcement only delays convergence until the next one.
func (n *Notifier) Announce(ctx context.Context, scope Scope, collection string) {
	if err := n.client.Publish(ctx, ChannelFor(scope), collection).Err(); err != nil {
		log.Printf("docstore: announce %s change: %v", collection, err)
	}
}

func (n *Notifier) Ping(ctx context.Context) error {
	return n.client.Ping(ctx).Err()
}

func (n *Notifier) Close() error {
	return n.client.Close()
}

// Subscribe delivers the full current document set for a collection, then
// redelivers it after every announced change. The returned cancel tears the
// subscription down; it is safe to call more than once.
func (t *Tenant) Subscribe(ctx context.Context, collection string, fn func([]Document)) (func(), error) {
	docs, err := t.List(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("initial load %s: %w", collection, err)
	}
	fn(docs)

	if t.notifier == nil {
		return func() {}, nil
	}

	pubsub := t.notifier.client.Subscribe(ctx, ChannelFor(t.scope))
	done := make(chan struct{})

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload != collection {
					continue
				}
				docs, err := t.List(ctx, collection)
				if err != nil {
					log.Printf("docstore: reload %s: %v", collection, err)
					continue
				}
				fn(docs)
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}
	return cancel, nil
}
