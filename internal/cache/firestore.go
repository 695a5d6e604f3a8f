package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type firestoreEntry struct {
	Value     string    `firestore:"value"`
	ExpiresAt time.Time `firestore:"expiresAt"`
}

type firestoreCounter struct {
	Value int64 `firestore:"value"`
}

// FirestoreStore keeps entries as documents keyed by cache key, for
// deployments where several instances share one cache.
type FirestoreStore struct {
	client   *firestore.Client
	entries  string
	counters string
	now      Clock
	logger   *slog.Logger
}

// NewFirestoreClient creates a Firestore client for the given project.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return client, nil
}

func NewFirestoreStore(client *firestore.Client, collection string, logger *slog.Logger) *FirestoreStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FirestoreStore{
		client:   client,
		entries:  collection,
		counters: collection + "_counters",
		now:      time.Now,
		logger:   logger,
	}
}

func (f *FirestoreStore) Get(ctx context.Context, key string) (string, bool, error) {
	snap, err := f.client.Collection(f.entries).Doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("firestore get: %w", err)
	}
	var e firestoreEntry
	if err := snap.DataTo(&e); err != nil {
		return "", false, fmt.Errorf("firestore decode: %w", err)
	}
	if !e.ExpiresAt.IsZero() && !f.now().Before(e.ExpiresAt) {
		return "", false, nil
	}
	return e.Value, true, nil
}

func (f *FirestoreStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	e := firestoreEntry{Value: value, ExpiresAt: expiry(f.now(), ttl)}
	if _, err := f.client.Collection(f.entries).Doc(key).Set(ctx, e); err != nil {
		return fmt.Errorf("firestore set: %w", err)
	}
	return nil
}

func (f *FirestoreStore) Increment(ctx context.Context, key string) (int64, error) {
	ref := f.client.Collection(f.counters).Doc(key)
	var next int64
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var cur firestoreCounter
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			if err := snap.DataTo(&cur); err != nil {
				return err
			}
		}
		next = cur.Value + 1
		return tx.Set(ref, firestoreCounter{Value: next})
	})
	if err != nil {
		return 0, fmt.Errorf("firestore increment: %w", err)
	}
	return next, nil
}

func (f *FirestoreStore) PurgeExpired(ctx context.Context) (int, error) {
	it := f.client.Collection(f.entries).
		Where("expiresAt", "<=", f.now()).
		Documents(ctx)
	defer it.Stop()

	n := 0
	for {
		doc, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("firestore purge: %w", err)
		}
		var e firestoreEntry
		if err := doc.DataTo(&e); err == nil && e.ExpiresAt.IsZero() {
			continue
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			f.logger.Warn("failed to delete expired cache doc", "doc", doc.Ref.ID, "error", err)
			continue
		}
		n++
	}
	return n, nil
}

func (f *FirestoreStore) Close() error {
	return f.client.Close()
}
