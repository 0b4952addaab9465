package locking

import (
	"context"
	"time"

	"medsched/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const acquirePollInterval = 100 * time.Millisecond

// MongoProvider implements Provider with advisory lock documents. Inserting
// a document whose _id is the lock key either succeeds (lock acquired) or
// fails with a duplicate key error (lock held). Locks carry an expiry so a
// crashed holder cannot wedge a resource forever.
type MongoProvider struct {
	collection *mongo.Collection
	ttl        time.Duration
}

func NewMongoProvider(collection *mongo.Collection, ttl time.Duration) *MongoProvider {
	return &MongoProvider{
		collection: collection,
		ttl:        ttl,
	}
}

func (p *MongoProvider) Acquire(ctx context.Context, key string, wait time.Duration) (Handle, error) {
	owner := uuid.New().String()
	deadline := time.Now().Add(wait)

	for {
		now := time.Now()

		// Reap an expired holder before trying; the TTL index is only a
		// backstop with minute-level granularity.
		_, _ = p.collection.DeleteOne(ctx, bson.M{
			"_id":        key,
			"expires_at": bson.M{"$lt": now},
		})

		_, err := p.collection.InsertOne(ctx, &model.BookingLock{
			ID:        key,
			Owner:     owner,
			ExpiresAt: now.Add(p.ttl),
			CreatedAt: now,
		})
		if err == nil {
			return &mongoHandle{collection: p.collection, key: key, owner: owner}, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, err
		}

		if time.Now().Add(acquirePollInterval).After(deadline) {
			return nil, ErrLockTimeout
		}

		timer := time.NewTimer(acquirePollInterval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

type mongoHandle struct {
	collection *mongo.Collection
	key        string
	owner      string
}

func (h *mongoHandle) Release(ctx context.Context) error {
	_, err := h.collection.DeleteOne(ctx, bson.M{"_id": h.key, "owner": h.owner})
	return err
}
