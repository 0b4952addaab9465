package repository

import (
	"context"
	"fmt"
	"time"

	"medsched/pkg/config"
	"medsched/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Mirror_events"
)

// MirrorRepository is append-only: events are inserted and read, never
// updated or deleted.
type MirrorRepository interface {
	Append(ctx context.Context, record *model.MirrorRecord) error
	FindByResource(ctx context.Context, resourceID string) ([]model.MirrorRecord, error)
}

type mongoMirrorRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoMirrorRepository(cfg *config.Config) MirrorRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoMirrorRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoMirrorRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoMirrorRepository) Append(ctx context.Context, record *model.MirrorRecord) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	record.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to append mirror event: %w", err)
	}
	return nil
}

// FindByResource returns all events for a resource in append order.
func (r *mongoMirrorRepository) FindByResource(ctx context.Context, resourceID string) ([]model.MirrorRecord, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"resource_id": resourceID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query mirror events: %w", err)
	}
	defer cursor.Close(ctx)

	var records []model.MirrorRecord
	for cursor.Next(ctx) {
		var rec model.MirrorRecord
		if err := cursor.Decode(&rec); err != nil {
			// A corrupt event must not take the whole mirror offline.
			r.cfg.Log.Warn("Skipping undecodable mirror event", "resource_id", resourceID, "error", err)
			continue
		}
		records = append(records, rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mirror events: %w", err)
	}
	return records, nil
}
