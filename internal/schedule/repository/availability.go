package repository

import (
	"context"
	"fmt"
	"time"

	"medsched/pkg/config"
	mongotx "medsched/pkg/db/mongo"
	"medsched/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Availability"
)

type AvailabilityRepository interface {
	FindRows(ctx context.Context, resourceID string, fromDate, toDate string) ([]model.AvailabilityRow, error)
	CountForResource(ctx context.Context, resourceID string) (int64, error)
	ReplaceRows(ctx context.Context, resourceID string, rows []model.AvailabilityRow) error
}

type mongoAvailabilityRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoAvailabilityRepository(cfg *config.Config) AvailabilityRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAvailabilityRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoAvailabilityRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// FindRows returns rows for a resource ordered by (date, window_start).
// Dates are stored as YYYY-MM-DD strings, so lexicographic range filters are
// also chronological.
func (r *mongoAvailabilityRepository) FindRows(ctx context.Context, resourceID string, fromDate, toDate string) ([]model.AvailabilityRow, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"resource_id": resourceID}
	if fromDate != "" || toDate != "" {
		dateFilter := bson.M{}
		if fromDate != "" {
			dateFilter["$gte"] = fromDate
		}
		if toDate != "" {
			dateFilter["$lte"] = toDate
		}
		filter["date"] = dateFilter
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "date", Value: 1},
		{Key: "window_start", Value: 1},
	})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query availability: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []model.AvailabilityRow
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode availability rows: %w", err)
	}
	return rows, nil
}

func (r *mongoAvailabilityRepository) CountForResource(ctx context.Context, resourceID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"resource_id": resourceID})
	if err != nil {
		return 0, fmt.Errorf("failed to count availability rows: %w", err)
	}
	return count, nil
}

// ReplaceRows swaps a resource's schedule atomically: old rows are deleted
// and the new set inserted inside one transaction.
func (r *mongoAvailabilityRepository) ReplaceRows(ctx context.Context, resourceID string, rows []model.AvailabilityRow) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	return r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := r.collection.DeleteMany(sessCtx, bson.M{"resource_id": resourceID}); err != nil {
			return fmt.Errorf("failed to clear availability: %w", err)
		}

		if len(rows) == 0 {
			return nil
		}

		docs := make([]any, 0, len(rows))
		for _, row := range rows {
			row.ResourceID = resourceID
			docs = append(docs, row)
		}
		if _, err := r.collection.InsertMany(sessCtx, docs); err != nil {
			return fmt.Errorf("failed to insert availability rows: %w", err)
		}
		return nil
	})
}
