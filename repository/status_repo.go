package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/doqment/docqa-be/database"
	"github.com/doqment/docqa-be/types"
)

type statusRepo struct {
	collection *mongo.Collection
}

// NewStatusRepo returns a StatusStore backed by a mongo collection keyed by
// document id.
func NewStatusRepo(collection *mongo.Collection) database.StatusStore {
	return &statusRepo{collection: collection}
}

func (r *statusRepo) UpsertStatus(ctx context.Context, status *types.IndexingJobStatus) error {
	status.UpdatedAt = time.Now().Unix()
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": status.DocumentID},
		status,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *statusRepo) GetStatus(ctx context.Context, documentID string) (*types.IndexingJobStatus, error) {
	var status types.IndexingJobStatus
	err := r.collection.FindOne(ctx, bson.M{"_id": documentID}).Decode(&status)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (r *statusRepo) DeleteStatus(ctx context.Context, documentID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": documentID})
	return err
}
