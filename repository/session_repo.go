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

type sessionRepo struct {
	collection *mongo.Collection
}

// NewSessionRepo returns a SessionStore backed by a mongo collection.
// Message history grows append-only via AppendMessages.
func NewSessionRepo(collection *mongo.Collection) database.SessionStore {
	return &sessionRepo{collection: collection}
}

func (r *sessionRepo) CreateSession(ctx context.Context, session *types.ChatSession) error {
	now := time.Now().Unix()
	session.CreatedAt = now
	session.UpdatedAt = now
	if session.Messages == nil {
		session.Messages = []types.ChatMessage{}
	}
	_, err := r.collection.InsertOne(ctx, session)
	return err
}

func (r *sessionRepo) GetSession(ctx context.Context, id string) (*types.ChatSession, error) {
	var session types.ChatSession
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) ListSessions(ctx context.Context, documentID string) ([]types.ChatSession, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{"document_id": documentID},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []types.ChatSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) AppendMessages(ctx context.Context, id string, messages ...types.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"messages": bson.M{"$each": messages}},
			"$set":  bson.M{"updated_at": time.Now().Unix()},
		},
	)
	return err
}
