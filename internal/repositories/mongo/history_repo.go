// Package mongo stores chat sessions and messages in MongoDB.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mohammadjaf013/findlanqbot/internal/models"
	"github.com/mohammadjaf013/findlanqbot/internal/repositories"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

const (
	SessionsCollection = "sessions"
	MessagesCollection = "messages"
)

// messageDoc adds the TTL field the messages collection expires on.
type messageDoc struct {
	models.Message `bson:",inline"`
	ExpiresAt      time.Time `bson:"expires_at"`
}

type historyRepo struct {
	sessions *mongo.Collection
	messages *mongo.Collection
}

func NewHistoryRepo(db *mongo.Database) repositories.HistoryStore {
	return &historyRepo{
		sessions: db.Collection(SessionsCollection),
		messages: db.Collection(MessagesCollection),
	}
}

func (r *historyRepo) TouchSession(ctx context.Context, sessionID string, at, expiresAt time.Time) (*models.Session, error) {
	var s models.Session
	err := r.sessions.FindOneAndUpdate(ctx,
		bson.M{"_id": sessionID},
		bson.M{
			"$set":         bson.M{"last_activity": at.UTC(), "expires_at": expiresAt.UTC()},
			"$setOnInsert": bson.M{"created_at": at.UTC()},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&s)
	if err != nil {
		return nil, err
	}

	// messages share the session lifetime
	_, err = r.messages.UpdateMany(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"expires_at": expiresAt.UTC()}},
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *historyRepo) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var s models.Session
	err := r.sessions.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *historyRepo) AppendMessage(ctx context.Context, msg *models.Message) error {
	sess, err := r.GetSession(ctx, msg.SessionID)
	if err != nil {
		return err
	}
	_, err = r.messages.InsertOne(ctx, messageDoc{Message: *msg, ExpiresAt: sess.ExpiresAt})
	return err
}

func (r *historyRepo) ListMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := r.messages.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]models.Message, len(docs))
	for i := range docs {
		out[len(docs)-1-i] = docs[i].Message
	}
	return out, nil
}

func (r *historyRepo) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := r.messages.DeleteMany(ctx, bson.M{"session_id": sessionID}); err != nil {
		return err
	}
	_, err := r.sessions.DeleteOne(ctx, bson.M{"_id": sessionID})
	return err
}

func (r *historyRepo) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{"last_activity": bson.M{"$lt": cutoff.UTC()}}

	ids, err := r.sessions.Distinct(ctx, "_id", filter)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if _, err := r.messages.DeleteMany(ctx, bson.M{"session_id": bson.M{"$in": ids}}); err != nil {
		return 0, err
	}
	res, err := r.sessions.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
