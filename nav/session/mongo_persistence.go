package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wricardo/gridpath/nav/service"
)

// DefaultMongoCollection holds sessions when no collection name is given
const DefaultMongoCollection = "sessions"

const mongoTimeout = 2 * time.Second

// MongoPersistence implements SessionPersistence on a MongoDB collection, one document per session
type MongoPersistence struct {
	collection *mongo.Collection
	maps       service.MapManager
}

// NewMongoPersistence creates a MongoDB-backed persistence layer
func NewMongoPersistence(client *mongo.Client, dbName, collectionName string, maps service.MapManager) *MongoPersistence {
	if collectionName == "" {
		collectionName = DefaultMongoCollection
	}
	return &MongoPersistence{
		collection: client.Database(dbName).Collection(collectionName),
		maps:       maps,
	}
}

// Save upserts a session document
func (mp *MongoPersistence) Save(session *service.Session) error {
	data, err := newPersistedData(session)
	if err != nil {
		return err
	}
	data.ID = strings.ToLower(data.ID)

	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	filter := bson.M{"_id": data.ID}
	opts := options.Replace().SetUpsert(true)
	if _, err := mp.collection.ReplaceOne(ctx, filter, data, opts); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load retrieves a session document by ID
func (mp *MongoPersistence) Load(id string) (*service.Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	var data PersistedSessionData
	if err := mp.collection.FindOne(ctx, bson.M{"_id": strings.ToLower(id)}).Decode(&data); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return data.restore(mp.maps)
}

// Delete removes a session document
func (mp *MongoPersistence) Delete(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	res, err := mp.collection.DeleteOne(ctx, bson.M{"_id": strings.ToLower(id)})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListAll returns all persisted session IDs
func (mp *MongoPersistence) ListAll() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	cursor, err := mp.collection.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode session IDs: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// Exists checks if a session document exists
func (mp *MongoPersistence) Exists(id string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	n, err := mp.collection.CountDocuments(ctx, bson.M{"_id": strings.ToLower(id)}, options.Count().SetLimit(1))
	return err == nil && n > 0
}
