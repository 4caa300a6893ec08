package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// exercisePersistence runs the common contract against a live backend
func exercisePersistence(t *testing.T, p SessionPersistence) {
	t.Helper()
	maps := newStubMaps()

	session, err := NewManager(nil).Create("", "test", maps["test"])
	require.NoError(t, err)
	require.NoError(t, session.Engine.SetWalkable(3, 0, false))
	t.Cleanup(func() { _ = p.Delete(session.ID) })

	require.NoError(t, p.Save(session))
	assert.True(t, p.Exists(session.ID))

	loaded, err := p.Load(session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, loaded.ID)
	assert.False(t, loaded.Engine.IsWalkable(3, 0))

	ids, err := p.ListAll()
	require.NoError(t, err)
	assert.Contains(t, ids, session.ID)

	require.NoError(t, p.Delete(session.ID))
	assert.False(t, p.Exists(session.ID))
	assert.ErrorIs(t, p.Delete(session.ID), ErrSessionNotFound)
	_, err = p.Load(session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisPersistence(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	exercisePersistence(t, NewRedisPersistence(client, newStubMaps(), time.Minute))
}

func TestMongoPersistence(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	require.NoError(t, client.Ping(ctx, nil))

	exercisePersistence(t, NewMongoPersistence(client, "gridpath_test", "", newStubMaps()))
}

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "gridpath:session:ab12", redisKey("AB12"))
}
