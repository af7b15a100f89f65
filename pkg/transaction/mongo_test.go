package transaction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	errs "github.com/iceymoss/go-solo/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// 需要副本集，通过 SOLO_TEST_MONGO_URI 指定
func openTestMongo(t *testing.T) (*mongo.Client, *mongo.Collection) {
	t.Helper()
	uri := os.Getenv("SOLO_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("SOLO_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)

	database := client.Database(fmt.Sprintf("solo_tx_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		_ = database.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	coll := database.Collection("articles")
	// 事务内不能隐式建集合
	require.NoError(t, database.CreateCollection(ctx, "articles"))
	return client, coll
}

func TestMongoManager_CommitAndRollback(t *testing.T) {
	client, coll := openTestMongo(t)
	txManager := NewMongoManager(client, nil)
	ctx := context.Background()

	assert.False(t, InMongoTransaction(ctx))
	require.NoError(t, txManager.Execute(ctx, func(ctx context.Context) error {
		assert.True(t, InMongoTransaction(ctx))
		_, err := coll.InsertOne(ctx, bson.D{{Key: "_id", Value: "a1"}})
		return err
	}))

	boom := errors.New("boom")
	err := txManager.Execute(ctx, func(ctx context.Context) error {
		if _, err := coll.InsertOne(ctx, bson.D{{Key: "_id", Value: "a2"}}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, errs.ErrTransaction))

	n, err := coll.CountDocuments(ctx, bson.D{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
