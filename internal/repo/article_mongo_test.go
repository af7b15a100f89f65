package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/iceymoss/go-solo/pkg/db"
	"github.com/iceymoss/go-solo/pkg/db/objects"
	errs "github.com/iceymoss/go-solo/pkg/errors"
	"github.com/iceymoss/go-solo/pkg/idgen"
	"github.com/iceymoss/go-solo/pkg/query"
	"github.com/iceymoss/go-solo/pkg/transaction"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestLikeToRegex(t *testing.T) {
	assert.Equal(t, "^article.*$", likeToRegex("article%"))
	assert.Equal(t, "^.*title.$", likeToRegex("%title_"))
	assert.Equal(t, `^a\.b\+c$`, likeToRegex("a.b+c"))
}

func TestMongoFilters(t *testing.T) {
	conds := mongoFilters([]query.Filter{
		{Field: query.FieldID, Op: query.NotEqual, Value: "1"},
		{Field: query.FieldCreated, Op: query.GreaterThanOrEqual, Value: int64(10)},
		{Field: query.FieldPermalink, Op: query.In, Value: []string{"a", "b"}},
		{Field: query.FieldTitle, Op: query.Like, Value: "x%"},
	})
	require.Len(t, conds, 4)
	assert.Equal(t, bson.D{{Key: "_id", Value: bson.D{{Key: "$ne", Value: "1"}}}}, conds[0])
	assert.Equal(t, bson.D{{Key: "created", Value: bson.D{{Key: "$gte", Value: int64(10)}}}}, conds[1])
	assert.Equal(t, bson.D{{Key: "permalink", Value: bson.D{{Key: "$in", Value: []string{"a", "b"}}}}}, conds[2])
	assert.Equal(t, bson.D{{Key: "title", Value: bson.D{{Key: "$regex", Value: "^x.*$"}}}}, conds[3])
}

func TestMongoSortAndWhere(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "put_top", Value: -1}, {Key: "created", Value: -1}, {Key: "_id", Value: -1}}, mongoSort(defaultSorts))

	w := where(byID("1"))
	require.Len(t, w, 1)
	assert.Equal(t, "$and", w[0].Key)
	assert.Equal(t, bson.A{notDeleted, bson.D{{Key: "_id", Value: "1"}}}, w[0].Value)
}

func TestNeighbourAndRandomRange(t *testing.T) {
	current := &objects.Article{ID: "b", Created: 2000}

	assert.Equal(t, bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "created", Value: bson.D{{Key: "$lt", Value: int64(2000)}}}},
		bson.D{{Key: "created", Value: int64(2000)}, {Key: "_id", Value: bson.D{{Key: "$lt", Value: "b"}}}},
	}}}, neighbour(current, "$lt"))

	assert.Equal(t, bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "created", Value: bson.D{{Key: "$gt", Value: int64(2000)}}}},
		bson.D{{Key: "created", Value: int64(2000)}, {Key: "_id", Value: bson.D{{Key: "$gt", Value: "b"}}}},
	}}}, neighbour(current, "$gt"))

	// 两段区间互不重叠
	assert.Equal(t, bson.D{{Key: "random_double", Value: bson.D{{Key: "$gte", Value: 0.5}}}}, randomRange("$gte", 0.5))
	assert.Equal(t, bson.D{{Key: "random_double", Value: bson.D{{Key: "$lt", Value: 0.5}}}}, randomRange("$lt", 0.5))
}

const mockNS = "solo.solo_articles"

func articleDoc(id string, created int64, randomDouble float64, status objects.ArticleStatus) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "title", Value: "article " + id},
		{Key: "permalink", Value: "permalink " + id},
		{Key: "status", Value: int32(status)},
		{Key: "created", Value: created},
		{Key: "random_double", Value: randomDouble},
	}
}

func found(docs ...bson.D) bson.D {
	return mtest.CreateCursorResponse(0, mockNS, mtest.FirstBatch, docs...)
}

// 使用 mongo-driver 自带的模拟部署，不需要真实服务端
func TestMongoArticleRepo_MockReads(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("get and is published", func(mt *mtest.T) {
		r := NewMongoArticleRepo(mt.DB, idgen.NewUUIDGenerator())
		ctx := context.Background()

		mt.AddMockResponses(found(articleDoc("a1", 1000, 0.1, objects.ArticleStatusPublished)))
		got, err := r.Get(ctx, "a1")
		require.NoError(mt, err)
		require.NotNil(mt, got)
		assert.Equal(mt, "a1", got.ID)
		assert.Equal(mt, "article a1", got.Title)
		assert.Equal(mt, int64(1000), got.Created)

		mt.AddMockResponses(found())
		got, err = r.GetByPermalink(ctx, "missing")
		require.NoError(mt, err)
		assert.Nil(mt, got)

		mt.AddMockResponses(found(articleDoc("a2", 2000, 0.2, objects.ArticleStatusDraft)))
		ok, err := r.IsPublished(ctx, "a2")
		require.NoError(mt, err)
		assert.False(mt, ok)

		mt.AddMockResponses(found())
		ok, err = r.IsPublished(ctx, "missing")
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("previous clears id", func(mt *mtest.T) {
		r := NewMongoArticleRepo(mt.DB, idgen.NewUUIDGenerator())
		mt.AddMockResponses(
			found(articleDoc("a2", 2000, 0.2, objects.ArticleStatusPublished)),
			found(articleDoc("a1", 1000, 0.1, objects.ArticleStatusPublished)),
		)
		prev, err := r.GetPreviousArticle(context.Background(), "a2")
		require.NoError(mt, err)
		require.NotNil(mt, prev)
		assert.Empty(mt, prev.ID)
		assert.Equal(mt, "permalink a1", prev.Permalink)

		// 当前文章不存在时不再查询邻居
		mt.ClearEvents()
		mt.AddMockResponses(found())
		next, err := r.GetNextArticle(context.Background(), "missing")
		require.NoError(mt, err)
		assert.Nil(mt, next)
		require.NotNil(mt, mt.GetStartedEvent())
		assert.Nil(mt, mt.GetStartedEvent())
	})

	mt.Run("random wraps around pivot", func(mt *mtest.T) {
		r := NewMongoArticleRepo(mt.DB, idgen.NewUUIDGenerator())
		r.SetRandomSource(func() float64 { return 0.5 })
		ctx := context.Background()

		mt.AddMockResponses(
			found(articleDoc("a6", 6, 0.6, objects.ArticleStatusPublished)),
			found(articleDoc("a1", 1, 0.1, objects.ArticleStatusPublished)),
		)
		got, err := r.GetRandomly(ctx, 3)
		require.NoError(mt, err)
		assert.Equal(mt, []string{"article a6", "article a1"}, titles(got))

		// 第一段已经够数时只查一次
		mt.ClearEvents()
		mt.AddMockResponses(found(articleDoc("a6", 6, 0.6, objects.ArticleStatusPublished)))
		got, err = r.GetRandomly(ctx, 1)
		require.NoError(mt, err)
		assert.Len(mt, got, 1)
		require.NotNil(mt, mt.GetStartedEvent())
		assert.Nil(mt, mt.GetStartedEvent())
	})

	mt.Run("list pagination", func(mt *mtest.T) {
		r := NewMongoArticleRepo(mt.DB, idgen.NewUUIDGenerator())
		mt.AddMockResponses(
			found(bson.D{{Key: "n", Value: int32(5)}}),
			found(
				articleDoc("a3", 3, 0.3, objects.ArticleStatusPublished),
				articleDoc("a2", 2, 0.2, objects.ArticleStatusPublished),
			),
		)
		page, err := r.GetByAuthorID(context.Background(), "1", 2, 2)
		require.NoError(mt, err)
		assert.Equal(mt, query.Pagination{PageCount: 3, RecordCount: 5}, page.Pagination)
		assert.Equal(mt, []string{"article a3", "article a2"}, titles(page.Articles))

		count := mt.GetStartedEvent()
		require.NotNil(mt, count)
		assert.Equal(mt, "aggregate", count.CommandName)
		find := mt.GetStartedEvent()
		require.NotNil(mt, find)
		assert.Equal(mt, "find", find.CommandName)
		assert.Equal(mt, int64(2), find.Command.Lookup("skip").AsInt64())
		assert.Equal(mt, int64(2), find.Command.Lookup("limit").AsInt64())
	})

	mt.Run("writes need a session transaction", func(mt *mtest.T) {
		r := NewMongoArticleRepo(mt.DB, idgen.NewUUIDGenerator())
		ctx := context.Background()

		_, err := r.Add(ctx, newArticle(1, 1))
		assert.ErrorIs(mt, err, errs.ErrTransaction)
		assert.ErrorIs(mt, r.Update(ctx, "a1", newArticle(1, 1)), errs.ErrTransaction)
		assert.ErrorIs(mt, r.Remove(ctx, "a1"), errs.ErrTransaction)
		assert.ErrorIs(mt, r.IncViewCount(ctx, "a1"), errs.ErrTransaction)
		assert.Nil(mt, mt.GetStartedEvent())
	})
}

// newMongoTestRepo 需要副本集，通过 SOLO_TEST_MONGO_URI 指定，未设置时跳过
func newMongoTestRepo(t *testing.T) (*MongoArticleRepo, *transaction.MongoManager) {
	t.Helper()
	uri := os.Getenv("SOLO_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("SOLO_TEST_MONGO_URI not set")
	}
	client, err := db.OpenMongo(uri)
	require.NoError(t, err)

	database := client.Database(fmt.Sprintf("solo_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		_ = database.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	r := NewMongoArticleRepo(database, idgen.NewUUIDGenerator())
	require.NoError(t, r.Migrate(context.Background()))
	return r, transaction.NewMongoManager(client, nil)
}

func TestMongoArticleRepo_Scenario(t *testing.T) {
	r, tx := newMongoTestRepo(t)
	ctx := context.Background()

	id1 := addArticle(t, r, tx, newArticle(1, 1000))
	id2 := addArticle(t, r, tx, newArticle(2, 2000))

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	prev, err := r.GetPreviousArticle(ctx, id2)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "article title1", prev.Title)
	assert.Equal(t, "article permalink1", prev.Permalink)
	assert.Empty(t, prev.ID)

	next, err := r.GetNextArticle(ctx, id1)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "article title2", next.Title)

	recent, err := r.GetRecentArticles(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"article title2", "article title1"}, titles(recent))

	ok, err := r.IsPublished(ctx, id1)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.IsPublished(ctx, "not found")
	require.NoError(t, err)
	assert.False(t, ok)

	page, err := r.GetByAuthorID(ctx, "1", 1, query.Unbounded)
	require.NoError(t, err)
	assert.Equal(t, query.Pagination{PageCount: 1, RecordCount: 2}, page.Pagination)

	r.SetRandomSource(func() float64 { return 0.15 })
	random, err := r.GetRandomly(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"article title2", "article title1"}, titles(random))
}

func TestMongoArticleRepo_Writes(t *testing.T) {
	r, tx := newMongoTestRepo(t)
	ctx := context.Background()

	_, err := r.Add(ctx, newArticle(1, 1))
	assert.ErrorIs(t, err, errs.ErrTransaction)

	id := addArticle(t, r, tx, newArticle(1, 1000))

	err = tx.Execute(ctx, func(ctx context.Context) error {
		_, err := r.Add(ctx, newArticle(1, 2000))
		return err
	})
	assert.ErrorIs(t, err, errs.ErrValidation)

	boom := errors.New("boom")
	err = tx.Execute(ctx, func(ctx context.Context) error {
		if _, err := r.Add(ctx, newArticle(2, 2000)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	got, err := r.GetByPermalink(ctx, "article permalink2")
	require.NoError(t, err)
	assert.Nil(t, got)

	changed := newArticle(1, 9999)
	changed.Title = "new title"
	require.NoError(t, tx.Execute(ctx, func(ctx context.Context) error {
		if err := r.Update(ctx, id, changed); err != nil {
			return err
		}
		return r.IncViewCount(ctx, id)
	}))
	got, err = r.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "new title", got.Title)
	assert.Equal(t, int64(1000), got.Created)
	assert.Equal(t, 1, got.ViewCount)

	require.NoError(t, tx.Execute(ctx, func(ctx context.Context) error {
		return r.Remove(ctx, id)
	}))
	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	addArticle(t, r, tx, newArticle(1, 3000))

	// 绕过写入校验直接插入，唯一索引兜底
	_, err = r.coll.InsertOne(ctx, newArticle(1, 4000))
	assert.True(t, db.IsDuplicateKey(err))

	page, err := r.List(ctx, query.New().Filter(query.FieldStatus, query.Equal, objects.ArticleStatusPublished))
	require.NoError(t, err)
	assert.Len(t, page.Articles, 1)
}
