package repo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/iceymoss/go-solo/pkg/db"
	"github.com/iceymoss/go-solo/pkg/db/objects"
	errs "github.com/iceymoss/go-solo/pkg/errors"
	"github.com/iceymoss/go-solo/pkg/idgen"
	zLog "github.com/iceymoss/go-solo/pkg/logger"
	"github.com/iceymoss/go-solo/pkg/query"
	"github.com/iceymoss/go-solo/pkg/transaction"
	"github.com/iceymoss/go-solo/pkg/utils"
	"github.com/iceymoss/go-solo/pkg/xerr"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const fieldDeletedAt = "deleted_at"

// notDeleted 软删除的文档带有 deleted_at 字段
var notDeleted = bson.D{{Key: fieldDeletedAt, Value: bson.D{{Key: "$exists", Value: false}}}}

var mongoOperators = map[query.Operator]string{
	query.Equal:              "$eq",
	query.NotEqual:           "$ne",
	query.GreaterThan:        "$gt",
	query.GreaterThanOrEqual: "$gte",
	query.LessThan:           "$lt",
	query.LessThanOrEqual:    "$lte",
	query.In:                 "$in",
}

// MongoArticleRepo 基于 mongo 的文章存储，写操作需在 transaction.MongoManager 中执行
type MongoArticleRepo struct {
	coll   *mongo.Collection
	ids    idgen.Generator
	random RandomSource
}

func NewMongoArticleRepo(database *mongo.Database, ids idgen.Generator) *MongoArticleRepo {
	return &MongoArticleRepo{
		coll:   database.Collection(objects.Article{}.TableName()),
		ids:    ids,
		random: defaultRandom,
	}
}

func (r *MongoArticleRepo) SetRandomSource(src RandomSource) {
	r.random = src
}

// Migrate 创建索引。
//
// 未删除文档没有 deleted_at，在索引中按 null 处理，所以 (permalink, deleted_at) 唯一索引
// 只约束未删除的文章，已删除文档带有各自的删除时间，不占用 permalink
func (r *MongoArticleRepo) Migrate(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "permalink", Value: 1}, {Key: fieldDeletedAt, Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uk_permalink_alive"),
		},
		{Keys: bson.D{{Key: "author_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "random_double", Value: 1}}},
	})
	return err
}

func (r *MongoArticleRepo) Add(ctx context.Context, article *objects.Article) (string, error) {
	if !transaction.InMongoTransaction(ctx) {
		return "", notInTransaction("add article")
	}
	if err := validateArticle(article); err != nil {
		return "", err
	}

	taken, err := r.permalinkExists(ctx, article.Permalink, "")
	if err != nil {
		return "", err
	}
	if taken {
		return "", permalinkTaken(article.Permalink)
	}

	generated := false
	if article.ID == "" {
		id, err := r.ids.Next(ctx)
		if err != nil {
			return "", fmt.Errorf("generate article id: %w", err)
		}
		article.ID = id
		generated = true
	}

	if _, err := r.coll.InsertOne(ctx, article); err != nil {
		if generated {
			article.ID = ""
		}
		if db.IsDuplicateKey(err) {
			zLog.Warn("article duplicate key on insert", zap.String("permalink", article.Permalink), zap.Error(err))
			return "", errs.Wrap(xerr.ErrInvalidInput, "article already exists", err)
		}
		return "", err
	}
	return article.ID, nil
}

func (r *MongoArticleRepo) Update(ctx context.Context, id string, article *objects.Article) error {
	if !transaction.InMongoTransaction(ctx) {
		return notInTransaction("update article")
	}
	if err := validateArticle(article); err != nil {
		return err
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return articleNotFound(id)
	}

	taken, err := r.permalinkExists(ctx, article.Permalink, id)
	if err != nil {
		return err
	}
	if taken {
		return permalinkTaken(article.Permalink)
	}

	article.ID = current.ID
	article.Created = current.Created
	article.RandomDouble = current.RandomDouble
	if article.Updated == 0 {
		article.Updated = utils.NowMillis()
	}

	res, err := r.coll.ReplaceOne(ctx, where(byID(id)), article)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return articleNotFound(id)
	}
	return nil
}

// Remove 软删除，写入 deleted_at
func (r *MongoArticleRepo) Remove(ctx context.Context, id string) error {
	if !transaction.InMongoTransaction(ctx) {
		return notInTransaction("remove article")
	}
	res, err := r.coll.UpdateOne(ctx, where(byID(id)),
		bson.D{{Key: "$set", Value: bson.D{{Key: fieldDeletedAt, Value: utils.NowMillis()}}}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return articleNotFound(id)
	}
	return nil
}

func (r *MongoArticleRepo) IncViewCount(ctx context.Context, id string) error {
	if !transaction.InMongoTransaction(ctx) {
		return notInTransaction("increase view count")
	}
	res, err := r.coll.UpdateOne(ctx, where(byID(id)),
		bson.D{{Key: "$inc", Value: bson.D{{Key: "view_count", Value: 1}}}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return articleNotFound(id)
	}
	return nil
}

func (r *MongoArticleRepo) Get(ctx context.Context, id string) (*objects.Article, error) {
	return r.findOne(ctx, where(byID(id)), nil)
}

func (r *MongoArticleRepo) GetByPermalink(ctx context.Context, permalink string) (*objects.Article, error) {
	return r.findOne(ctx, where(bson.D{{Key: "permalink", Value: permalink}}), nil)
}

func (r *MongoArticleRepo) GetByAuthorID(ctx context.Context, authorID string, pageNum, pageSize int) (*ArticlePage, error) {
	q := query.New().
		Filter(query.FieldAuthorID, query.Equal, authorID).
		Page(pageNum, pageSize)
	return r.List(ctx, q)
}

func (r *MongoArticleRepo) Count(ctx context.Context) (int64, error) {
	return r.coll.CountDocuments(ctx, where())
}

func (r *MongoArticleRepo) GetPreviousArticle(ctx context.Context, id string) (*objects.Article, error) {
	current, err := r.Get(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}

	prev, err := r.findOne(ctx, where(neighbour(current, "$lt")), mongoSort(recentSorts))
	if err != nil || prev == nil {
		return nil, err
	}
	prev.ID = ""
	return prev, nil
}

func (r *MongoArticleRepo) GetNextArticle(ctx context.Context, id string) (*objects.Article, error) {
	current, err := r.Get(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}

	return r.findOne(ctx, where(neighbour(current, "$gt")), mongoSort([]query.Sort{
		{Field: query.FieldCreated, Direction: query.Ascending},
		{Field: query.FieldID, Direction: query.Ascending},
	}))
}

func (r *MongoArticleRepo) GetRandomly(ctx context.Context, n int) ([]*objects.Article, error) {
	ret := make([]*objects.Article, 0, max(n, 0))
	if n <= 0 {
		return ret, nil
	}

	bySample := mongoSort([]query.Sort{
		{Field: query.FieldRandomDouble, Direction: query.Ascending},
		{Field: query.FieldID, Direction: query.Ascending},
	})
	pivot := r.random()

	if err := r.find(ctx, where(randomRange("$gte", pivot)), options.Find().SetSort(bySample).SetLimit(int64(n)), &ret); err != nil {
		return nil, err
	}

	if remain := n - len(ret); remain > 0 {
		var rest []*objects.Article
		if err := r.find(ctx, where(randomRange("$lt", pivot)), options.Find().SetSort(bySample).SetLimit(int64(remain)), &rest); err != nil {
			return nil, err
		}
		ret = append(ret, rest...)
	}
	return ret, nil
}

func (r *MongoArticleRepo) GetRecentArticles(ctx context.Context, n int) ([]*objects.Article, error) {
	return r.top(ctx, n, nil, recentSorts)
}

func (r *MongoArticleRepo) GetMostCommentArticles(ctx context.Context, n int) ([]*objects.Article, error) {
	published := []query.Filter{{Field: query.FieldStatus, Op: query.Equal, Value: objects.ArticleStatusPublished}}
	sorts := append([]query.Sort{{Field: query.FieldCommentCount, Direction: query.Descending}}, recentSorts...)
	return r.top(ctx, n, published, sorts)
}

func (r *MongoArticleRepo) GetMostViewCountArticles(ctx context.Context, n int) ([]*objects.Article, error) {
	published := []query.Filter{{Field: query.FieldStatus, Op: query.Equal, Value: objects.ArticleStatusPublished}}
	sorts := append([]query.Sort{{Field: query.FieldViewCount, Direction: query.Descending}}, recentSorts...)
	return r.top(ctx, n, published, sorts)
}

func (r *MongoArticleRepo) IsPublished(ctx context.Context, id string) (bool, error) {
	article, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return article != nil && article.IsPublished(), nil
}

func (r *MongoArticleRepo) List(ctx context.Context, q *query.Query) (*ArticlePage, error) {
	if q == nil {
		q = query.New()
	}
	if err := q.Validate(); err != nil {
		return nil, errs.Wrap(xerr.ErrInvalidInput, "invalid article query", err)
	}

	filter := where(mongoFilters(q.Filters())...)
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}

	page := &ArticlePage{
		Articles:   []*objects.Article{},
		Pagination: query.NewPagination(total, q),
	}
	if total == 0 || q.Empty() {
		return page, nil
	}

	sorts := q.Sorts()
	if len(sorts) == 0 {
		sorts = defaultSorts
	}
	opts := options.Find().SetSort(mongoSort(sorts))
	if !q.Unbounded() {
		opts.SetSkip(int64(q.Offset())).SetLimit(int64(q.Limit()))
	}
	if err := r.find(ctx, filter, opts, &page.Articles); err != nil {
		return nil, err
	}
	return page, nil
}

func (r *MongoArticleRepo) top(ctx context.Context, n int, filters []query.Filter, sorts []query.Sort) ([]*objects.Article, error) {
	ret := make([]*objects.Article, 0, max(n, 0))
	if n <= 0 {
		return ret, nil
	}
	opts := options.Find().SetSort(mongoSort(sorts)).SetLimit(int64(n))
	if err := r.find(ctx, where(mongoFilters(filters)...), opts, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func (r *MongoArticleRepo) permalinkExists(ctx context.Context, permalink, excludeID string) (bool, error) {
	conds := []bson.D{{{Key: "permalink", Value: permalink}}}
	if excludeID != "" {
		conds = append(conds, bson.D{{Key: "_id", Value: bson.D{{Key: "$ne", Value: excludeID}}}})
	}
	n, err := r.coll.CountDocuments(ctx, where(conds...), options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// findOne 不存在返回 nil
func (r *MongoArticleRepo) findOne(ctx context.Context, filter bson.D, sort bson.D) (*objects.Article, error) {
	opts := options.FindOne()
	if sort != nil {
		opts.SetSort(sort)
	}
	var article objects.Article
	err := r.coll.FindOne(ctx, filter, opts).Decode(&article)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

func (r *MongoArticleRepo) find(ctx context.Context, filter bson.D, opts *options.FindOptions, out *[]*objects.Article) error {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	var found []*objects.Article
	if err := cursor.All(ctx, &found); err != nil {
		return err
	}
	*out = append(*out, found...)
	return nil
}

// where 以 $and 合并条件，并排除已删除文档
func where(conds ...bson.D) bson.D {
	all := bson.A{notDeleted}
	for _, c := range conds {
		all = append(all, c)
	}
	return bson.D{{Key: "$and", Value: all}}
}

// neighbour 按 (created, _id) 比较，op 为 $lt 取更早的文章，$gt 取更新的
func neighbour(current *objects.Article, op string) bson.D {
	return bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "created", Value: bson.D{{Key: op, Value: current.Created}}}},
		bson.D{
			{Key: "created", Value: current.Created},
			{Key: "_id", Value: bson.D{{Key: op, Value: current.ID}}},
		},
	}}}
}

func randomRange(op string, pivot float64) bson.D {
	return bson.D{{Key: "random_double", Value: bson.D{{Key: op, Value: pivot}}}}
}

func byID(id string) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

func mongoField(f query.Field) string {
	if f == query.FieldID {
		return "_id"
	}
	return string(f)
}

// mongoFilters 调用方需先 Validate
func mongoFilters(filters []query.Filter) []bson.D {
	conds := make([]bson.D, 0, len(filters))
	for _, f := range filters {
		var cond bson.D
		if f.Op == query.Like {
			pattern, _ := f.Value.(string)
			cond = bson.D{{Key: "$regex", Value: likeToRegex(pattern)}}
		} else {
			cond = bson.D{{Key: mongoOperators[f.Op], Value: f.Value}}
		}
		conds = append(conds, bson.D{{Key: mongoField(f.Field), Value: cond}})
	}
	return conds
}

func mongoSort(sorts []query.Sort) bson.D {
	d := make(bson.D, 0, len(sorts))
	for _, s := range sorts {
		dir := 1
		if s.Direction == query.Descending {
			dir = -1
		}
		d = append(d, bson.E{Key: mongoField(s.Field), Value: dir})
	}
	return d
}

// likeToRegex SQL LIKE 模式转正则：% 匹配任意串，_ 匹配单个字符
func likeToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, c := range pattern {
		switch c {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return b.String()
}
