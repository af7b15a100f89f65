package repo

import (
	"context"
	"math/rand/v2"

	"github.com/iceymoss/go-solo/pkg/db/objects"
	"github.com/iceymoss/go-solo/pkg/query"
)

// ArticlePage 分页查询结果
type ArticlePage struct {
	Articles   []*objects.Article `json:"rslts"`
	Pagination query.Pagination   `json:"pagination"`
}

// ArticleRepository 文章存储。
//
// 查询类方法在记录不存在时返回 (nil, nil)；写方法必须在 Transactor.Execute
// 提供的 ctx 中调用，事务提交前写入对其他读取不可见。
type ArticleRepository interface {
	// Add 写入文章并返回 ID，ID 为空时由 ID 生成器分配
	Add(ctx context.Context, article *objects.Article) (string, error)
	// Update 更新文章，id、created、random_double 保持原值
	Update(ctx context.Context, id string, article *objects.Article) error
	// Remove 软删除，permalink 可被重新使用
	Remove(ctx context.Context, id string) error
	// IncViewCount 浏览数加一
	IncViewCount(ctx context.Context, id string) error

	Get(ctx context.Context, id string) (*objects.Article, error)
	GetByPermalink(ctx context.Context, permalink string) (*objects.Article, error)
	GetByAuthorID(ctx context.Context, authorID string, pageNum, pageSize int) (*ArticlePage, error)
	Count(ctx context.Context) (int64, error)

	// GetPreviousArticle 按 created、id 倒序排列时紧跟在 id 之后的文章（更早的一篇），
	// 返回值不带 ID，需要时通过 permalink 重新查询
	GetPreviousArticle(ctx context.Context, id string) (*objects.Article, error)
	// GetNextArticle 同一排序中位于 id 之前的文章（更新的一篇）
	GetNextArticle(ctx context.Context, id string) (*objects.Article, error)

	GetRandomly(ctx context.Context, n int) ([]*objects.Article, error)
	GetRecentArticles(ctx context.Context, n int) ([]*objects.Article, error)
	GetMostCommentArticles(ctx context.Context, n int) ([]*objects.Article, error)
	GetMostViewCountArticles(ctx context.Context, n int) ([]*objects.Article, error)

	// IsPublished 不存在与未发布都返回 false
	IsPublished(ctx context.Context, id string) (bool, error)

	// List 通用查询，q 为 nil 时返回全部
	List(ctx context.Context, q *query.Query) (*ArticlePage, error)
}

// RandomSource 产生 [0,1) 的随机数，测试时可替换为固定值
type RandomSource func() float64

func defaultRandom() float64 {
	return rand.Float64()
}

// defaultSorts 置顶优先，其次按创建时间倒序
var defaultSorts = []query.Sort{
	{Field: query.FieldPutTop, Direction: query.Descending},
	{Field: query.FieldCreated, Direction: query.Descending},
	{Field: query.FieldID, Direction: query.Descending},
}

// recentSorts 严格按创建时间倒序，相同时间按 ID 倒序
var recentSorts = []query.Sort{
	{Field: query.FieldCreated, Direction: query.Descending},
	{Field: query.FieldID, Direction: query.Descending},
}

var (
	_ ArticleRepository = (*ArticleRepo)(nil)
	_ ArticleRepository = (*MongoArticleRepo)(nil)
)
