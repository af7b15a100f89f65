package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/iceymoss/go-solo/pkg/db"
	"github.com/iceymoss/go-solo/pkg/db/objects"
	errs "github.com/iceymoss/go-solo/pkg/errors"
	"github.com/iceymoss/go-solo/pkg/idgen"
	zLog "github.com/iceymoss/go-solo/pkg/logger"
	"github.com/iceymoss/go-solo/pkg/query"
	"github.com/iceymoss/go-solo/pkg/transaction"
	"github.com/iceymoss/go-solo/pkg/utils"
	"github.com/iceymoss/go-solo/pkg/xerr"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ArticleRepo 基于 gorm 的文章存储
type ArticleRepo struct {
	db     *gorm.DB
	ids    idgen.Generator
	random RandomSource
}

func NewArticleRepo(conn *gorm.DB, ids idgen.Generator) *ArticleRepo {
	return &ArticleRepo{db: conn, ids: ids, random: defaultRandom}
}

// SetRandomSource 替换随机取文章使用的随机数来源
func (r *ArticleRepo) SetRandomSource(src RandomSource) {
	r.random = src
}

// Migrate 建表及索引
func (r *ArticleRepo) Migrate(ctx context.Context) error {
	conn := r.db.WithContext(ctx)
	if err := conn.AutoMigrate(&objects.Article{}); err != nil {
		return err
	}

	// 写入前的 permalink 校验在并发事务下可能同时通过，支持部分索引的数据库再加一道唯一约束。
	// mysql 没有部分索引，只依赖写入校验
	switch conn.Dialector.Name() {
	case "sqlite", "postgres":
		return conn.Exec(permalinkAliveIndex).Error
	}
	return nil
}

const permalinkAliveIndex = "CREATE UNIQUE INDEX IF NOT EXISTS uk_permalink_alive ON solo_articles (permalink) WHERE deleted_at IS NULL"

// conn 优先使用 ctx 中的事务
func (r *ArticleRepo) conn(ctx context.Context) *gorm.DB {
	return transaction.GetTransactionOrDB(ctx, r.db)
}

func (r *ArticleRepo) articles(ctx context.Context) *gorm.DB {
	return r.conn(ctx).Model(&objects.Article{})
}

func (r *ArticleRepo) Add(ctx context.Context, article *objects.Article) (string, error) {
	if !transaction.InTransaction(ctx) {
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

	if err := r.conn(ctx).Create(article).Error; err != nil {
		if generated {
			article.ID = ""
		}
		if db.IsDuplicateKey(err) {
			zLog.Warn("article duplicate key on insert", zap.String("permalink", article.Permalink), zap.Error(err))
			return "", errs.Wrap(xerr.ErrInvalidInput, "article already exists", err)
		}
		return "", err
	}

	zLog.Debug("article added", zap.String("id", article.ID), zap.String("permalink", article.Permalink))
	return article.ID, nil
}

func (r *ArticleRepo) Update(ctx context.Context, id string, article *objects.Article) error {
	if !transaction.InTransaction(ctx) {
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

	// 不可变字段沿用库中的值
	article.ID = current.ID
	article.Created = current.Created
	article.RandomDouble = current.RandomDouble
	if article.Updated == 0 {
		article.Updated = utils.NowMillis()
	}

	err = r.conn(ctx).Model(article).
		Select("*").
		Omit("id", "created", "random_double", "deleted_at").
		Updates(article).Error
	if db.IsDuplicateKey(err) {
		return errs.Wrap(xerr.ErrInvalidInput, "article already exists", err)
	}
	return err
}

func (r *ArticleRepo) Remove(ctx context.Context, id string) error {
	if !transaction.InTransaction(ctx) {
		return notInTransaction("remove article")
	}
	res := r.conn(ctx).Where("id = ?", id).Delete(&objects.Article{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return articleNotFound(id)
	}
	return nil
}

func (r *ArticleRepo) IncViewCount(ctx context.Context, id string) error {
	if !transaction.InTransaction(ctx) {
		return notInTransaction("increase view count")
	}
	res := r.articles(ctx).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return articleNotFound(id)
	}
	return nil
}

func (r *ArticleRepo) Get(ctx context.Context, id string) (*objects.Article, error) {
	return take(r.conn(ctx).Where("id = ?", id))
}

func (r *ArticleRepo) GetByPermalink(ctx context.Context, permalink string) (*objects.Article, error) {
	return take(r.conn(ctx).Where("permalink = ?", permalink))
}

func (r *ArticleRepo) GetByAuthorID(ctx context.Context, authorID string, pageNum, pageSize int) (*ArticlePage, error) {
	q := query.New().
		Filter(query.FieldAuthorID, query.Equal, authorID).
		Page(pageNum, pageSize)
	return r.List(ctx, q)
}

func (r *ArticleRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.articles(ctx).Count(&n).Error
	return n, err
}

func (r *ArticleRepo) GetPreviousArticle(ctx context.Context, id string) (*objects.Article, error) {
	current, err := r.Get(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}

	tx := r.conn(ctx).
		Where("(created < ? OR (created = ? AND id < ?))", current.Created, current.Created, current.ID)
	prev, err := take(applySorts(tx, recentSorts))
	if err != nil || prev == nil {
		return nil, err
	}
	prev.ID = ""
	return prev, nil
}

func (r *ArticleRepo) GetNextArticle(ctx context.Context, id string) (*objects.Article, error) {
	current, err := r.Get(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}

	tx := r.conn(ctx).
		Where("(created > ? OR (created = ? AND id > ?))", current.Created, current.Created, current.ID)
	return take(applySorts(tx, []query.Sort{
		{Field: query.FieldCreated, Direction: query.Ascending},
		{Field: query.FieldID, Direction: query.Ascending},
	}))
}

// GetRandomly 以随机数 pivot 为起点按 random_double 升序取，不够时从 [0, pivot) 补齐
func (r *ArticleRepo) GetRandomly(ctx context.Context, n int) ([]*objects.Article, error) {
	ret := make([]*objects.Article, 0, max(n, 0))
	if n <= 0 {
		return ret, nil
	}

	bySample := []query.Sort{
		{Field: query.FieldRandomDouble, Direction: query.Ascending},
		{Field: query.FieldID, Direction: query.Ascending},
	}
	pivot := r.random()

	if err := applySorts(r.conn(ctx).Where("random_double >= ?", pivot), bySample).
		Limit(n).Find(&ret).Error; err != nil {
		return nil, err
	}

	if remain := n - len(ret); remain > 0 {
		var rest []*objects.Article
		if err := applySorts(r.conn(ctx).Where("random_double < ?", pivot), bySample).
			Limit(remain).Find(&rest).Error; err != nil {
			return nil, err
		}
		ret = append(ret, rest...)
	}
	return ret, nil
}

func (r *ArticleRepo) GetRecentArticles(ctx context.Context, n int) ([]*objects.Article, error) {
	return r.top(ctx, n, nil, recentSorts)
}

func (r *ArticleRepo) GetMostCommentArticles(ctx context.Context, n int) ([]*objects.Article, error) {
	published := []query.Filter{{Field: query.FieldStatus, Op: query.Equal, Value: objects.ArticleStatusPublished}}
	sorts := append([]query.Sort{{Field: query.FieldCommentCount, Direction: query.Descending}}, recentSorts...)
	return r.top(ctx, n, published, sorts)
}

func (r *ArticleRepo) GetMostViewCountArticles(ctx context.Context, n int) ([]*objects.Article, error) {
	published := []query.Filter{{Field: query.FieldStatus, Op: query.Equal, Value: objects.ArticleStatusPublished}}
	sorts := append([]query.Sort{{Field: query.FieldViewCount, Direction: query.Descending}}, recentSorts...)
	return r.top(ctx, n, published, sorts)
}

func (r *ArticleRepo) IsPublished(ctx context.Context, id string) (bool, error) {
	article, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return article != nil && article.IsPublished(), nil
}

func (r *ArticleRepo) List(ctx context.Context, q *query.Query) (*ArticlePage, error) {
	if q == nil {
		q = query.New()
	}
	if err := q.Validate(); err != nil {
		return nil, errs.Wrap(xerr.ErrInvalidInput, "invalid article query", err)
	}

	var total int64
	if err := applyFilters(r.articles(ctx), q.Filters()).Count(&total).Error; err != nil {
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
	tx := applySorts(applyFilters(r.articles(ctx), q.Filters()), sorts)
	if !q.Unbounded() {
		tx = tx.Offset(q.Offset()).Limit(q.Limit())
	}
	if err := tx.Find(&page.Articles).Error; err != nil {
		return nil, err
	}
	return page, nil
}

func (r *ArticleRepo) top(ctx context.Context, n int, filters []query.Filter, sorts []query.Sort) ([]*objects.Article, error) {
	ret := make([]*objects.Article, 0, max(n, 0))
	if n <= 0 {
		return ret, nil
	}
	err := applySorts(applyFilters(r.articles(ctx), filters), sorts).Limit(n).Find(&ret).Error
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func (r *ArticleRepo) permalinkExists(ctx context.Context, permalink, excludeID string) (bool, error) {
	tx := r.articles(ctx).Where("permalink = ?", permalink)
	if excludeID != "" {
		tx = tx.Where("id <> ?", excludeID)
	}
	var n int64
	if err := tx.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// take 取一条，不存在返回 nil
func take(tx *gorm.DB) (*objects.Article, error) {
	var article objects.Article
	err := tx.Take(&article).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// applyFilters 字段名已经过 query.Field 校验，可以直接拼进 SQL
func applyFilters(tx *gorm.DB, filters []query.Filter) *gorm.DB {
	for _, f := range filters {
		tx = tx.Where(fmt.Sprintf("%s %s ?", f.Field, f.Op), f.Value)
	}
	return tx
}

func applySorts(tx *gorm.DB, sorts []query.Sort) *gorm.DB {
	for _, s := range sorts {
		tx = tx.Order(clause.OrderByColumn{
			Column: clause.Column{Name: string(s.Field)},
			Desc:   s.Direction == query.Descending,
		})
	}
	return tx
}
