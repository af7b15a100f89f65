package service

import (
	"context"
	"math/rand/v2"

	"github.com/iceymoss/go-solo/internal/repo"
	"github.com/iceymoss/go-solo/pkg/db/objects"
	errs "github.com/iceymoss/go-solo/pkg/errors"
	zLog "github.com/iceymoss/go-solo/pkg/logger"
	"github.com/iceymoss/go-solo/pkg/transaction"
	"github.com/iceymoss/go-solo/pkg/utils"

	"go.uber.org/zap"
)

// ArticleService 文章写入入口：补全派生字段并在事务中调用存储
type ArticleService struct {
	repo   repo.ArticleRepository
	tx     transaction.Transactor
	random repo.RandomSource
	now    func() int64
}

func NewArticleService(r repo.ArticleRepository, tx transaction.Transactor) *ArticleService {
	return &ArticleService{
		repo:   r,
		tx:     tx,
		random: rand.Float64,
		now:    utils.NowMillis,
	}
}

// AddArticle 新增文章
func (s *ArticleService) AddArticle(ctx context.Context, article *objects.Article) (string, error) {
	if article == nil {
		return "", errs.Validation("article is nil")
	}

	// 1. 派生字段
	now := s.now()
	if article.Created == 0 {
		article.Created = now
	}
	if article.Updated == 0 {
		article.Updated = article.Created
	}
	if article.RandomDouble == 0 {
		article.RandomDouble = s.random()
	}
	if article.Img1URL == "" {
		article.Img1URL = utils.FirstImageURL(article.Content)
	}

	// 2. 事务内写入
	var id string
	err := s.tx.Execute(ctx, func(ctx context.Context) error {
		var err error
		id, err = s.repo.Add(ctx, article)
		return err
	})
	if err != nil {
		zLog.Error("❌ add article failed", zap.String("permalink", article.Permalink), zap.Error(err))
		return "", err
	}

	zLog.Info("✅ article added", zap.String("id", id), zap.String("permalink", article.Permalink))
	return id, nil
}

// UpdateArticle 更新文章，updated 置为当前时间
func (s *ArticleService) UpdateArticle(ctx context.Context, id string, article *objects.Article) error {
	if article == nil {
		return errs.Validation("article is nil")
	}
	article.Updated = s.now()
	if article.Img1URL == "" {
		article.Img1URL = utils.FirstImageURL(article.Content)
	}

	err := s.tx.Execute(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, id, article)
	})
	if err != nil {
		zLog.Error("❌ update article failed", zap.String("id", id), zap.Error(err))
		return err
	}
	zLog.Info("✅ article updated", zap.String("id", id))
	return nil
}

func (s *ArticleService) RemoveArticle(ctx context.Context, id string) error {
	err := s.tx.Execute(ctx, func(ctx context.Context) error {
		return s.repo.Remove(ctx, id)
	})
	if err != nil {
		zLog.Error("❌ remove article failed", zap.String("id", id), zap.Error(err))
		return err
	}
	zLog.Info("🗑️ article removed", zap.String("id", id))
	return nil
}

// ViewArticle 按 permalink 取文章并增加浏览数，不存在返回 nil
func (s *ArticleService) ViewArticle(ctx context.Context, permalink string) (*objects.Article, error) {
	var article *objects.Article
	err := s.tx.Execute(ctx, func(ctx context.Context) error {
		var err error
		article, err = s.repo.GetByPermalink(ctx, permalink)
		if err != nil || article == nil {
			return err
		}
		if err := s.repo.IncViewCount(ctx, article.ID); err != nil {
			return err
		}
		article.ViewCount++
		return nil
	})
	if err != nil {
		zLog.Warn("view article failed", zap.String("permalink", permalink), zap.Error(err))
		return nil, err
	}
	return article, nil
}
