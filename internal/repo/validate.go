package repo

import (
	"fmt"
	"strings"

	"github.com/iceymoss/go-solo/pkg/db/objects"
	errs "github.com/iceymoss/go-solo/pkg/errors"
)

// validateArticle 写入前的必填字段校验
func validateArticle(article *objects.Article) error {
	if article == nil {
		return errs.Validation("article is nil")
	}
	if strings.TrimSpace(article.Title) == "" {
		return errs.Validation("article title is required")
	}
	if strings.TrimSpace(article.Permalink) == "" {
		return errs.Validation("article permalink is required")
	}
	if article.CommentCount < 0 || article.ViewCount < 0 {
		return errs.Validation("article counters must not be negative")
	}
	return nil
}

func permalinkTaken(permalink string) error {
	return errs.Validation(fmt.Sprintf("permalink [%s] already exists", permalink))
}

func notInTransaction(op string) error {
	return errs.Transaction(op+" must run inside a transaction", nil)
}

func articleNotFound(id string) error {
	return errs.NotFound(fmt.Sprintf("article [%s] not found", id))
}
