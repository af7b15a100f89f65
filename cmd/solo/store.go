package main

import (
	"context"
	"fmt"

	"github.com/iceymoss/go-solo/internal/repo"
	"github.com/iceymoss/go-solo/internal/service"
	conf "github.com/iceymoss/go-solo/pkg/config"
	"github.com/iceymoss/go-solo/pkg/db"
	"github.com/iceymoss/go-solo/pkg/idgen"
	"github.com/iceymoss/go-solo/pkg/transaction"
)

// articleStore 两种存储实现都提供 Migrate
type articleStore interface {
	repo.ArticleRepository
	Migrate(ctx context.Context) error
}

type backend struct {
	store   articleStore
	service *service.ArticleService
}

func newGenerator(c conf.IDGenConfig) (idgen.Generator, error) {
	switch c.Provider {
	case "", conf.IDGenUUID:
		return idgen.NewUUIDGenerator(), nil
	case conf.IDGenWUID:
		return idgen.NewWUIDGenerator(db.GetRedisConn(), c.Name, c.Key), nil
	default:
		return nil, fmt.Errorf("unknown id generator: %s", c.Provider)
	}
}

// newBackend 按配置组装存储、事务管理和服务
func newBackend(c *conf.ServiceConfig) (*backend, error) {
	ids, err := newGenerator(c.IDGen)
	if err != nil {
		return nil, err
	}

	switch c.Store.Backend {
	case "", conf.BackendGorm:
		conn, err := db.GetGormConn()
		if err != nil {
			return nil, err
		}
		r := repo.NewArticleRepo(conn, ids)
		tx := transaction.NewManager(conn, nil)
		if c.DB.Driver == conf.DriverCockroach {
			tx = transaction.NewCockroachManager(conn, nil)
		}
		return &backend{store: r, service: service.NewArticleService(r, tx)}, nil
	case conf.BackendMongo:
		client, err := db.GetMongoConn()
		if err != nil {
			return nil, err
		}
		r := repo.NewMongoArticleRepo(client.Database(c.Mongo.Database), ids)
		return &backend{store: r, service: service.NewArticleService(r, transaction.NewMongoManager(client, nil))}, nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}
}
