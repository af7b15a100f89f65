package transaction

import (
	"context"

	errs "github.com/iceymoss/go-solo/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoManager 基于 mongo 会话的事务管理，需要副本集
type MongoManager struct {
	client *mongo.Client
	opts   *options.TransactionOptions
}

func NewMongoManager(client *mongo.Client, opts *options.TransactionOptions) *MongoManager {
	return &MongoManager{client: client, opts: opts}
}

// Execute 在 mongo 事务中执行 operation，传入的 ctx 即 SessionContext
func (m *MongoManager) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	sess, err := m.client.StartSession()
	if err != nil {
		return errs.Transaction("start mongo session failed", err)
	}
	defer sess.EndSession(ctx)

	var opErr error
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		opErr = operation(sc)
		return nil, opErr
	}, m.opts)
	return settle(opErr, err, "commit mongo transaction failed")
}

// InMongoTransaction ctx 是否处于 mongo 会话事务中
func InMongoTransaction(ctx context.Context) bool {
	return mongo.SessionFromContext(ctx) != nil
}
