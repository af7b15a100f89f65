package transaction

import (
	"context"
	"database/sql"

	errs "github.com/iceymoss/go-solo/pkg/errors"

	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbgorm"
	"gorm.io/gorm"
)

// Transactor 事务作用域：operation 返回 nil 时提交，返回错误或 panic 时回滚
type Transactor interface {
	Execute(ctx context.Context, operation func(ctx context.Context) error) error
}

// Manager 管理数据库事务生命周期和上下文传播
type Manager struct {
	db    *gorm.DB
	opts  *sql.TxOptions
	retry bool
}

// NewManager 创建一个事务管理器实例，自动提交或者回滚事务
// - opts: 事务隔离级别选项，nil 使用数据库默认值
func NewManager(db *gorm.DB, opts *sql.TxOptions) *Manager {
	return &Manager{
		db:   db,
		opts: opts,
	}
}

// NewCockroachManager 只用于 CockroachDB：遇到 40001 时自动重试整个事务。
// crdbgorm 认为 RELEASE SAVEPOINT 已经完成提交，会忽略 COMMIT 的错误，其他数据库不能用
func NewCockroachManager(db *gorm.DB, opts *sql.TxOptions) *Manager {
	return &Manager{
		db:    db,
		opts:  opts,
		retry: true,
	}
}

// Execute 在事务中执行业务操作
// - ctx: 上下文，用于超时控制和取消操作
// - operation: 需要在事务中执行业务逻辑的函数，读写都应使用传入的 ctx
//
// operation 的错误原样返回；operation 成功但提交失败时返回 ErrTransaction
func (m *Manager) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	var opErr error
	fn := func(tx *gorm.DB) error {
		// 将事务实例注入上下文
		ctxWithTx := WithTransaction(ctx, tx)
		// 执行业务操作并传递增强后的上下文
		opErr = operation(ctxWithTx)
		return opErr
	}

	var err error
	if m.retry {
		err = crdbgorm.ExecuteTx(ctx, m.db, m.opts, fn)
	} else {
		err = m.db.WithContext(ctx).Transaction(fn, m.opts)
	}
	return settle(opErr, err, "commit transaction failed")
}

// settle operation 自身的错误原样返回，其余错误来自开启或提交事务
func settle(opErr, err error, msg string) error {
	if err != nil && opErr == nil {
		return errs.Transaction(msg, err)
	}
	return err
}
