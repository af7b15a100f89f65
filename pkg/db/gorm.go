package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	conf "github.com/iceymoss/go-solo/pkg/config"
	zLog "github.com/iceymoss/go-solo/pkg/logger"

	_ "github.com/lib/pq" // cockroach 通过 lib/pq 连接
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

var gormConn = make(map[string]*gorm.DB)
var gormMutex sync.RWMutex

// GetGormConn 按全局配置获取数据库连接，同一个库只打开一次
func GetGormConn() (*gorm.DB, error) {
	if conf.ServiceConf == nil {
		return nil, errors.New("service config not initialized")
	}
	c := conf.ServiceConf.DB
	key := c.Driver + "/" + c.DbName + c.Path

	gormMutex.RLock()
	conn, ok := gormConn[key]
	gormMutex.RUnlock()
	if ok {
		return conn, nil
	}

	gormMutex.Lock()
	defer gormMutex.Unlock()
	if conn, ok = gormConn[key]; ok {
		return conn, nil
	}

	conn, err := OpenGorm(c, zLog.Logger)
	if err != nil {
		return nil, err
	}
	gormConn[key] = conn
	return conn, nil
}

// Dialector 根据驱动类型构造 gorm 方言
func Dialector(c conf.DBConfig) (gorm.Dialector, error) {
	switch c.Driver {
	case conf.DriverSqlite, "":
		return sqlite.Open(c.Path), nil
	case conf.DriverMysql:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.DbName)
		return mysql.Open(dsn), nil
	case conf.DriverPostgres:
		return postgres.Open(postgresDSN(c)), nil
	case conf.DriverCockroach:
		return postgres.New(postgres.Config{
			DriverName: "postgres",
			DSN:        postgresDSN(c),
		}), nil
	default:
		return nil, fmt.Errorf("unsupported db driver: %s", c.Driver)
	}
}

func postgresDSN(c conf.DBConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DbName, c.SSLMode)
}

// OpenGorm 打开数据库连接，SQL 日志输出到 zap
func OpenGorm(c conf.DBConfig, logger *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialector(c)
	if err != nil {
		return nil, err
	}

	dbConn, err := gorm.Open(dialector, &gorm.Config{
		Logger: &GormLogger{
			Logger: logger,
			Config: gormLogger.Config{
				LogLevel:                  gormLevel(c.LogLevel),
				Colorful:                  false,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             500 * time.Millisecond,
			},
		},
		// 把驱动层的唯一键冲突翻译成 gorm.ErrDuplicatedKey
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.Driver, err)
	}

	pool, err := dbConn.DB()
	if err != nil {
		return nil, err
	}
	if c.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(c.MaxIdleConns)
	}

	logger.Debug("db connection opened", zap.String("driver", c.Driver), zap.String("dbname", c.DbName))
	return dbConn, nil
}

func gormLevel(envLogLevel string) gormLogger.LogLevel {
	switch envLogLevel {
	case "silent":
		return gormLogger.Silent
	case "error", "fatal", "panic", "dpanic":
		return gormLogger.Error
	case "warning", "warn":
		return gormLogger.Warn
	case "debug", "info":
		return gormLogger.Info
	default:
		return gormLogger.Warn
	}
}

// GormLogger 将 gorm 日志写入 zap
type GormLogger struct {
	Logger *zap.Logger
	Config gormLogger.Config
}

func (l *GormLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	newlogger := *l
	newlogger.Config.LogLevel = level
	return &newlogger
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel < gormLogger.Info {
		return
	}
	l.Logger.Info(fmt.Sprintf(msg, data...),
		zap.String("source", utils.FileWithLineNum()),
		zap.String("agg_type", "gorm"),
	)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel < gormLogger.Warn {
		return
	}
	l.Logger.Warn(fmt.Sprintf(msg, data...),
		zap.String("source", utils.FileWithLineNum()),
		zap.String("agg_type", "gorm"),
	)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel < gormLogger.Error {
		return
	}
	l.Logger.Error(fmt.Sprintf(msg, data...),
		zap.String("source", utils.FileWithLineNum()),
		zap.String("agg_type", "gorm"),
	)
}

// Trace 记录每条 SQL，出错和慢查询单独处理
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.Config.LogLevel <= gormLogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && l.Config.LogLevel >= gormLogger.Error && (!errors.Is(err, gormLogger.ErrRecordNotFound) || !l.Config.IgnoreRecordNotFoundError):
		sql, rows := fc()
		l.Logger.Error(err.Error(),
			zap.String("source", utils.FileWithLineNum()),
			zap.Float64("query_time", float64(elapsed.Nanoseconds())/1e6),
			zap.Int64("rows", rows),
			zap.String("sql", sql),
			zap.String("agg_type", "gorm"),
		)

	case elapsed > l.Config.SlowThreshold && l.Config.SlowThreshold != 0 && l.Config.LogLevel >= gormLogger.Warn:
		sql, rows := fc()
		slowLog := fmt.Sprintf("SLOW SQL >= %v", l.Config.SlowThreshold)
		l.Logger.Warn(slowLog,
			zap.String("source", utils.FileWithLineNum()),
			zap.Float64("query_time", float64(elapsed.Nanoseconds())/1e6),
			zap.Int64("rows", rows),
			zap.String("sql", sql),
			zap.String("agg_type", "gorm"),
		)

	case l.Config.LogLevel == gormLogger.Info:
		sql, rows := fc()
		l.Logger.Debug("sql log",
			zap.String("source", utils.FileWithLineNum()),
			zap.Float64("query_time", float64(elapsed.Nanoseconds())/1e6),
			zap.Int64("rows", rows),
			zap.String("sql", sql),
			zap.String("agg_type", "gorm"),
		)
	}
}
