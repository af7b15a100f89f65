package db

import (
	"context"
	"sync"
	"time"

	conf "github.com/iceymoss/go-solo/pkg/config"
	zLog "github.com/iceymoss/go-solo/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var mongoConn = make(map[string]*mongo.Client)
var mongoMutex sync.RWMutex

// GetMongoConn 获取 mongo 客户端，事务要求服务端为副本集
func GetMongoConn() (*mongo.Client, error) {
	mongoMutex.RLock()
	conn, ok := mongoConn["main"]
	mongoMutex.RUnlock()
	if ok {
		return conn, nil
	}

	mongoMutex.Lock()
	defer mongoMutex.Unlock()
	if conn, ok = mongoConn["main"]; ok {
		return conn, nil
	}

	client, err := OpenMongo(conf.ServiceConf.Mongo.Link)
	if err != nil {
		zLog.Error("mongo connect failed", zap.Error(err))
		return nil, err
	}
	mongoConn["main"] = client
	return client, nil
}

// OpenMongo 连接并 ping 一次
func OpenMongo(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetMaxPoolSize(120))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}
