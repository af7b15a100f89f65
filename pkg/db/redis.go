package db

import (
	"fmt"
	"sync"

	conf "github.com/iceymoss/go-solo/pkg/config"

	"github.com/go-redis/redis/v8"
)

const SOLO_RDB = "main"

var redisConn = make(map[string]*redis.Client)
var redisMutex sync.RWMutex

// GetRedisConn 获取 redis 客户端，目前只用于 wuid 分配号段
func GetRedisConn() *redis.Client {
	redisMutex.RLock()
	rdb, ok := redisConn[SOLO_RDB]
	redisMutex.RUnlock()
	if ok {
		return rdb
	}

	redisMutex.Lock()
	defer redisMutex.Unlock()
	if rdb, ok = redisConn[SOLO_RDB]; ok {
		return rdb
	}
	opt := redis.Options{
		Addr:     fmt.Sprintf("%s:%d", conf.ServiceConf.RedisDB.Host, conf.ServiceConf.RedisDB.Port),
		Password: conf.ServiceConf.RedisDB.PassWord,
		DB:       conf.ServiceConf.RedisDB.DB,
	}
	rdb = redis.NewClient(&opt)
	redisConn[SOLO_RDB] = rdb
	return rdb
}
