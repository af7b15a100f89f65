package idgen

import (
	"context"
	"fmt"
	"sync"

	"github.com/edwingeng/wuid/redis/v8/wuid"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Generator 文章 ID 生成器，生成的 ID 按字典序递增
type Generator interface {
	Next(ctx context.Context) (string, error)
}

// UUIDGenerator 使用 UUIDv7，毫秒时间戳在高位，同一进程内单调递增
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) Next(ctx context.Context) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// WUIDGenerator 高 28 位由 redis 计数器分配，多实例之间不会冲突
type WUIDGenerator struct {
	w    *wuid.WUID
	once sync.Once
	err  error

	rdb redis.UniversalClient
	key string
}

// NewWUIDGenerator name 只用于 wuid 日志，key 为 redis 中的计数 key
func NewWUIDGenerator(rdb redis.UniversalClient, name, key string) *WUIDGenerator {
	return &WUIDGenerator{
		w:   wuid.NewWUID(name, nil),
		rdb: rdb,
		key: key,
	}
}

// load 首次使用时从 redis 加载号段
func (g *WUIDGenerator) load() error {
	g.once.Do(func() {
		newClient := func() (redis.UniversalClient, bool, error) {
			return g.rdb, false, nil
		}
		if err := g.w.LoadH28FromRedis(newClient, g.key); err != nil {
			g.err = fmt.Errorf("load wuid h28 from redis: %w", err)
		}
	})
	return g.err
}

// Next 十进制补零到 19 位，保证字典序与数值序一致
func (g *WUIDGenerator) Next(ctx context.Context) (string, error) {
	if err := g.load(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%019d", g.w.Next()), nil
}
