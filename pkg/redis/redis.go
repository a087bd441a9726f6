package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"payguard/backend/config"
)

// ErrLockHeld 锁已被其他实例持有
var ErrLockHeld = errors.New("扫描锁已被占用")

// Client Redis 客户端封装
// 用于扫描分布式锁（同一公司同一时刻只有一个扫描在执行）与接口限流
type Client struct {
	rdb    goredis.UniversalClient
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// NewClientFromRDB 使用已有的 go-redis 客户端（测试或复用连接）
func NewClientFromRDB(rdb goredis.UniversalClient, logger *zap.Logger) *Client {
	return &Client{rdb: rdb, logger: logger}
}

// ── 扫描锁 ──

const scanLockPrefix = "scan:lock:"

// 仅当 value 与持有者 token 一致时删除，避免误删他人续上的锁
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireScanLock SET NX PX 抢占公司级扫描锁
func (c *Client) AcquireScanLock(ctx context.Context, companyID, token string, ttl time.Duration) error {
	ok, err := c.rdb.SetNX(ctx, scanLockPrefix+companyID, token, ttl).Result()
	if err != nil {
		return fmt.Errorf("获取扫描锁失败: %w", err)
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

// ReleaseScanLock 释放扫描锁；锁已过期或被他人持有时静默返回
func (c *Client) ReleaseScanLock(ctx context.Context, companyID, token string) error {
	n, err := releaseScript.Run(ctx, c.rdb, []string{scanLockPrefix + companyID}, token).Int()
	if err != nil {
		return fmt.Errorf("释放扫描锁失败: %w", err)
	}
	if n == 0 {
		c.logger.Warn("扫描锁已过期或不属于当前持有者", zap.String("company_id", companyID))
	}
	return nil
}

// ── 限流 ──

// CheckRateLimit 滑动窗口计数：窗口内已有请求数 < limit 时放行并记录本次请求
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-window).UnixNano()

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	card := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now.UnixNano()), Member: strconv.FormatInt(now.UnixNano(), 10)})
	pipe.PExpire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("限流计数失败: %w", err)
	}
	return card.Val() < int64(limit), nil
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
