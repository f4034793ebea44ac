package redis

import (
	"context"
	"fmt"

	"github.com/gocrud/decor/internal/clients"
	"github.com/gocrud/decor/logging"
	"github.com/redis/go-redis/v9"
)

// ClientFactory 按名称持有 Redis 客户端，容器销毁时关闭全部客户端
type ClientFactory struct {
	set    *clients.Set[*redis.Client]
	logger logging.Logger
}

// NewClientFactory 创建客户端工厂
func NewClientFactory(logger logging.Logger) *ClientFactory {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ClientFactory{
		set:    clients.NewSet("redis", (*redis.Client).Close),
		logger: logger.WithCategory("redis"),
	}
}

// Register 创建并保存客户端
func (f *ClientFactory) Register(ctx context.Context, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		MaxRetries:   opts.MaxRetries,
	})

	if !opts.SkipPing {
		ctx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("failed to connect to redis '%s': %w", opts.Name, err)
		}
	}

	if err := f.set.Add(opts.Name, client); err != nil {
		_ = client.Close()
		return err
	}
	f.logger.Info("Redis 客户端已注册", logging.F("name", opts.Name), logging.F("addr", opts.Addr), logging.F("db", opts.DB))
	return nil
}

// Get 获取指定名称的客户端
func (f *ClientFactory) Get(name string) (*redis.Client, error) {
	return f.set.Get(name)
}

// Names 返回所有客户端名称
func (f *ClientFactory) Names() []string {
	return f.set.Names()
}

// Dispose 关闭所有客户端
func (f *ClientFactory) Dispose() error {
	f.logger.Info("关闭 Redis 客户端")
	return f.set.Close()
}
