package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/gocrud/decor/internal/clients"
	"github.com/gocrud/decor/logging"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Factory 按名称持有 MongoDB 客户端，容器销毁时断开全部客户端
type Factory struct {
	set    *clients.Set[*mongo.Client]
	logger logging.Logger
}

// NewFactory 创建客户端工厂
func NewFactory(logger logging.Logger) *Factory {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Factory{
		set:    clients.NewSet("mongo", disconnect),
		logger: logger.WithCategory("mongodb"),
	}
}

func disconnect(c *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.Disconnect(ctx)
}

// Register 创建并保存客户端
func (f *Factory) Register(ctx context.Context, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	clientOpts := options.Client().ApplyURI(opts.URI)
	if opts.Username != "" || opts.Password != "" {
		clientOpts.SetAuth(options.Credential{
			Username: opts.Username,
			Password: opts.Password,
		})
	}
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(opts.MinPoolSize)
	}
	if opts.Timeout > 0 {
		clientOpts.SetConnectTimeout(opts.Timeout)
		clientOpts.SetServerSelectionTimeout(opts.Timeout)
	}

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return fmt.Errorf("failed to create mongo client '%s': %w", opts.Name, err)
	}
	if opts.Ping {
		pingCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
		if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
			_ = disconnect(client)
			return fmt.Errorf("failed to connect to mongo '%s': %w", opts.Name, err)
		}
	}

	if err := f.set.Add(opts.Name, client); err != nil {
		_ = disconnect(client)
		return err
	}
	f.logger.Info("MongoDB 客户端已注册", logging.F("name", opts.Name))
	return nil
}

// Get 获取指定名称的客户端
func (f *Factory) Get(name string) (*mongo.Client, error) {
	return f.set.Get(name)
}

// Names 返回所有客户端名称
func (f *Factory) Names() []string {
	return f.set.Names()
}

// Dispose 断开所有客户端
func (f *Factory) Dispose() error {
	f.logger.Info("关闭 MongoDB 客户端")
	return f.set.Close()
}
