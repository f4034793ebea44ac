package etcd

import (
	"fmt"

	"github.com/gocrud/decor/internal/clients"
	"github.com/gocrud/decor/logging"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Factory 按名称持有 etcd 客户端，容器销毁时关闭全部客户端
type Factory struct {
	set    *clients.Set[*clientv3.Client]
	logger logging.Logger
}

// NewFactory 创建客户端工厂
func NewFactory(logger logging.Logger) *Factory {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Factory{
		set:    clients.NewSet("etcd", (*clientv3.Client).Close),
		logger: logger.WithCategory("etcd"),
	}
}

// Register 创建并保存客户端
func (f *Factory) Register(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	cfg := clientv3.Config{
		Endpoints:          opts.Endpoints,
		DialTimeout:        opts.DialTimeout,
		AutoSyncInterval:   opts.AutoSyncInterval,
		MaxCallSendMsgSize: opts.MaxCallSendMsgSize,
		MaxCallRecvMsgSize: opts.MaxCallRecvMsgSize,
	}
	if opts.Username != "" {
		cfg.Username = opts.Username
		cfg.Password = opts.Password
	}

	client, err := clientv3.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create etcd client '%s': %w", opts.Name, err)
	}
	if err := f.set.Add(opts.Name, client); err != nil {
		_ = client.Close()
		return err
	}
	f.logger.Info("etcd 客户端已注册", logging.F("name", opts.Name), logging.F("endpoints", opts.Endpoints))
	return nil
}

// Get 获取指定名称的客户端
func (f *Factory) Get(name string) (*clientv3.Client, error) {
	return f.set.Get(name)
}

// Names 返回所有客户端名称
func (f *Factory) Names() []string {
	return f.set.Names()
}

// Dispose 关闭所有客户端
func (f *Factory) Dispose() error {
	f.logger.Info("关闭 etcd 客户端")
	return f.set.Close()
}
