package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gocrud/decor/config"
	"github.com/gocrud/decor/di"
	"github.com/gocrud/decor/hosting"
	"github.com/gocrud/decor/logging"
)

// HostedService 是 hosting.HostedService 的别名，方便只引入 core 的使用者。
type HostedService = hosting.HostedService

// Runtime 是框架的状态容器
//
// Option 只记录配置；Build 时才创建日志、配置和依赖注入容器，
// Start 时初始化容器中的声明并启动托管服务。
type Runtime struct {
	// Features 存放构建时特性，供各模块的 Option 之间共享
	Features FeatureCollection

	// Lifecycle 生命周期钩子
	Lifecycle *LifecycleEvents

	// ErrorHandler 接收托管服务的异常退出错误，默认写日志
	ErrorHandler func(err error)

	// ShutdownTimeout 是 Run 优雅关闭的超时时间
	ShutdownTimeout time.Duration

	mode           di.InjectMode
	providers      []di.Provider
	hostedKeys     []di.Key
	workers        []*hosting.Worker
	loggingBuilder *logging.LoggingBuilder
	configBuilder  *config.ConfigurationBuilder

	built         bool
	container     *di.Container
	loggerFactory logging.LoggerFactory
	configuration config.Configuration
	logger        logging.Logger
	hosted        *hosting.HostedServiceManager

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// NewRuntime 创建一个新的运行时实例
func NewRuntime() *Runtime {
	return &Runtime{
		Lifecycle:       NewLifecycle(),
		ShutdownTimeout: 5 * time.Second,
		configBuilder:   config.NewConfigurationBuilder(),
		shutdownCh:      make(chan struct{}),
	}
}

// Apply 依次应用 Option
func (rt *Runtime) Apply(opts ...Option) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(rt); err != nil {
			return err
		}
	}
	return nil
}

// Build 创建日志、配置和容器，并执行所有已注册的 Provider。重复调用无效果。
func (rt *Runtime) Build() error {
	if rt.built {
		return nil
	}

	if rt.loggingBuilder == nil {
		rt.loggingBuilder = logging.NewLoggingBuilder().AddConsole()
	}
	if err := rt.loggingBuilder.Err(); err != nil {
		return fmt.Errorf("core: failed to build logging: %w", err)
	}
	rt.loggerFactory = rt.loggingBuilder.Build()
	rt.logger = rt.loggerFactory.CreateLogger("core")
	if rt.ErrorHandler == nil {
		rt.ErrorHandler = func(err error) {
			rt.logger.Error("运行时错误", logging.Err(err))
		}
	}

	cfg, err := rt.configBuilder.Build()
	if err != nil {
		return fmt.Errorf("core: failed to build configuration: %w", err)
	}
	rt.configuration = cfg

	rt.container = di.New(
		di.WithInjectMode(rt.mode),
		di.WithLogger(rt.loggerFactory.CreateLogger("di")),
	)
	rt.hosted = hosting.NewHostedServiceManager(rt.logger)

	base := []di.Provider{
		config.Provide(cfg),
		func(c *di.Container) error {
			if err := di.BindInstance(c, rt.loggerFactory); err != nil {
				return err
			}
			if err := di.BindInstance(c, rt.loggerFactory.CreateLogger("app")); err != nil {
				return err
			}
			return di.BindInstance(c, rt)
		},
	}
	if err := rt.container.Use(append(base, rt.providers...)...); err != nil {
		return err
	}

	rt.built = true
	rt.logger.Debug("运行时构建完成", logging.F("services", len(rt.container.ServicesKeys())))
	return nil
}

// Start 初始化容器、执行启动钩子并启动托管服务
func (rt *Runtime) Start(ctx context.Context) error {
	if err := rt.Build(); err != nil {
		return err
	}
	if err := di.InitializeContainer(rt.container); err != nil {
		return err
	}
	rt.container.Lock()

	if err := rt.Lifecycle.Start(ctx); err != nil {
		return err
	}

	for _, key := range rt.hostedKeys {
		v, err := rt.container.Get(key)
		if err != nil {
			return fmt.Errorf("core: failed to resolve hosted service %v: %w", key, err)
		}
		svc, ok := v.(HostedService)
		if !ok {
			return fmt.Errorf("core: %v does not implement HostedService", key)
		}
		rt.hosted.Add(svc)
	}
	for _, w := range rt.workers {
		rt.hosted.Add(w)
	}

	errCh := rt.hosted.StartAll(context.WithoutCancel(ctx))
	go func() {
		for {
			select {
			case err := <-errCh:
				rt.ErrorHandler(err)
				rt.Shutdown()
			case <-rt.shutdownCh:
				return
			}
		}
	}()

	rt.logger.Info("应用已启动")
	return nil
}

// Stop 依次停止托管服务、执行停止钩子并销毁容器
func (rt *Runtime) Stop(ctx context.Context) error {
	if !rt.built {
		return nil
	}
	rt.Shutdown()

	var errs []error
	if err := rt.hosted.StopAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := rt.Lifecycle.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := di.DestroyContainer(rt.container); err != nil {
		errs = append(errs, err)
	}
	rt.logger.Info("应用已停止")
	if err := rt.loggerFactory.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Shutdown 请求应用退出
func (rt *Runtime) Shutdown() {
	rt.shutdownOnce.Do(func() { close(rt.shutdownCh) })
}

// Done 返回一个通道，应用需要退出时关闭
func (rt *Runtime) Done() <-chan struct{} {
	return rt.shutdownCh
}

// Container 返回依赖注入容器，Build 之前为 nil
func (rt *Runtime) Container() *di.Container {
	return rt.container
}

// Configuration 返回配置，Build 之前为 nil
func (rt *Runtime) Configuration() config.Configuration {
	return rt.configuration
}

// Logger 返回运行时日志记录器，Build 之前为 nil
func (rt *Runtime) Logger() logging.Logger {
	return rt.logger
}
