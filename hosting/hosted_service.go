package hosting

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gocrud/decor/logging"
)

// HostedService 托管服务接口
// 框架会在独立的 goroutine 中调用 Start，Start 可以阻塞直到 ctx 取消。
type HostedService interface {
	Start(ctx context.Context) error
	// Stop 执行优雅关闭，必须遵守 ctx 的超时。
	Stop(ctx context.Context) error
}

// Named 由希望在日志中显示名称的托管服务实现
type Named interface {
	Name() string
}

// HostedServiceManager 托管服务管理器
type HostedServiceManager struct {
	services []HostedService
	logger   logging.Logger
	mu       sync.RWMutex
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// NewHostedServiceManager 创建托管服务管理器
func NewHostedServiceManager(logger logging.Logger) *HostedServiceManager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &HostedServiceManager{logger: logger.WithCategory("hosting")}
}

// Add 添加托管服务
func (m *HostedServiceManager) Add(service HostedService) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, service)
}

// Len 返回已添加的服务数
func (m *HostedServiceManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.services)
}

// StartAll 在各自的 goroutine 中启动所有托管服务。
// 服务以非取消错误退出时，错误会发送到返回的通道。
func (m *HostedServiceManager) StartAll(ctx context.Context) <-chan error {
	m.mu.Lock()
	services := make([]HostedService, len(m.services))
	copy(services, m.services)
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	errCh := make(chan error, len(services))
	m.logger.Info("启动托管服务", logging.F("count", len(services)))

	for _, svc := range services {
		m.wg.Add(1)
		go func(svc HostedService) {
			defer m.wg.Done()
			name := nameOf(svc)
			m.logger.Debug("托管服务启动", logging.F("service", name))

			err := svc.Start(ctx)
			switch {
			case err == nil:
				m.logger.Debug("托管服务已退出", logging.F("service", name))
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				m.logger.Debug("托管服务已停止", logging.F("service", name))
			default:
				m.logger.Error("托管服务异常退出", logging.F("service", name), logging.Err(err))
				errCh <- fmt.Errorf("hosting: %s: %w", name, err)
			}
		}(svc)
	}
	return errCh
}

// StopAll 取消启动上下文，并逆序并发调用 Stop，等待全部完成。
func (m *HostedServiceManager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	services := make([]HostedService, len(m.services))
	copy(services, m.services)
	cancel := m.cancel
	m.mu.RUnlock()

	m.logger.Info("停止托管服务", logging.F("count", len(services)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := len(services) - 1; i >= 0; i-- {
		wg.Add(1)
		go func(svc HostedService) {
			defer wg.Done()
			if err := svc.Stop(ctx); err != nil {
				m.logger.Error("托管服务停止失败", logging.F("service", nameOf(svc)), logging.Err(err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(services[i])
	}
	wg.Wait()

	if cancel != nil {
		cancel()
	}
	return errors.Join(errs...)
}

// Wait 等待所有 Start 返回
func (m *HostedServiceManager) Wait() {
	m.wg.Wait()
}

func nameOf(svc HostedService) string {
	if n, ok := svc.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", svc)
}

// WorkerFunc 是阻塞的后台任务，通过 ctx.Done() 判断退出。
type WorkerFunc func(ctx context.Context) error

// Worker 把 WorkerFunc 适配为 HostedService。
type Worker struct {
	name string
	fn   WorkerFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWorker 创建后台任务服务
func NewWorker(name string, fn WorkerFunc) *Worker {
	return &Worker{name: name, fn: fn}
}

func (w *Worker) Name() string { return w.name }

// Start 运行任务直到返回或 ctx 取消
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.mu.Lock()
	w.cancel, w.done = cancel, done
	w.mu.Unlock()

	defer close(done)
	return w.fn(ctx)
}

// Stop 取消任务并等待其返回
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
