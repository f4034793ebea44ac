package decor

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gocrud/decor/core"
)

// Run 启动应用并阻塞，直到收到退出信号或运行时请求退出
func Run(opts ...core.Option) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, opts...)
}

// RunContext 启动应用并阻塞，直到 ctx 结束或运行时请求退出，然后在 ShutdownTimeout 内优雅关闭
func RunContext(ctx context.Context, opts ...core.Option) error {
	rt, err := New(opts...)
	if err != nil {
		return err
	}

	if err := rt.Start(ctx); err != nil {
		// 启动失败时仍需释放已创建的资源
		_ = stopRuntime(rt)
		return err
	}

	select {
	case <-ctx.Done():
	case <-rt.Done():
	}
	return stopRuntime(rt)
}

func stopRuntime(rt *core.Runtime) error {
	ctx, cancel := context.WithTimeout(context.Background(), rt.ShutdownTimeout)
	defer cancel()
	return rt.Stop(ctx)
}
