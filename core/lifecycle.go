package core

import (
	"context"
	"errors"
)

// Hook 是一对启动与停止回调，任一可为 nil
type Hook struct {
	OnStart func(context.Context) error
	OnStop  func(context.Context) error
}

// LifecycleEvents 管理应用程序的启动和停止钩子
type LifecycleEvents struct {
	hooks []Hook
}

// NewLifecycle 创建新的生命周期管理器
func NewLifecycle() *LifecycleEvents {
	return &LifecycleEvents{}
}

// Append 注册一对钩子
func (l *LifecycleEvents) Append(h Hook) {
	l.hooks = append(l.hooks, h)
}

// OnStart 注册启动钩子
func (l *LifecycleEvents) OnStart(fn func(context.Context) error) {
	l.Append(Hook{OnStart: fn})
}

// OnStop 注册停止钩子
func (l *LifecycleEvents) OnStop(fn func(context.Context) error) {
	l.Append(Hook{OnStop: fn})
}

// Start 按注册顺序执行启动钩子，遇到错误立即返回
func (l *LifecycleEvents) Start(ctx context.Context) error {
	for _, h := range l.hooks {
		if h.OnStart == nil {
			continue
		}
		if err := h.OnStart(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop 倒序执行停止钩子，错误不会中断后续钩子
func (l *LifecycleEvents) Stop(ctx context.Context) error {
	var errs []error
	for i := len(l.hooks) - 1; i >= 0; i-- {
		if stop := l.hooks[i].OnStop; stop != nil {
			if err := stop(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
