// Package decor 是基于声明式依赖注入的应用框架入口。
//
// 服务、路由、定时任务通过 di.Class 在类型上声明，由 Run 统一装配并运行：
//
//	decor.Run(
//		web.New(web.WithPort(8080)),
//		cron.New(),
//		core.WithProvider(func(c *di.Container) error { return di.Bind[*UserController](c) }),
//	)
package decor

import "github.com/gocrud/decor/core"

// New 创建运行时并应用选项，调用方负责 Start 与 Stop
func New(opts ...core.Option) (*core.Runtime, error) {
	rt := core.NewRuntime()
	if err := rt.Apply(opts...); err != nil {
		return nil, err
	}
	return rt, nil
}
