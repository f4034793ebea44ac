package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gocrud/decor/logging"
	"github.com/robfig/cron/v3"
)

// Options 调度器选项
type Options struct {
	// Seconds 启用秒级精度（默认分钟级）
	Seconds bool `json:"seconds" yaml:"seconds"`
	// Location 时区，默认 UTC
	Location string `json:"location" yaml:"location"`
	// Verbose 输出 cron 库内部的调度日志
	Verbose bool `json:"verbose" yaml:"verbose"`
}

// Scheduler 定时任务调度器，同时是托管服务
type Scheduler struct {
	cron   *cron.Cron
	logger logging.Logger

	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

// NewScheduler 创建调度器
func NewScheduler(logger logging.Logger, opts Options) (*Scheduler, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithCategory("cron")

	loc := time.UTC
	if opts.Location != "" {
		l, err := time.LoadLocation(opts.Location)
		if err != nil {
			return nil, fmt.Errorf("cron: invalid location '%s': %w", opts.Location, err)
		}
		loc = l
	}

	cl := &cronLogger{logger: logger}
	cronOpts := []cron.Option{
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cl)),
	}
	if opts.Verbose {
		cronOpts = append(cronOpts, cron.WithLogger(cl))
	}
	if opts.Seconds {
		cronOpts = append(cronOpts, cron.WithSeconds())
	}

	return &Scheduler{
		cron:   cron.New(cronOpts...),
		logger: logger,
		jobs:   make(map[string]cron.EntryID),
	}, nil
}

// Add 添加定时任务，同名任务会被替换
// spec 为 cron 表达式，如 "*/5 * * * *"，启用秒级精度时为 "0 */5 * * * *"。
func (s *Scheduler) Add(name, spec string, job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() {
		s.logger.Debug("任务开始", logging.F("job", name))
		job()
	})
	if err != nil {
		return fmt.Errorf("cron: failed to add job '%s': %w", name, err)
	}
	if old, ok := s.jobs[name]; ok {
		s.cron.Remove(old)
	}
	s.jobs[name] = id
	s.logger.Debug("添加任务", logging.F("job", name), logging.F("spec", spec))
	return nil
}

// Remove 移除定时任务
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.jobs[name]; ok {
		s.cron.Remove(id)
		delete(s.jobs, name)
		s.logger.Debug("移除任务", logging.F("job", name))
	}
}

// Jobs 返回已注册的任务名，按名称排序
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Next 返回任务下次执行的时间
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// Trigger 立即同步执行一次任务
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	id, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("cron: job '%s' not found", name)
	}
	s.cron.Entry(id).WrappedJob.Run()
	return nil
}

func (s *Scheduler) Name() string { return "cron" }

// Start 启动调度并阻塞直到 ctx 取消
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("调度器启动", logging.F("jobs", len(s.Jobs())))
	s.cron.Start()
	<-ctx.Done()
	return nil
}

// Stop 停止调度并等待正在执行的任务完成
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("调度器停止")
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger 把 cron.Logger 适配到 logging.Logger
type cronLogger struct {
	logger logging.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, convertToFields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(convertToFields(keysAndValues), logging.Err(err))...)
}

func convertToFields(keysAndValues []any) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.F(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
