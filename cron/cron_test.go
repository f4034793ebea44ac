package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocrud/decor/core"
	"github.com/gocrud/decor/di"
	"github.com/gocrud/decor/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cleaner struct {
	swept   atomic.Int32
	flushed atomic.Int32
}

func (c *cleaner) Sweep() { c.swept.Add(1) }

func (c *cleaner) Flush(ctx context.Context) error {
	c.flushed.Add(1)
	return errors.New("flush failed")
}

type misfit struct{}

func (m *misfit) Sweep(n int) {}

func init() {
	di.Class[cleaner](
		Schedule.On("Sweep", "@every 1h"),
		Schedule.On("Flush", ScheduleOptions{Spec: "0 3 * * *", Name: "nightly-flush"}),
	)
	di.Class[misfit](Schedule.On("Sweep", "@every 1h"))
}

func newCronContainer(t *testing.T, opts ...BuilderOption) *di.Container {
	t.Helper()
	c := di.New()
	require.NoError(t, c.Use(
		func(c *di.Container) error { return di.BindInstance(c, logging.NewNopLogger()) },
		Provide(opts...),
	))
	return c
}

func TestScheduleDeclaration(t *testing.T) {
	c := newCronContainer(t)
	require.NoError(t, di.Bind[*cleaner](c))
	require.NoError(t, di.InitializeContainer(c))

	s := di.MustGet[*Scheduler](c)
	assert.Equal(t, []string{"cleaner.Sweep", "nightly-flush"}, s.Jobs())

	require.NoError(t, s.Trigger("cleaner.Sweep"))
	require.NoError(t, s.Trigger("nightly-flush"))
	cl := di.MustGet[*cleaner](c)
	assert.Equal(t, int32(1), cl.swept.Load())
	assert.Equal(t, int32(1), cl.flushed.Load())

	// 重新绑定时移除旧任务
	require.NoError(t, di.Bind[*cleaner](c))
	assert.Empty(t, s.Jobs())
	assert.Error(t, s.Trigger("cleaner.Sweep"))
}

func TestScheduleInvalidMethod(t *testing.T) {
	c := newCronContainer(t)
	require.NoError(t, di.Bind[*misfit](c))

	assert.ErrorIs(t, di.InitializeContainer(c), ErrJobMethod)
}

type reporter struct {
	calls int
}

func TestWithJobResolvesArguments(t *testing.T) {
	c := newCronContainer(t, WithSeconds(), WithJob("*/10 * * * * *", "report", func(r *reporter) {
		r.calls++
	}))
	require.NoError(t, di.Bind[*reporter](c))

	s := di.MustGet[*Scheduler](c)
	require.NoError(t, s.Trigger("report"))
	require.NoError(t, s.Trigger("report"))
	assert.Equal(t, 2, di.MustGet[*reporter](c).calls)
}

func TestProvideInvalidJob(t *testing.T) {
	c := newCronContainer(t, WithJob("not a spec", "bad", func() {}))
	_, err := di.Get[*Scheduler](c)
	assert.Error(t, err)

	c = newCronContainer(t, WithJob("@every 1m", "bad", 42))
	_, err = di.Get[*Scheduler](c)
	assert.Error(t, err)
}

func TestInvalidLocation(t *testing.T) {
	_, err := NewScheduler(nil, Options{Location: "Mars/Olympus"})
	assert.Error(t, err)
}

func TestSchedulerReplaceAndRemove(t *testing.T) {
	s, err := NewScheduler(nil, Options{})
	require.NoError(t, err)

	var got string
	require.NoError(t, s.Add("job", "@every 1m", func() { got = "first" }))
	require.NoError(t, s.Add("job", "@every 1m", func() { got = "second" }))
	assert.Equal(t, []string{"job"}, s.Jobs())

	require.NoError(t, s.Trigger("job"))
	assert.Equal(t, "second", got)

	s.Remove("job")
	assert.Empty(t, s.Jobs())
}

func TestSchedulerRecoversPanics(t *testing.T) {
	s, err := NewScheduler(nil, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Add("panic", "@every 1m", func() { panic("boom") }))

	assert.NotPanics(t, func() { _ = s.Trigger("panic") })
}

func TestSchedulerStartStop(t *testing.T) {
	s, err := NewScheduler(nil, Options{Seconds: true})
	require.NoError(t, err)

	var runs atomic.Int32
	require.NoError(t, s.Add("tick", "* * * * * *", func() { runs.Add(1) }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	next, ok := s.Next("tick")
	assert.True(t, ok)
	assert.False(t, next.IsZero())

	cancel()
	require.NoError(t, <-done)
	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	assert.NoError(t, s.Stop(stopCtx))
}

func TestNewOnlyOnce(t *testing.T) {
	rt := core.NewRuntime()
	require.NoError(t, rt.Apply(New(WithSeconds())))

	opts, ok := core.GetFeature[*Options](rt)
	require.True(t, ok)
	assert.True(t, opts.Seconds)

	assert.ErrorContains(t, rt.Apply(New()), "already enabled")
}
