package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gocrud/decor/config"
	"github.com/gocrud/decor/di"
	"github.com/gocrud/decor/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type appSettings struct {
	Name string `json:"name"`
}

type pinger struct {
	Logger   logging.Logger      `di:""`
	Config   config.Configuration `di:""`
	started  chan struct{}
	stopped  bool
	disposed bool
	fail     error
}

func (p *pinger) Start(ctx context.Context) error {
	close(p.started)
	if p.fail != nil {
		return p.fail
	}
	<-ctx.Done()
	return nil
}

func (p *pinger) Stop(context.Context) error {
	p.stopped = true
	return nil
}

func (p *pinger) Dispose() error {
	p.disposed = true
	return nil
}

func quiet(b *logging.LoggingBuilder) {
	b.SetMinimumLevel(logging.LogLevelNone)
}

func newPingerRuntime(t *testing.T, p *pinger) *Runtime {
	t.Helper()
	rt := NewRuntime()
	require.NoError(t, rt.Apply(
		WithLogging(quiet),
		WithConfiguration(func(b *config.ConfigurationBuilder) {
			b.AddInMemory(map[string]any{"app": map[string]any{"name": "demo"}})
		}),
		WithProvider(
			config.ProvideOptions[appSettings]("app"),
			func(c *di.Container) error {
				return di.Bind[*pinger](c, func() *pinger { return p })
			},
		),
		WithHostedService(di.KeyOf[*pinger]()),
	))
	return rt
}

func TestRuntimeLifecycle(t *testing.T) {
	p := &pinger{started: make(chan struct{})}
	rt := newPingerRuntime(t, p)

	var order []string
	rt.Lifecycle.OnStart(func(context.Context) error { order = append(order, "start1"); return nil })
	rt.Lifecycle.OnStart(func(context.Context) error { order = append(order, "start2"); return nil })
	rt.Lifecycle.OnStop(func(context.Context) error { order = append(order, "stop1"); return nil })
	rt.Lifecycle.OnStop(func(context.Context) error { order = append(order, "stop2"); return nil })

	require.NoError(t, rt.Start(context.Background()))
	<-p.started

	assert.NotNil(t, p.Logger)
	assert.Equal(t, "demo", p.Config.Get("app:name"))
	assert.True(t, rt.Container().Locked())
	opt := di.MustGet[config.Option[appSettings]](rt.Container())
	assert.Equal(t, "demo", opt.Value().Name)
	assert.Same(t, rt, di.MustGet[*Runtime](rt.Container()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rt.Stop(ctx))

	assert.Equal(t, []string{"start1", "start2", "stop2", "stop1"}, order)
	assert.True(t, p.stopped)
	assert.True(t, p.disposed)
	select {
	case <-rt.Done():
	default:
		t.Error("expected Done to be closed after Stop")
	}
}

func TestRuntimeHostedServiceFailureShutsDown(t *testing.T) {
	boom := errors.New("boom")
	p := &pinger{started: make(chan struct{}), fail: boom}
	rt := newPingerRuntime(t, p)

	reported := make(chan error, 1)
	rt.ErrorHandler = func(err error) { reported <- err }

	require.NoError(t, rt.Start(context.Background()))
	select {
	case err := <-reported:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("expected the failure to be reported")
	}
	<-rt.Done()
	require.NoError(t, rt.Stop(context.Background()))
}

func TestRuntimeStartHookError(t *testing.T) {
	rt := NewRuntime()
	require.NoError(t, rt.Apply(WithLogging(quiet)))
	boom := errors.New("boom")
	rt.Lifecycle.OnStart(func(context.Context) error { return boom })

	assert.ErrorIs(t, rt.Start(context.Background()), boom)
}

func TestRuntimeHostedServiceMustImplementInterface(t *testing.T) {
	rt := NewRuntime()
	require.NoError(t, rt.Apply(
		WithLogging(quiet),
		WithProvider(func(c *di.Container) error { return di.Bind[*appSettings](c) }),
		WithHostedService(di.KeyOf[*appSettings]()),
	))

	err := rt.Start(context.Background())
	assert.ErrorContains(t, err, "does not implement HostedService")
}

func TestRuntimeWorker(t *testing.T) {
	ran := make(chan struct{})
	rt := NewRuntime()
	require.NoError(t, rt.Apply(
		WithLogging(quiet),
		WithWorker("loop", func(ctx context.Context) error {
			close(ran)
			<-ctx.Done()
			return nil
		}),
	))

	require.NoError(t, rt.Start(context.Background()))
	<-ran
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, rt.Stop(ctx))
}

func TestLifecycleStopCollectsErrors(t *testing.T) {
	l := NewLifecycle()
	boom := errors.New("boom")
	called := false
	l.OnStop(func(context.Context) error { called = true; return nil })
	l.OnStop(func(context.Context) error { return boom })

	assert.ErrorIs(t, l.Stop(context.Background()), boom)
	assert.True(t, called)
}

type webFeature struct{ port int }

func TestFeatureCollection(t *testing.T) {
	rt := NewRuntime()
	_, ok := GetFeature[*webFeature](rt)
	assert.False(t, ok)

	rt.Features.Set(&webFeature{port: 80})
	f, ok := GetFeature[*webFeature](rt)
	require.True(t, ok)
	assert.Equal(t, 80, f.port)
}
