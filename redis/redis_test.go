package redis

import (
	"context"
	"testing"
	"time"

	"github.com/gocrud/decor/config"
	"github.com/gocrud/decor/di"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cacheService struct {
	Default *redis.Client `di:""`
	Cache   *redis.Client
	Queue   *redis.Client
}

func init() {
	di.Class[cacheService](
		di.Inject("Cache", Named("cache")),
		di.InjectOptional("Queue", Named("queue")),
	)
}

func skipPing(o *Options) { o.SkipPing = true }

func newRedisContainer(t *testing.T, opts ...BuilderOption) *di.Container {
	t.Helper()
	cfg, err := config.NewConfigurationBuilder().AddInMemory(map[string]any{
		"redis": map[string]any{
			"session": map[string]any{"addr": "10.0.0.1:6379", "db": 2, "skipPing": true},
		},
	}).Build()
	require.NoError(t, err)

	c := di.New()
	require.NoError(t, c.Use(config.Provide(cfg)))
	require.NoError(t, c.Use(Provide(opts...)))
	return c
}

func TestProvideNamedClients(t *testing.T) {
	c := newRedisContainer(t,
		WithClient("default", skipPing),
		WithClient("cache", skipPing, func(o *Options) { o.Addr = "cache:6379" }),
		WithSection("redis"),
	)
	require.NoError(t, di.Bind[*cacheService](c))

	svc := di.MustGet[*cacheService](c)
	require.NotNil(t, svc.Default)
	require.NotNil(t, svc.Cache)
	assert.Nil(t, svc.Queue)
	assert.Equal(t, "localhost:6379", svc.Default.Options().Addr)
	assert.Equal(t, "cache:6379", svc.Cache.Options().Addr)

	session := di.MustGet[*redis.Client](c, Named("session"))
	assert.Equal(t, "10.0.0.1:6379", session.Options().Addr)
	assert.Equal(t, 2, session.Options().DB)

	factory := di.MustGet[*ClientFactory](c)
	assert.Equal(t, []string{"default", "cache", "session"}, factory.Names())

	require.NoError(t, di.DestroyContainer(c))
	assert.ErrorIs(t, svc.Cache.Ping(context.Background()).Err(), redis.ErrClosed)
}

func TestNamedIsStable(t *testing.T) {
	assert.Equal(t, Named("x"), Named("x"))
	assert.NotEqual(t, Named("x"), Named("y"))
	assert.NotEqual(t, di.KeyOf[*redis.Client](), Named("default"))
}

func TestProvideValidation(t *testing.T) {
	c := di.New()
	err := c.Use(Provide(WithClient("bad", func(o *Options) { o.Addr = "" })))
	assert.ErrorContains(t, err, "redis address is required")

	c = di.New()
	err = c.Use(Provide(WithClient("a", skipPing), WithClient("a", skipPing)))
	assert.ErrorContains(t, err, "already configured")
}

func TestOptionsValidate(t *testing.T) {
	o := NewDefaultOptions("x")
	assert.NoError(t, o.Validate())

	o.DB = -1
	assert.Error(t, o.Validate())

	o = NewDefaultOptions("")
	assert.Error(t, o.Validate())
}

func TestFactoryPingFailure(t *testing.T) {
	c := newRedisContainer(t, WithClient("default", func(o *Options) {
		o.Addr = "127.0.0.1:1"
		o.DialTimeout = 200 * time.Millisecond
		o.MaxRetries = -1
	}))

	_, err := di.Get[*ClientFactory](c)
	assert.ErrorContains(t, err, "failed to connect to redis 'default'")
}
