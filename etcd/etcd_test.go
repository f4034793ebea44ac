package etcd

import (
	"testing"

	"github.com/gocrud/decor/config"
	"github.com/gocrud/decor/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
)

type registry struct {
	Client *clientv3.Client `di:""`
	Locks  *clientv3.Client
}

func init() {
	di.Class[registry](di.InjectOptional("Locks", Named("locks")))
}

// clientv3.New 不会阻塞等待连接，无需真实的 etcd 服务
func TestProvideClients(t *testing.T) {
	cfg, err := config.NewConfigurationBuilder().AddInMemory(map[string]any{
		"etcd": map[string]any{"locks": map[string]any{"endpoints": []any{"127.0.0.1:23790"}}},
	}).Build()
	require.NoError(t, err)

	c := di.New()
	require.NoError(t, c.Use(config.Provide(cfg), Provide(WithClient("default"), WithSection("etcd"))))
	require.NoError(t, di.Bind[*registry](c))

	r := di.MustGet[*registry](c)
	require.NotNil(t, r.Client)
	require.NotNil(t, r.Locks)
	assert.Equal(t, []string{"localhost:2379"}, r.Client.Endpoints())
	assert.Equal(t, []string{"127.0.0.1:23790"}, r.Locks.Endpoints())

	require.NoError(t, di.DestroyContainer(c))
}

func TestOptionalClientAbsent(t *testing.T) {
	c := di.New()
	require.NoError(t, c.Use(Provide(WithClient("default"))))
	require.NoError(t, di.Bind[*registry](c))

	r := di.MustGet[*registry](c)
	assert.Nil(t, r.Locks)
	require.NoError(t, di.DestroyContainer(c))
}

func TestProvideValidation(t *testing.T) {
	c := di.New()
	err := c.Use(Provide(WithClient("x", func(o *Options) { o.Endpoints = nil })))
	assert.ErrorContains(t, err, "endpoints are required")

	c = di.New()
	err = c.Use(Provide(WithClient("x", func(o *Options) { o.DialTimeout = 0 })))
	assert.ErrorContains(t, err, "dial timeout must be positive")
}
