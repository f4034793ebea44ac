package mongodb

import (
	"testing"
	"time"

	"github.com/gocrud/decor/config"
	"github.com/gocrud/decor/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type archive struct {
	Client *mongo.Client `di:""`
	Audit  *mongo.Client
}

func init() {
	di.Class[archive](di.Inject("Audit", Named("audit")))
}

// mongo.Connect 不会立即建立连接，未开启 Ping 时无需真实服务
func TestProvideClients(t *testing.T) {
	cfg, err := config.NewConfigurationBuilder().AddInMemory(map[string]any{
		"mongo": map[string]any{"audit": map[string]any{"uri": "mongodb://127.0.0.1:27018", "maxPoolSize": 5}},
	}).Build()
	require.NoError(t, err)

	c := di.New()
	require.NoError(t, c.Use(
		config.Provide(cfg),
		Provide(WithClient("default", "mongodb://127.0.0.1:27017"), WithSection("mongo")),
	))
	require.NoError(t, di.Bind[*archive](c))

	a := di.MustGet[*archive](c)
	require.NotNil(t, a.Client)
	require.NotNil(t, a.Audit)
	assert.NotSame(t, a.Client, a.Audit)
	assert.Equal(t, []string{"default", "audit"}, di.MustGet[*Factory](c).Names())

	require.NoError(t, di.DestroyContainer(c))
}

func TestPingFailure(t *testing.T) {
	c := di.New()
	require.NoError(t, c.Use(Provide(WithClient("default", "mongodb://127.0.0.1:1", func(o *Options) {
		o.Ping = true
		o.Timeout = 200 * time.Millisecond
	}))))

	_, err := di.Get[*mongo.Client](c)
	assert.ErrorContains(t, err, "failed to connect to mongo 'default'")
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, NewDefaultOptions("a", "mongodb://x").Validate())
	assert.Error(t, NewDefaultOptions("", "mongodb://x").Validate())
	assert.Error(t, NewDefaultOptions("a", "").Validate())

	o := NewDefaultOptions("a", "mongodb://x")
	o.MinPoolSize = 200
	assert.Error(t, o.Validate())

	c := di.New()
	assert.Error(t, c.Use(Provide(WithClient("a", "mongodb://x"), WithClient("a", "mongodb://y"))))
}
