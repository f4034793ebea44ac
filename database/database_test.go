package database

import (
	"testing"

	"github.com/gocrud/decor/config"
	"github.com/gocrud/decor/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type User struct {
	ID   uint
	Name string
}

// userRepo 同时依赖默认数据库和命名数据库
type userRepo struct {
	DB      *gorm.DB `di:""`
	Reports *gorm.DB
}

func init() {
	di.Class[userRepo](di.Inject("Reports", Named("reports")))
}

func newDBContainer(t *testing.T, opts ...BuilderOption) *di.Container {
	t.Helper()
	cfg, err := config.NewConfigurationBuilder().AddInMemory(map[string]any{
		"databases": map[string]any{
			"reports": map[string]any{"driver": "sqlite", "dsn": "file:reports?mode=memory&cache=shared", "maxOpenConns": 1},
		},
	}).Build()
	require.NoError(t, err)

	c := di.New()
	require.NoError(t, c.Use(config.Provide(cfg), Provide(opts...)))
	return c
}

func TestProvideDatabases(t *testing.T) {
	c := newDBContainer(t,
		WithDatabase("default", sqlite.Open("file:main?mode=memory&cache=shared"), func(o *Options) {
			o.MaxOpenConns = 1
		}),
		WithSection("databases"),
		WithAutoMigrate("default", &User{}),
		WithAutoMigrate("reports", &User{}),
	)
	require.NoError(t, di.Bind[*userRepo](c))

	repo := di.MustGet[*userRepo](c)
	require.NotNil(t, repo.DB)
	require.NotNil(t, repo.Reports)
	assert.NotSame(t, repo.DB, repo.Reports)

	require.NoError(t, repo.DB.Create(&User{Name: "gopher"}).Error)
	var got User
	require.NoError(t, repo.DB.First(&got, "name = ?", "gopher").Error)
	assert.Equal(t, "gopher", got.Name)

	var count int64
	require.NoError(t, repo.Reports.Model(&User{}).Count(&count).Error)
	assert.Zero(t, count)

	factory := di.MustGet[*Factory](c)
	assert.Equal(t, []string{"default", "reports"}, factory.Names())

	require.NoError(t, di.DestroyContainer(c))
	sqlDB, err := repo.DB.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping())
}

func TestProvideValidation(t *testing.T) {
	c := di.New()
	assert.ErrorContains(t, c.Use(Provide(WithDatabase("x", nil))), "dialector or dsn is required")

	c = di.New()
	err := c.Use(Provide(WithDatabase("x", nil, func(o *Options) {
		o.Driver, o.DSN = "oracle", "dsn"
	})))
	assert.ErrorContains(t, err, "unsupported database driver")

	c = di.New()
	d := sqlite.Open("file::memory:")
	assert.ErrorContains(t, c.Use(Provide(WithDatabase("a", d), WithDatabase("a", d))), "already configured")
}

func TestSectionRequiresConfiguration(t *testing.T) {
	c := di.New()
	assert.Error(t, c.Use(Provide(WithSection("databases"))))
}
