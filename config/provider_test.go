package config

import (
	"bytes"
	"sync"
	"testing"

	"github.com/gocrud/decor/di"
	"github.com/gocrud/decor/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type httpServer struct {
	Settings serverSettings
}

type watchedServer struct {
	Settings serverSettings
}

type misdeclared struct{}

type privateServer struct {
	settings serverSettings
}

type liveServer struct {
	Settings Watched[serverSettings]
}

func init() {
	di.Class[httpServer](Section.On("Settings", "server"))
	di.Class[watchedServer](Section.On("Settings", SectionOptions{Key: "server", Watch: true}))
	di.Class[misdeclared](Section.On("Missing", "server"))
	di.Class[privateServer](Section.On("settings", "server"))
	di.Class[liveServer](Section.On("Settings", SectionOptions{Key: "server", Watch: true}))
}

func newTestContainer(t *testing.T, src *mutableSource) *di.Container {
	t.Helper()
	cfg, err := NewConfigurationBuilder().Add(src).BuildReloadable()
	require.NoError(t, err)

	c := di.New()
	require.NoError(t, c.Use(Provide(cfg)))
	return c
}

func TestProvideOptions(t *testing.T) {
	src := &mutableSource{data: map[string]any{"server": map[string]any{"host": "a", "port": 1}}}
	c := newTestContainer(t, src)
	require.NoError(t, c.Use(ProvideOptions[serverSettings]("server")))

	opt := di.MustGet[Option[serverSettings]](c)
	monitor := di.MustGet[OptionMonitor[serverSettings]](c)
	assert.Equal(t, "a", opt.Value().Host)

	cfg := di.MustGet[Configuration](c)
	src.data = map[string]any{"server": map[string]any{"host": "b", "port": 2}}
	require.NoError(t, cfg.(Reloadable).Reload())

	assert.Equal(t, "a", opt.Value().Host)
	assert.Equal(t, "b", monitor.Value().Host)
}

func TestProvideOptionsMissingSection(t *testing.T) {
	c := newTestContainer(t, &mutableSource{data: map[string]any{}})
	require.NoError(t, c.Use(ProvideOptions[serverSettings]("server")))

	_, err := di.Get[Option[serverSettings]](c)
	assert.Error(t, err)
}

func TestSectionDeclaration(t *testing.T) {
	src := &mutableSource{data: map[string]any{"server": map[string]any{"host": "a", "port": 1}}}
	c := newTestContainer(t, src)
	require.NoError(t, di.Bind[*httpServer](c))
	require.NoError(t, di.Bind[*watchedServer](c))
	require.NoError(t, di.InitializeContainer(c))

	plain := di.MustGet[*httpServer](c)
	watched := di.MustGet[*watchedServer](c)
	assert.Equal(t, serverSettings{Host: "a", Port: 1}, plain.Settings)
	assert.Equal(t, serverSettings{Host: "a", Port: 1}, watched.Settings)

	src.data = map[string]any{"server": map[string]any{"host": "b", "port": 2}}
	cfg := di.MustGet[Configuration](c).(Reloadable)
	require.NoError(t, cfg.Reload())
	assert.Equal(t, "a", plain.Settings.Host)
	assert.Equal(t, "b", watched.Settings.Host)

	// 销毁后不再跟随配置变化
	require.NoError(t, di.DestroyContainer(c))
	src.data = map[string]any{"server": map[string]any{"host": "c", "port": 3}}
	require.NoError(t, cfg.Reload())
	assert.Equal(t, "b", watched.Settings.Host)
}

func TestSectionDeclarationInvalidField(t *testing.T) {
	c := newTestContainer(t, &mutableSource{data: map[string]any{"server": map[string]any{}}})
	require.NoError(t, di.Bind[*misdeclared](c))

	err := di.InitializeContainer(c)
	assert.ErrorIs(t, err, ErrSectionField)
}

func TestSectionDeclarationUnexportedField(t *testing.T) {
	src := &mutableSource{data: map[string]any{"server": map[string]any{"host": "a", "port": 1}}}
	c := newTestContainer(t, src)
	require.NoError(t, di.Bind[*privateServer](c))
	require.NoError(t, di.InitializeContainer(c))

	s := di.MustGet[*privateServer](c)
	assert.Equal(t, serverSettings{Host: "a", Port: 1}, s.settings)
}

func TestSectionDeclarationWatchedHolder(t *testing.T) {
	src := &mutableSource{data: map[string]any{"server": map[string]any{"host": "a", "port": 1}}}
	c := newTestContainer(t, src)
	require.NoError(t, di.Bind[*liveServer](c))
	require.NoError(t, di.InitializeContainer(c))

	s := di.MustGet[*liveServer](c)
	assert.Equal(t, "a", s.Settings.Value().Host)

	cfg := di.MustGet[Configuration](c).(Reloadable)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = s.Settings.Value()
		}
	}()
	src.data = map[string]any{"server": map[string]any{"host": "b", "port": 2}}
	require.NoError(t, cfg.Reload())
	wg.Wait()

	assert.Equal(t, serverSettings{Host: "b", Port: 2}, s.Settings.Value())
}

func TestSectionDeclarationReloadKeepsValueOnBindError(t *testing.T) {
	src := &mutableSource{data: map[string]any{"server": map[string]any{"host": "a", "port": 1}}}
	c := newTestContainer(t, src)

	var buf bytes.Buffer
	logger := logging.NewLoggingBuilder().
		AddConsole(logging.ConsoleLoggerOptions{Output: &buf}).
		Build().
		CreateLogger("config")
	require.NoError(t, di.BindInstance[logging.Logger](c, logger))
	require.NoError(t, di.Bind[*watchedServer](c))
	require.NoError(t, di.InitializeContainer(c))

	watched := di.MustGet[*watchedServer](c)
	src.data = map[string]any{"server": map[string]any{"host": "b", "port": "not-a-number"}}
	require.NoError(t, di.MustGet[Configuration](c).(Reloadable).Reload())

	assert.Equal(t, serverSettings{Host: "a", Port: 1}, watched.Settings)
	assert.Contains(t, buf.String(), "配置重新绑定失败")
	assert.Contains(t, buf.String(), "Settings")
}
