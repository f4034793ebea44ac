package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueStore(t *testing.T) {
	store := NewValueStore()
	store.Store(map[string]any{"key": "value"})

	assert.Equal(t, "value", store.Load()["key"])

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Load()
		}()
	}
	wg.Wait()
}

func TestPathCache(t *testing.T) {
	cache := &PathCache{}

	parts := cache.GetPathSegments("a:b.c")
	assert.Equal(t, []string{"a", "b", "c"}, parts)
	assert.Equal(t, parts, cache.GetPathSegments("a:b.c"))
}

func TestBuilderMergesSources(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "app.json")
	yamlPath := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"server":{"host":"localhost","port":8080},"name":"json"}`), 0o644))
	require.NoError(t, os.WriteFile(yamlPath, []byte("server:\n  port: 9090\n  debug: true\n"), 0o644))

	cfg, err := NewConfigurationBuilder().
		AddJsonFile(jsonPath).
		AddYamlFile(yamlPath).
		AddYamlFile(filepath.Join(dir, "missing.yaml"), true).
		AddInMemory(map[string]any{"name": "memory"}).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Get("server:host"))
	port, err := cfg.GetInt("server.port")
	require.NoError(t, err)
	assert.Equal(t, 9090, port)
	debug, err := cfg.GetBool("server:debug")
	require.NoError(t, err)
	assert.True(t, debug)
	assert.Equal(t, "memory", cfg.Get("name"))
	assert.Equal(t, "fallback", cfg.GetWithDefault("server:missing", "fallback"))
	assert.Equal(t, "localhost", cfg.GetSection("server").Get("host"))
}

func TestBuilderMissingRequiredFile(t *testing.T) {
	_, err := NewConfigurationBuilder().AddJsonFile(filepath.Join(t.TempDir(), "none.json")).Build()
	assert.Error(t, err)
}

func TestEnvironmentVariableSource(t *testing.T) {
	t.Setenv("DECORTEST_SERVER_PORT", "7070")
	t.Setenv("DECORTEST_SERVER_TLS", "false")

	cfg, err := NewConfigurationBuilder().AddEnvironmentVariables("DECORTEST_").Build()
	require.NoError(t, err)

	port, err := cfg.GetInt("server:port")
	require.NoError(t, err)
	assert.Equal(t, 7070, port)
	tls, err := cfg.GetBool("server:tls")
	require.NoError(t, err)
	assert.False(t, tls)
}

type serverSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func TestBindAndLoad(t *testing.T) {
	cfg, err := NewConfigurationBuilder().
		AddInMemory(map[string]any{"server": map[string]any{"host": "0.0.0.0", "port": 80}}).
		Build()
	require.NoError(t, err)

	s, err := Load[serverSettings](cfg, "server")
	require.NoError(t, err)
	assert.Equal(t, serverSettings{Host: "0.0.0.0", Port: 80}, s)

	_, err = Load[serverSettings](cfg, "absent")
	assert.Error(t, err)
}

// mutableSource 用于测试重新加载
type mutableSource struct {
	data map[string]any
}

func (s *mutableSource) Name() string                   { return "mutable" }
func (s *mutableSource) Load() (map[string]any, error) { return s.data, nil }

func TestReloadNotifiesListeners(t *testing.T) {
	src := &mutableSource{data: map[string]any{"server": map[string]any{"port": 1}}}
	cfg, err := NewConfigurationBuilder().Add(src).BuildReloadable()
	require.NoError(t, err)

	cache := NewOptionsCache[serverSettings](cfg, "server")
	assert.Equal(t, 1, cache.Value().Port)

	calls := 0
	cancel := cfg.OnReload(func() { calls++ })

	src.data = map[string]any{"server": map[string]any{"port": 2}}
	require.NoError(t, cfg.Reload())
	assert.Equal(t, "2", cfg.GetSection("server").Get("port"))
	assert.Equal(t, 2, cache.Value().Port)
	assert.Equal(t, 1, calls)

	cancel()
	require.NoError(t, cache.Dispose())
	src.data = map[string]any{"server": map[string]any{"port": 3}}
	require.NoError(t, cfg.Reload())
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, cache.Value().Port)
}

func TestEtcdValueParsing(t *testing.T) {
	s := &EtcdSource{Options: EtcdOptions{Prefix: "/app"}}
	result := make(map[string]any)

	s.put(result, "/app/db/dsn", "postgres://localhost")
	s.put(result, "/app/db/pool", `{"max": 10}`)
	s.put(result, "/app/cache", "ttl: 30")
	s.put(result, "/app", "ignored")

	cfg := &view{data: result}
	assert.Equal(t, "postgres://localhost", cfg.Get("db:dsn"))
	max, err := cfg.GetInt("db:pool:max")
	require.NoError(t, err)
	assert.Equal(t, 10, max)
	ttl, err := cfg.GetInt("cache:ttl")
	require.NoError(t, err)
	assert.Equal(t, 30, ttl)
}
