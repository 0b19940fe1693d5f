package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, "memory", c.Cache.Kind)
	assert.Equal(t, time.Hour, c.Cache.DefaultTTL.D())
	assert.Equal(t, "localhost:6379", c.Cache.Redis.Addr)
	assert.Equal(t, 5, c.Breaker.Threshold)
	assert.Len(t, c.Services, 3)
	assert.Equal(t, []string{"mp4", "3gp"}, c.Pipeline.Formats)
	require.NoError(t, c.Validate())
}

func TestLoadYAML(t *testing.T) {
	p := write(t, "edgeflix.yaml", `
app:
  env: prod
cache:
  kind: redis
  default_ttl: 90s
  redis:
    addr: cache:6379
breaker:
  threshold: 3
  window: 1m
  cooldown: 5s
index:
  zones:
    - id: us-east
      attributes:
        region: primary
services:
  - kind: report_service
    cache_ttl: 10m
    cache_mode: bypass
pipeline:
  edges: [http://e1, http://e2]
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "prod", c.App.Env)
	assert.Equal(t, "redis", c.Cache.Kind)
	assert.Equal(t, 90*time.Second, c.Cache.DefaultTTL.D())
	assert.Equal(t, "cache:6379", c.Cache.Redis.Addr)
	assert.Equal(t, time.Minute, c.Breaker.Window.D())
	require.Len(t, c.Index.Zones, 1)
	assert.Equal(t, "primary", c.Index.Zones[0].Attributes["region"])
	require.Len(t, c.Services, 1)
	assert.Equal(t, "bypass", c.Services[0].CacheMode)
	assert.Equal(t, 10*time.Minute, c.Services[0].CacheTTL.D())
	assert.Equal(t, []string{"http://e1", "http://e2"}, c.Pipeline.Edges)
}

func TestLoadTOML(t *testing.T) {
	p := write(t, "edgeflix.toml", `
[server]
addr = ":9090"

[breaker]
threshold = 7
cooldown = "30s"

[[services]]
kind = "order_service"

[pipeline]
workers = 8
edges = ["http://edge-1"]
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.Server.Addr)
	assert.Equal(t, 7, c.Breaker.Threshold)
	assert.Equal(t, 30*time.Second, c.Breaker.Cooldown.D())
	assert.Equal(t, "wait", c.Services[0].CacheMode)
	assert.Equal(t, 8, c.Pipeline.Workers)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CACHE_KIND", "redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("BREAKER_COOLDOWN", "2m")
	t.Setenv("PIPELINE_EDGES", "http://a, http://b,")
	t.Setenv("AUTH_JWT_SECRET", "s3cret")
	t.Setenv("RATE_ENABLED", "true")
	t.Setenv("RATE_WINDOW", "10s")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "redis", c.Cache.Kind)
	assert.Equal(t, 3, c.Cache.Redis.DB)
	assert.Equal(t, 2*time.Minute, c.Breaker.Cooldown.D())
	assert.Equal(t, []string{"http://a", "http://b"}, c.Pipeline.Edges)
	assert.Equal(t, "s3cret", c.Auth.JWTSecret)
	assert.True(t, c.Rate.Enabled)
	assert.Equal(t, 100, c.Rate.Limit)
	assert.Equal(t, 10*time.Second, c.Rate.Window.D())
}

func TestValidateCollectsErrors(t *testing.T) {
	t.Setenv("INDEX_DRIVER", "postgres")
	t.Setenv("CACHE_KIND", "memcached")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index.dsn")
	assert.Contains(t, err.Error(), "cache.kind")
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	p := write(t, "edgeflix.json", `{}`)
	_, err := Load(p)
	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"edgeflix.yaml", "edgeflix.toml"} {
		t.Run(name, func(t *testing.T) {
			c := Default()
			c.Pipeline.Edges = []string{"http://edge-a:8080"}
			c.Breaker.Cooldown = Duration(42 * time.Second)

			p := filepath.Join(t.TempDir(), "nested", name)
			require.NoError(t, c.Save(p))

			got, err := Load(p)
			require.NoError(t, err)
			assert.Equal(t, []string{"http://edge-a:8080"}, got.Pipeline.Edges)
			assert.Equal(t, 42*time.Second, got.Breaker.Cooldown.D())
		})
	}
}
