package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/edgeflix/internal/index"
)

// Duration acepta "30s", "1h", etc. en YAML y TOML.
type Duration time.Duration

func (d Duration) D() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

// ServiceConfig es la política de cache de un service kind.
type ServiceConfig struct {
	Kind      string   `yaml:"kind" toml:"kind"`
	CacheTTL  Duration `yaml:"cache_ttl" toml:"cache_ttl"`
	CacheMode string   `yaml:"cache_mode" toml:"cache_mode"` // wait | bypass
}

type Config struct {
	App struct {
		// dev | prod | test
		Env     string `yaml:"env" toml:"env"`
		Name    string `yaml:"name" toml:"name"`
		Version string `yaml:"version" toml:"version"`
	} `yaml:"app" toml:"app"`

	Server struct {
		Addr         string   `yaml:"addr" toml:"addr"`
		ReadTimeout  Duration `yaml:"read_timeout" toml:"read_timeout"`
		WriteTimeout Duration `yaml:"write_timeout" toml:"write_timeout"`
	} `yaml:"server" toml:"server"`

	Log struct {
		Level string `yaml:"level" toml:"level"`
	} `yaml:"log" toml:"log"`

	// Si JWTSecret está vacío la API HTTP no exige bearer token.
	Auth struct {
		JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
		Issuer    string `yaml:"issuer" toml:"issuer"`
	} `yaml:"auth" toml:"auth"`

	Cache struct {
		Kind       string   `yaml:"kind" toml:"kind"` // memory | redis
		DefaultTTL Duration `yaml:"default_ttl" toml:"default_ttl"`
		Timeout    Duration `yaml:"timeout" toml:"timeout"`
		Redis      struct {
			Addr     string `yaml:"addr" toml:"addr"`
			DB       int    `yaml:"db" toml:"db"`
			Password string `yaml:"password" toml:"password"`
			Prefix   string `yaml:"prefix" toml:"prefix"`
		} `yaml:"redis" toml:"redis"`
		Memory struct {
			CleanupInterval Duration `yaml:"cleanup_interval" toml:"cleanup_interval"`
		} `yaml:"memory" toml:"memory"`
	} `yaml:"cache" toml:"cache"`

	Breaker struct {
		Threshold int      `yaml:"threshold" toml:"threshold"`
		Window    Duration `yaml:"window" toml:"window"`
		Cooldown  Duration `yaml:"cooldown" toml:"cooldown"`
	} `yaml:"breaker" toml:"breaker"`

	Index struct {
		Driver    string         `yaml:"driver" toml:"driver"` // memory | postgres
		DSN       string         `yaml:"dsn" toml:"dsn"`
		MaxConns  int32          `yaml:"max_conns" toml:"max_conns"`
		Migrate   bool           `yaml:"migrate" toml:"migrate"`
		Memory    struct {
			EventsCap int `yaml:"events_cap" toml:"events_cap"`
		} `yaml:"memory" toml:"memory"`
		Zones     []index.Record `yaml:"zones" toml:"zones"`
		Instances []index.Record `yaml:"instances" toml:"instances"`
	} `yaml:"index" toml:"index"`

	Services []ServiceConfig `yaml:"services" toml:"services"`

	Pipeline struct {
		Workers           int      `yaml:"workers" toml:"workers"`
		ReplicationFactor int      `yaml:"replication_factor" toml:"replication_factor"`
		Edges             []string `yaml:"edges" toml:"edges"`
		DistributeTimeout Duration `yaml:"distribute_timeout" toml:"distribute_timeout"`
		Formats           []string `yaml:"formats" toml:"formats"`
		Resolutions       []string `yaml:"resolutions" toml:"resolutions"`
		RenditionBaseURI  string   `yaml:"rendition_base_uri" toml:"rendition_base_uri"`
	} `yaml:"pipeline" toml:"pipeline"`

	Telemetry struct {
		Timeout Duration `yaml:"timeout" toml:"timeout"`
	} `yaml:"telemetry" toml:"telemetry"`

	// Rate limit por IP sobre /v1/dispatch. Usa redis si cache.kind=redis.
	Rate struct {
		Enabled bool     `yaml:"enabled" toml:"enabled"`
		Limit   int      `yaml:"limit" toml:"limit"`
		Window  Duration `yaml:"window" toml:"window"`
	} `yaml:"rate" toml:"rate"`
}

// Default retorna la configuración por defecto sin leer archivo ni entorno.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// Load lee path (YAML o TOML según extensión), aplica defaults y overrides de entorno y valida.
// Con path vacío sólo se usan defaults + entorno.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			if err := toml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case ".yaml", ".yml", "":
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		default:
			return nil, fmt.Errorf("config: unsupported file extension %q", filepath.Ext(path))
		}
	}

	c.applyDefaults()

	// Overrides por env
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.Name == "" {
		c.App.Name = "edgeflix"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(10 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(30 * time.Second)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "edgeflix"
	}

	// Cache defaults
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.DefaultTTL == 0 {
		c.Cache.DefaultTTL = Duration(3600 * time.Second)
	}
	if c.Cache.Timeout == 0 {
		c.Cache.Timeout = Duration(200 * time.Millisecond)
	}
	if c.Cache.Redis.Addr == "" {
		c.Cache.Redis.Addr = "localhost:6379"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "edgeflix:"
	}
	if c.Cache.Memory.CleanupInterval == 0 {
		c.Cache.Memory.CleanupInterval = Duration(time.Minute)
	}

	// Breaker defaults
	if c.Breaker.Threshold == 0 {
		c.Breaker.Threshold = 5
	}
	if c.Breaker.Window == 0 {
		c.Breaker.Window = Duration(30 * time.Second)
	}
	if c.Breaker.Cooldown == 0 {
		c.Breaker.Cooldown = Duration(10 * time.Second)
	}

	if c.Index.Driver == "" {
		c.Index.Driver = "memory"
	}
	if c.Index.MaxConns == 0 {
		c.Index.MaxConns = 8
	}
	if c.Index.Memory.EventsCap == 0 {
		c.Index.Memory.EventsCap = 10000
	}

	if c.Services == nil {
		c.Services = []ServiceConfig{
			{Kind: "user_service"},
			{Kind: "order_service"},
			{Kind: "report_service", CacheTTL: c.Cache.DefaultTTL, CacheMode: "wait"},
		}
	}
	for i := range c.Services {
		if c.Services[i].CacheMode == "" {
			c.Services[i].CacheMode = "wait"
		}
	}

	// Pipeline defaults
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = 4
	}
	if c.Pipeline.ReplicationFactor == 0 {
		c.Pipeline.ReplicationFactor = 2
	}
	if c.Pipeline.DistributeTimeout == 0 {
		c.Pipeline.DistributeTimeout = Duration(5 * time.Second)
	}
	if len(c.Pipeline.Formats) == 0 {
		c.Pipeline.Formats = []string{"mp4", "3gp"}
	}
	if len(c.Pipeline.Resolutions) == 0 {
		c.Pipeline.Resolutions = []string{"4k", "1080p", "720p"}
	}

	if c.Telemetry.Timeout == 0 {
		c.Telemetry.Timeout = Duration(2 * time.Second)
	}

	if c.Rate.Limit == 0 {
		c.Rate.Limit = 100
	}
	if c.Rate.Window == 0 {
		c.Rate.Window = Duration(time.Minute)
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return Duration(d), true
		}
	}
	return 0, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa el archivo con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvStr("AUTH_JWT_SECRET"); ok {
		c.Auth.JWTSecret = v
	}

	// Cache
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvDur("CACHE_DEFAULT_TTL"); ok {
		c.Cache.DefaultTTL = v
	}
	if v, ok := getEnvDur("CACHE_TIMEOUT"); ok {
		c.Cache.Timeout = v
	}

	// Breaker
	if v, ok := getEnvInt("BREAKER_THRESHOLD"); ok {
		c.Breaker.Threshold = v
	}
	if v, ok := getEnvDur("BREAKER_WINDOW"); ok {
		c.Breaker.Window = v
	}
	if v, ok := getEnvDur("BREAKER_COOLDOWN"); ok {
		c.Breaker.Cooldown = v
	}

	// Index
	if v, ok := getEnvStr("INDEX_DRIVER"); ok {
		c.Index.Driver = v
	}
	if v, ok := getEnvStr("INDEX_DSN"); ok {
		c.Index.DSN = v
	}
	if v, ok := getEnvInt("INDEX_MEMORY_EVENTS_CAP"); ok {
		c.Index.Memory.EventsCap = v
	}

	// Pipeline
	if v, ok := getEnvInt("PIPELINE_WORKERS"); ok {
		c.Pipeline.Workers = v
	}
	if v, ok := getEnvCSV("PIPELINE_EDGES"); ok {
		c.Pipeline.Edges = v
	}
	if v, ok := getEnvInt("PIPELINE_REPLICATION_FACTOR"); ok {
		c.Pipeline.ReplicationFactor = v
	}

	// Rate
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_LIMIT"); ok {
		c.Rate.Limit = v
	}
	if v, ok := getEnvDur("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
}

// Validate chequea valores críticos. Retorna todos los problemas juntos.
func (c *Config) Validate() error {
	var errs []error
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache.kind: unknown %q", c.Cache.Kind))
	}
	switch c.Index.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Index.DSN) == "" {
			errs = append(errs, errors.New("index.dsn: required for postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("index.driver: unknown %q", c.Index.Driver))
	}
	if c.Index.Memory.EventsCap < 1 {
		errs = append(errs, errors.New("index.memory.events_cap: must be >= 1"))
	}
	if c.Breaker.Threshold < 1 {
		errs = append(errs, errors.New("breaker.threshold: must be >= 1"))
	}
	if c.Breaker.Window <= 0 || c.Breaker.Cooldown <= 0 {
		errs = append(errs, errors.New("breaker.window/cooldown: must be > 0"))
	}
	if c.Pipeline.Workers < 1 {
		errs = append(errs, errors.New("pipeline.workers: must be >= 1"))
	}
	if c.Pipeline.ReplicationFactor < 1 {
		errs = append(errs, errors.New("pipeline.replication_factor: must be >= 1"))
	}
	if c.Rate.Enabled && (c.Rate.Limit < 1 || c.Rate.Window <= 0) {
		errs = append(errs, errors.New("rate: limit must be >= 1 and window > 0"))
	}
	seen := map[string]bool{}
	for i, s := range c.Services {
		if strings.TrimSpace(s.Kind) == "" {
			errs = append(errs, fmt.Errorf("services[%d].kind: required", i))
			continue
		}
		if seen[s.Kind] {
			errs = append(errs, fmt.Errorf("services[%d].kind: duplicate %q", i, s.Kind))
		}
		seen[s.Kind] = true
		if s.CacheMode != "wait" && s.CacheMode != "bypass" {
			errs = append(errs, fmt.Errorf("services[%d].cache_mode: unknown %q", i, s.CacheMode))
		}
	}
	return errors.Join(errs...)
}
