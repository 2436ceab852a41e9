package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverMemcache = "memcache"
	DriverMemory   = "memory"
)

// Config holds the application configuration.
type Config struct {
	Listen   string `yaml:"listen"`
	BasePath string `yaml:"base_path"`
	PidFile  string `yaml:"pid_file"`
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`

	// APIName is the ajax action the admin page posts to.
	APIName      string   `yaml:"api_name"`
	OptionPrefix string   `yaml:"option_prefix"`
	Fields       []string `yaml:"fields"`
	// GMTOffset is the site timezone in signed hours (5.5, -3, ...).
	GMTOffset float64 `yaml:"gmt_offset"`
	EchoInput bool    `yaml:"echo_input"`

	Store Store `yaml:"store"`

	// Parsed from command line (not YAML)
	ConfigPath string `yaml:"-"`
}

// Store selects and configures the option storage backend.
type Store struct {
	Driver          string   `yaml:"driver"`
	Path            string   `yaml:"path"`
	RedisAddr       string   `yaml:"redis_addr"`
	RedisPassword   string   `yaml:"redis_password"`
	RedisDB         int      `yaml:"redis_db"`
	RedisKey        string   `yaml:"redis_key"`
	MemcacheServers []string `yaml:"memcache_servers"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:9924",
		BasePath:     "/",
		PidFile:      "adminsync.pid",
		LogFile:      "adminsync.log",
		LogLevel:     "info",
		APIName:      "angular_admin_api",
		OptionPrefix: "angularjs_admin_data_",
		Fields:       []string{"my_value"},
		Store: Store{
			Driver: DriverSQLite,
			Path:   "adminsync.db",
		},
		ConfigPath: "config.yaml",
	}
}

// RegisterFlags adds the server flags to fs. Defaults mirror DefaultConfig so
// that help output is accurate; Load only applies flags the user changed.
func RegisterFlags(fs *pflag.FlagSet) {
	d := DefaultConfig()
	fs.String("config", d.ConfigPath, "Path to config.yaml")
	fs.String("listen", d.Listen, "HTTP listen address (host:port)")
	fs.String("base-path", d.BasePath, "Base URL path for reverse proxy")
	fs.String("pid-file", d.PidFile, "PID file path")
	fs.String("log-file", d.LogFile, "Log file path")
	fs.String("log-level", d.LogLevel, "Log level (debug, info, warn, error)")
	fs.String("store", d.Store.Driver, "Storage driver (sqlite, redis, memcache, memory)")
	fs.String("db", d.Store.Path, "SQLite database path")
	fs.String("redis-addr", "", "Redis address (host:port)")
	fs.StringSlice("memcache", nil, "Memcache servers (host:port, repeatable)")
	fs.Float64("gmt-offset", d.GMTOffset, "Site timezone offset in hours")
}

// Load reads configuration with priority: defaults < config.yaml < env vars < flags.
// fs may be nil, in which case only the default config path is consulted.
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := DefaultConfig()

	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			cfg.ConfigPath = f.Value.String()
		}
	}

	if err := cfg.loadFile(cfg.ConfigPath); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	if fs != nil {
		if err := cfg.applyFlags(fs); err != nil {
			return nil, err
		}
	}

	cfg.BasePath = normalizeBasePath(cfg.BasePath)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges path into cfg. A missing file is not an error.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ADMINSYNC_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("ADMINSYNC_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("ADMINSYNC_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("ADMINSYNC_API_NAME"); v != "" {
		c.APIName = v
	}
	if v := os.Getenv("ADMINSYNC_STORE"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("ADMINSYNC_DB"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("ADMINSYNC_REDIS_ADDR"); v != "" {
		c.Store.RedisAddr = v
	}
	if v := os.Getenv("ADMINSYNC_REDIS_PASSWORD"); v != "" {
		c.Store.RedisPassword = v
	}
	if v := os.Getenv("ADMINSYNC_MEMCACHE"); v != "" {
		c.Store.MemcacheServers = strings.Split(v, ",")
	}
	if v := os.Getenv("ADMINSYNC_GMT_OFFSET"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.GMTOffset = f
		}
	}
}

func (c *Config) applyFlags(fs *pflag.FlagSet) error {
	var err error
	str := func(name string, dst *string) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetString(name)
		}
	}
	str("listen", &c.Listen)
	str("base-path", &c.BasePath)
	str("pid-file", &c.PidFile)
	str("log-file", &c.LogFile)
	str("log-level", &c.LogLevel)
	str("store", &c.Store.Driver)
	str("db", &c.Store.Path)
	str("redis-addr", &c.Store.RedisAddr)
	if err == nil && fs.Changed("memcache") {
		c.Store.MemcacheServers, err = fs.GetStringSlice("memcache")
	}
	if err == nil && fs.Changed("gmt-offset") {
		c.GMTOffset, err = fs.GetFloat64("gmt-offset")
	}
	return err
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIName) == "" {
		return errors.New("config: api_name must not be empty")
	}
	if len(c.Fields) == 0 {
		return errors.New("config: fields must list at least one setting")
	}
	if c.GMTOffset < -12 || c.GMTOffset > 14 {
		return fmt.Errorf("config: gmt_offset %v out of range", c.GMTOffset)
	}
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return errors.New("config: store.path is required for sqlite")
		}
	case DriverRedis:
		if c.Store.RedisAddr == "" {
			return errors.New("config: store.redis_addr is required for redis")
		}
	case DriverMemcache:
		if len(c.Store.MemcacheServers) == 0 {
			return errors.New("config: store.memcache_servers is required for memcache")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// normalizeBasePath ensures the base path starts with "/" and has no trailing "/".
// Returns "/" for empty or root paths.
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = strings.TrimRight(p, "/")
	return p
}
