// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type TelegramConfig struct {
	AppID    int     `yaml:"app_id"`
	AppHash  string  `yaml:"app_hash"`
	Token    string  `yaml:"token"`
	Username string  `yaml:"username"`
	OwnerID  int64   `yaml:"owner_id"`
	SudoIDs  []int64 `yaml:"sudo_ids"`
	Workers  int     `yaml:"workers"` // polling workers
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type WebConfig struct {
	Port          int    `yaml:"port"`
	APIKey        string `yaml:"api_key"`
	SessionSecret string `yaml:"session_secret"`
}

type PingConfig struct {
	URL             string `yaml:"url"`
	IntervalSeconds int    `yaml:"interval_seconds"`
}

type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Web      WebConfig      `yaml:"web"`
	Ping     PingConfig     `yaml:"ping"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the optional YAML file, overlays environment
// variables (env wins), applies defaults and validates. Missing required
// values abort startup.
func LoadConfig(configPath string, dev bool) (*Config, error) {
	var cfg Config
	if b, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("API_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id <= 0 {
			return fmt.Errorf("API_ID must be a positive integer, got %q", v)
		}
		c.Telegram.AppID = id
	}
	if v := os.Getenv("API_HASH"); v != "" {
		c.Telegram.AppHash = v
	}
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("BOT_USERNAME"); v != "" {
		c.Telegram.Username = strings.TrimPrefix(v, "@")
	}
	if v := os.Getenv("OWNER_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("OWNER_ID must be a positive integer, got %q", v)
		}
		c.Telegram.OwnerID = id
	}
	if v := os.Getenv("SUDO_USERS"); v != "" {
		ids, err := parseIDList(v)
		if err != nil {
			return fmt.Errorf("SUDO_USERS: %w", err)
		}
		c.Telegram.SudoIDs = ids
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("ADMIN_API_KEY"); v != "" {
		c.Web.APIKey = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		c.Web.SessionSecret = v
	}
	if v := os.Getenv("WEB_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 {
			return fmt.Errorf("WEB_PORT must be a positive integer, got %q", v)
		}
		c.Web.Port = p
	}
	if v := os.Getenv("PING_URL"); v != "" {
		c.Ping.URL = v
	}
	if v := os.Getenv("PING_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("PING_INTERVAL must be a positive integer, got %q", v)
		}
		c.Ping.IntervalSeconds = n
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Telegram.Workers <= 0 {
		c.Telegram.Workers = 8
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	c.Redis.TTL = normalizeTTL(c.Redis.TTL)
	if c.Web.Port <= 0 {
		c.Web.Port = 8080
	}
	if c.Ping.IntervalSeconds <= 0 {
		c.Ping.IntervalSeconds = 20
	}
	// Owner is always sudo; keep the list sorted and unique.
	c.Telegram.SudoIDs = normalizeSudo(c.Telegram.SudoIDs, c.Telegram.OwnerID)
}

func (c *Config) validate() error {
	if c.Telegram.AppID <= 0 {
		return errors.New("telegram.app_id is required (API_ID)")
	}
	if c.Telegram.AppHash == "" {
		return errors.New("telegram.app_hash is required (API_HASH)")
	}
	if c.Telegram.Token == "" {
		return errors.New("telegram.token is required (BOT_TOKEN)")
	}
	if c.Telegram.Username == "" {
		return errors.New("telegram.username is required (BOT_USERNAME)")
	}
	if c.Telegram.OwnerID <= 0 {
		return errors.New("telegram.owner_id is required (OWNER_ID)")
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required (DATABASE_URL)")
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required (REDIS_URL)")
	}
	return nil
}

func parseIDList(csv string) ([]int64, error) {
	parts := strings.Split(csv, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func normalizeSudo(ids []int64, ownerID int64) []int64 {
	seen := map[int64]struct{}{}
	out := make([]int64, 0, len(ids)+1)
	if ownerID > 0 {
		seen[ownerID] = struct{}{}
		out = append(out, ownerID)
	}
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
