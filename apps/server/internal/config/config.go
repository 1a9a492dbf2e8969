// Package config loads server settings from an optional YAML file, a .env
// file and the process environment, in increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"tourney-lite/apps/server/internal/director"
	"tourney-lite/apps/server/internal/events"
	"tourney-lite/apps/server/internal/store"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr      string               `yaml:"listen_addr"`
	Store           StoreConfig          `yaml:"store"`
	Redis           RedisConfig          `yaml:"redis"`
	AMQP            AMQPConfig           `yaml:"amqp"`
	DefaultMaxSeats int                  `yaml:"default_max_seats"`
	Policy          director.LevelPolicy `yaml:"policy"`
}

type StoreConfig struct {
	// Mode is memory, sqlite or postgres.
	Mode       string `yaml:"mode"`
	SQLitePath string `yaml:"sqlite_path"`
	DSN        string `yaml:"dsn"`
}

// RedisConfig enables cross-process snapshot fan-out when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AMQPConfig enables durable audit events when URL is set.
type AMQPConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

func Default() Config {
	return Config{
		ListenAddr:      ":8080",
		Store:           StoreConfig{Mode: store.ModeSQLite},
		AMQP:            AMQPConfig{Queue: events.DefaultAuditQueue},
		DefaultMaxSeats: director.DefaultMaxSeats,
	}
}

// Load builds the configuration. path may be empty, in which case
// TOURNEY_CONFIG names the YAML file, and without either only defaults and
// the environment apply.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default()
	if path == "" {
		path = strings.TrimSpace(os.Getenv("TOURNEY_CONFIG"))
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}
	var errs []error
	num := func(dst *int, key string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
	flag := func(dst *bool, key string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}

	str(&cfg.ListenAddr, "TOURNEY_LISTEN_ADDR")
	str(&cfg.Store.Mode, "TOURNEY_STORE_MODE")
	str(&cfg.Store.SQLitePath, "TOURNEY_SQLITE_PATH")
	str(&cfg.Store.DSN, "TOURNEY_DATABASE_DSN", "DATABASE_URL")
	str(&cfg.Redis.Addr, "REDIS_ADDR")
	str(&cfg.Redis.Password, "REDIS_PASSWORD")
	num(&cfg.Redis.DB, "REDIS_DB")
	str(&cfg.AMQP.URL, "RABBITMQ_URL")
	str(&cfg.AMQP.Queue, "TOURNEY_AUDIT_QUEUE")
	num(&cfg.DefaultMaxSeats, "TOURNEY_DEFAULT_MAX_SEATS")
	num(&cfg.Policy.RebuyUntilLevel, "TOURNEY_REBUY_UNTIL_LEVEL")
	num(&cfg.Policy.MaxRebuys, "TOURNEY_MAX_REBUYS")
	num(&cfg.Policy.AddonFromLevel, "TOURNEY_ADDON_FROM_LEVEL")
	num(&cfg.Policy.MaxAddons, "TOURNEY_MAX_ADDONS")
	flag(&cfg.Policy.AddonBreakOnly, "TOURNEY_ADDON_BREAK_ONLY")
	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	c.Store.Mode = store.NormalizeMode(c.Store.Mode)
	var errs []error
	switch c.Store.Mode {
	case store.ModeMemory, store.ModeSQLite:
	case store.ModePostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store mode postgres requires TOURNEY_DATABASE_DSN or DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store mode %q (supported: %s, %s, %s)",
			c.Store.Mode, store.ModeMemory, store.ModeSQLite, store.ModePostgres))
	}
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if c.DefaultMaxSeats < 2 {
		errs = append(errs, fmt.Errorf("default max seats %d is below 2", c.DefaultMaxSeats))
	}
	if c.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("redis db %d is negative", c.Redis.DB))
	}
	if c.AMQP.URL != "" && c.AMQP.Queue == "" {
		errs = append(errs, errors.New("amqp queue is empty"))
	}
	p := c.Policy
	if p.RebuyUntilLevel < 0 || p.MaxRebuys < 0 || p.AddonFromLevel < 0 || p.MaxAddons < 0 {
		errs = append(errs, errors.New("policy limits must not be negative"))
	}
	return errors.Join(errs...)
}
