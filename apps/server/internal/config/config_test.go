package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tourney-lite/apps/server/internal/store"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tourney.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
listen_addr: ":9090"
store:
  mode: pg
  dsn: postgres://td@localhost/tourney
default_max_seats: 10
policy:
  rebuy_until_level: 6
  max_rebuys: 1
  addon_break_only: true
`)
	t.Setenv("TOURNEY_MAX_REBUYS", "3")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.ListenAddr != ":9090" || cfg.Store.Mode != store.ModePostgres || cfg.DefaultMaxSeats != 10 {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.Policy.RebuyUntilLevel != 6 || cfg.Policy.MaxRebuys != 3 || !cfg.Policy.AddonBreakOnly {
		t.Fatalf("policy=%+v", cfg.Policy)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.AMQP.Queue == "" {
		t.Fatalf("redis=%+v amqp=%+v", cfg.Redis, cfg.AMQP)
	}
}

func TestLoadRejectsUnknownYAMLField(t *testing.T) {
	path := writeFile(t, "listen_adr: \":1\"\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for misspelled field")
	}
}

func TestApplyEnvReportsBadNumbers(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"TOURNEY_DEFAULT_MAX_SEATS": "nine",
		"TOURNEY_ADDON_BREAK_ONLY":  "maybe",
		"DATABASE_URL":              "postgres://x",
	}
	err := applyEnv(&cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, key := range []string{"TOURNEY_DEFAULT_MAX_SEATS", "TOURNEY_ADDON_BREAK_ONLY"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("error %q does not name %s", err, key)
		}
	}
	if cfg.Store.DSN != "postgres://x" {
		t.Fatalf("DATABASE_URL fallback not applied: %q", cfg.Store.DSN)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Store.Mode = "postgres"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "DSN") {
		t.Fatalf("expected missing DSN error, got %v", err)
	}

	cfg = Default()
	cfg.Store.Mode = "mem"
	cfg.DefaultMaxSeats = 1
	cfg.Policy.MaxAddons = -1
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "max seats") || !strings.Contains(err.Error(), "negative") {
		t.Fatalf("expected seat and policy errors, got %v", err)
	}
	if cfg.Store.Mode != store.ModeMemory {
		t.Fatalf("mode=%q, want normalized %q", cfg.Store.Mode, store.ModeMemory)
	}

	def := Default()
	if err := def.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}
