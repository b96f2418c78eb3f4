package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testYAML = `bind_addr: "0.0.0.0"
port: "8080"
env: production
database:
  host: db.internal
  port: 5433
  user: engine
  database: variants
flag_cache_ttl: 2m
`

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(testYAML), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Chdir(dir)

	cfg, err := Load("1.2.3")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Version != "1.2.3" {
		t.Errorf("Version = %s, want 1.2.3", cfg.Version)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Port)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("Database.Host = %s, want db.internal", cfg.Database.Host)
	}
	if cfg.FlagCacheTTL != 2*time.Minute {
		t.Errorf("FlagCacheTTL = %v, want 2m", cfg.FlagCacheTTL)
	}
	if cfg.Redis.Host != "" {
		t.Errorf("Redis.Host = %s, want empty (cache disabled)", cfg.Redis.Host)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(testYAML), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Chdir(dir)
	t.Setenv("PGHOST", "override.internal")
	t.Setenv("PGPASSWORD", "s3cret")

	cfg, err := Load("dev")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Database.Host != "override.internal" {
		t.Errorf("Database.Host = %s, want override.internal", cfg.Database.Host)
	}
	if cfg.Database.Password != "s3cret" {
		t.Errorf("Database.Password not taken from environment")
	}
}

func TestConnectionString(t *testing.T) {
	c := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "variant",
		Password: "pw",
		Database: "variant_engine",
		SSLMode:  "disable",
	}

	want := "host=localhost port=5432 user=variant password=pw dbname=variant_engine sslmode=disable"
	if got := c.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}
