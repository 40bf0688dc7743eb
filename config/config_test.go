package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("AUTHJWT_SECRET_KEY", "secret")

	cfg := LoadConfig()

	if cfg.Server.Addr() != "127.0.0.1:8000" {
		t.Errorf("Server.Addr() = %q, want %q", cfg.Server.Addr(), "127.0.0.1:8000")
	}
	if cfg.Auth.Algorithm != "HS256" {
		t.Errorf("Auth.Algorithm = %q, want HS256", cfg.Auth.Algorithm)
	}
	if cfg.Auth.AccessTTL() != 24*time.Hour {
		t.Errorf("Auth.AccessTTL() = %v, want 24h", cfg.Auth.AccessTTL())
	}
	if !cfg.Auth.DenylistEnabled {
		t.Error("expected denylist to be enabled by default")
	}
	if cfg.Storage.Backend != StorageLocal {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, StorageLocal)
	}
	if cfg.MQ.Backend != MQNone {
		t.Errorf("MQ.Backend = %q, want %q", cfg.MQ.Backend, MQNone)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("SERVER_HOST", "0.0.0.0")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ACCESS_EXPIRES", "3")
	t.Setenv("AUTHJWT_DENYLIST_ENABLED", "false")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("STORAGE_BACKEND", "MINIO")

	cfg := LoadConfig()

	if cfg.Server.Addr() != "0.0.0.0:9090" {
		t.Errorf("Server.Addr() = %q", cfg.Server.Addr())
	}
	if cfg.Auth.AccessTTL() != 72*time.Hour {
		t.Errorf("Auth.AccessTTL() = %v, want 72h", cfg.Auth.AccessTTL())
	}
	if cfg.Auth.DenylistEnabled {
		t.Error("expected denylist to be disabled")
	}
	if cfg.Redis.DB != 2 {
		t.Errorf("Redis.DB = %d, want 2", cfg.Redis.DB)
	}
	if cfg.Storage.Backend != StorageMinio {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, StorageMinio)
	}
}

func TestLoadConfig_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")

	cfg := LoadConfig()
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "foodgram",
		Password: "p@ss",
		DBName:   "foodgram",
	}
	got := d.DSN()
	if !strings.HasPrefix(got, "postgres://foodgram:p%40ss@db:5432/foodgram") {
		t.Errorf("DSN() = %q", got)
	}
	if !strings.Contains(got, "sslmode=disable") {
		t.Errorf("DSN() = %q, want sslmode=disable", got)
	}

	d.UseSSL = true
	if !strings.Contains(d.DSN(), "sslmode=require") {
		t.Errorf("DSN() = %q, want sslmode=require", d.DSN())
	}

	d.URL = "postgres://override"
	if d.DSN() != "postgres://override" {
		t.Errorf("DSN() = %q, want URL override", d.DSN())
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing secret", func(c *Config) { c.Auth.SecretKey = "" }, "AUTHJWT_SECRET_KEY"},
		{"asymmetric algorithm", func(c *Config) { c.Auth.Algorithm = "RS256" }, "JWT_ALGORITHM"},
		{"zero ttl", func(c *Config) { c.Auth.AccessExpires = 0 }, "ACCESS_EXPIRES"},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "ftp" }, "STORAGE_BACKEND"},
		{"unknown mq", func(c *Config) { c.MQ.Backend = "kafka" }, "MQ_BACKEND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AUTHJWT_SECRET_KEY", "secret")
			cfg := LoadConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
