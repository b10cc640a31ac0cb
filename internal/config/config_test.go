package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoad_RequiresLedgerAdmin(t *testing.T) {
	os.Unsetenv("LEDGER_ADMIN_ID")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error when LEDGER_ADMIN_ID is missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("LEDGER_ADMIN_ID", "admin-1")
	defer os.Unsetenv("LEDGER_ADMIN_ID")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LedgerAdminID != "admin-1" {
		t.Errorf("expected LEDGER_ADMIN_ID admin-1, got %s", cfg.LedgerAdminID)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.AuditSink != AuditSinkLog {
		t.Errorf("expected default audit sink log, got %s", cfg.AuditSink)
	}
	if cfg.SnapshotBackend != "none" {
		t.Errorf("expected default snapshot backend none, got %s", cfg.SnapshotBackend)
	}
	if cfg.SnapshotInterval != time.Minute {
		t.Errorf("expected default snapshot interval 1m, got %s", cfg.SnapshotInterval)
	}
	if cfg.LedgerAuditEmergencyAccess {
		t.Error("expected emergency access audit off by default")
	}
	if cfg.DBMaxConns != 20 {
		t.Errorf("expected default max conns 20, got %d", cfg.DBMaxConns)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	env := map[string]string{
		"LEDGER_ADMIN_ID":               "admin-1",
		"LEDGER_AUDIT_EMERGENCY_ACCESS": "true",
		"SNAPSHOT_BACKEND":              "sqlite",
		"SNAPSHOT_INTERVAL":             "30s",
		"CORS_ORIGINS":                  "https://a.example,https://b.example",
	}
	for k, v := range env {
		os.Setenv(k, v)
	}
	defer func() {
		for k := range env {
			os.Unsetenv(k)
		}
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.LedgerAuditEmergencyAccess {
		t.Error("expected emergency access audit enabled")
	}
	if cfg.SnapshotBackend != "sqlite" || cfg.SnapshotInterval != 30*time.Second {
		t.Errorf("unexpected snapshot config: %s every %s", cfg.SnapshotBackend, cfg.SnapshotInterval)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("expected 2 CORS origins, got %v", cfg.CORSOrigins)
	}
}

func TestConfig_ResolvedAuthMode(t *testing.T) {
	tests := []struct {
		env, mode, want string
	}{
		{"development", "", AuthModeDevelopment},
		{"production", "", AuthModeJWT},
		{"staging", "", AuthModeJWT},
		{"development", AuthModeJWT, AuthModeJWT},
	}
	for _, tt := range tests {
		c := &Config{Env: tt.env, AuthMode: tt.mode}
		if got := c.ResolvedAuthMode(); got != tt.want {
			t.Errorf("env=%s mode=%q: got %s, want %s", tt.env, tt.mode, got, tt.want)
		}
	}
}

func validConfig() Config {
	return Config{
		Env:             "production",
		AuthSigningKey:  "secret",
		LedgerAdminID:   "admin-1",
		AuditSink:       AuditSinkLog,
		SnapshotBackend: "none",
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"jwt without key material", func(c *Config) { c.AuthSigningKey = "" }, "AUTH_JWKS_URL or AUTH_SIGNING_KEY"},
		{"jwks only", func(c *Config) { c.AuthSigningKey = ""; c.AuthJWKSURL = "https://idp/jwks" }, ""},
		{"dev auth in production", func(c *Config) { c.AuthMode = AuthModeDevelopment }, "not allowed"},
		{"unknown auth mode", func(c *Config) { c.AuthMode = "saml" }, "AUTH_MODE must be"},
		{"postgres sink without url", func(c *Config) { c.AuditSink = AuditSinkPostgres }, "DATABASE_URL"},
		{"postgres sink without snapshots", func(c *Config) { c.AuditSink = AuditSinkPostgres; c.DatabaseURL = "postgres://x" }, "requires a SNAPSHOT_BACKEND"},
		{"postgres sink with snapshots", func(c *Config) {
			c.AuditSink = AuditSinkPostgres
			c.DatabaseURL = "postgres://x"
			c.SnapshotBackend = "sqlite"
			c.SnapshotPath = "data/ledger.db"
			c.SnapshotInterval = time.Minute
		}, ""},
		{"unknown sink", func(c *Config) { c.AuditSink = "kafka" }, "AUDIT_SINK"},
		{"unknown snapshot backend", func(c *Config) { c.SnapshotBackend = "redis" }, "SNAPSHOT_BACKEND"},
		{"snapshot without interval", func(c *Config) { c.SnapshotBackend = "leveldb"; c.SnapshotPath = "data" }, "SNAPSHOT_INTERVAL"},
		{"snapshot without path", func(c *Config) { c.SnapshotBackend = "sqlite"; c.SnapshotInterval = time.Minute }, "SNAPSHOT_PATH"},
		{"s3 snapshot with file path", func(c *Config) { c.SnapshotBackend = "s3"; c.SnapshotPath = "data/ledger"; c.SnapshotInterval = time.Minute }, "s3://"},
		{"zero rate limit", func(c *Config) { c.RateLimitRPS = 0 }, "RATE_LIMIT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
