package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	AuthModeDevelopment = "development"
	AuthModeJWT         = "jwt"

	AuditSinkLog      = "log"
	AuditSinkPostgres = "postgres"
)

type Config struct {
	Port         string `mapstructure:"PORT"`
	Env          string `mapstructure:"ENV"`
	AuthMode     string `mapstructure:"AUTH_MODE"`
	AuthIssuer   string `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL  string `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience string `mapstructure:"AUTH_AUDIENCE"`
	// HS256 secret; used when no JWKS URL is configured.
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	// LedgerAdminID is the principal that administers a fresh ledger.
	LedgerAdminID              string `mapstructure:"LEDGER_ADMIN_ID"`
	LedgerAuditEmergencyAccess bool   `mapstructure:"LEDGER_AUDIT_EMERGENCY_ACCESS"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	AuditSink   string `mapstructure:"AUDIT_SINK"`

	SnapshotBackend  string        `mapstructure:"SNAPSHOT_BACKEND"`
	SnapshotPath     string        `mapstructure:"SNAPSHOT_PATH"`
	SnapshotInterval time.Duration `mapstructure:"SNAPSHOT_INTERVAL"`

	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
}

var envKeys = []string{
	"PORT", "ENV", "AUTH_MODE", "AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"LEDGER_ADMIN_ID", "LEDGER_AUDIT_EMERGENCY_ACCESS",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "AUDIT_SINK",
	"SNAPSHOT_BACKEND", "SNAPSHOT_PATH", "SNAPSHOT_INTERVAL",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // inferred from ENV
	v.SetDefault("LEDGER_AUDIT_EMERGENCY_ACCESS", false)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("AUDIT_SINK", AuditSinkLog)
	v.SetDefault("SNAPSHOT_BACKEND", "none")
	v.SetDefault("SNAPSHOT_PATH", "data/ledger")
	v.SetDefault("SNAPSHOT_INTERVAL", "1m")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.LedgerAdminID == "" {
		return nil, fmt.Errorf("LEDGER_ADMIN_ID is required")
	}

	if cfg.ResolvedAuthMode() == AuthModeDevelopment {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Development auth is active: the caller is whoever the")
		log.Println("WARNING: X-Principal-ID header names. Do NOT expose this server.")
		log.Println("WARNING: Set ENV=production and AUTH_SIGNING_KEY or AUTH_JWKS_URL.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns AUTH_MODE when set, otherwise "development" for
// ENV=development and "jwt" for everything else.
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return AuthModeDevelopment
	}
	return AuthModeJWT
}

// Validate rejects combinations the server cannot run with.
func (c *Config) Validate() error {
	switch mode := c.ResolvedAuthMode(); mode {
	case AuthModeDevelopment:
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=development is not allowed with ENV=production")
		}
	case AuthModeJWT:
		if c.AuthJWKSURL == "" && c.AuthSigningKey == "" {
			return fmt.Errorf("AUTH_JWKS_URL or AUTH_SIGNING_KEY must be set when AUTH_MODE is %q", AuthModeJWT)
		}
	default:
		return fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthModeDevelopment, AuthModeJWT, mode)
	}

	switch c.AuditSink {
	case AuditSinkLog:
	case AuditSinkPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when AUDIT_SINK is %q", AuditSinkPostgres)
		}
	default:
		return fmt.Errorf("AUDIT_SINK must be %q or %q, got %q", AuditSinkLog, AuditSinkPostgres, c.AuditSink)
	}

	switch c.SnapshotBackend {
	case "none":
	case "leveldb", "sqlite", "s3":
		if c.SnapshotPath == "" {
			return fmt.Errorf("SNAPSHOT_PATH is required when SNAPSHOT_BACKEND is %q", c.SnapshotBackend)
		}
		if c.SnapshotBackend == "s3" && !strings.HasPrefix(c.SnapshotPath, "s3://") {
			return fmt.Errorf("SNAPSHOT_PATH must be an s3:// URL when SNAPSHOT_BACKEND is s3, got %q", c.SnapshotPath)
		}
		if c.SnapshotInterval <= 0 {
			return fmt.Errorf("SNAPSHOT_INTERVAL must be positive, got %s", c.SnapshotInterval)
		}
	default:
		return fmt.Errorf("SNAPSHOT_BACKEND must be none, leveldb, sqlite or s3, got %q", c.SnapshotBackend)
	}

	// Postgres keeps every event across restarts, so the ledger must restart
	// from a snapshot or it would reissue sequence numbers.
	if c.AuditSink == AuditSinkPostgres && c.SnapshotBackend == "none" {
		return fmt.Errorf("AUDIT_SINK %q requires a SNAPSHOT_BACKEND", AuditSinkPostgres)
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}
