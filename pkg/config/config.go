package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Addr         string `yaml:"addr"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type IdentityConfig struct {
	Realm        string `yaml:"realm"`
	IssuerEntity string `yaml:"issuer_entity"`
}

// BootstrapConfig seeds the initial principals. Tokens are plaintext here and
// hashed before they reach storage; the authority can later be rotated away
// from the bootstrap principal entirely.
type BootstrapConfig struct {
	AuthorityID    string `yaml:"authority_id"`
	AuthorityName  string `yaml:"authority_name"`
	AuthorityToken string `yaml:"authority_token"`
	VaultID        string `yaml:"vault_id"`
	VaultName      string `yaml:"vault_name"`
	VaultToken     string `yaml:"vault_token"`
}

type AdminConfig struct {
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

type DocsConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

func (d DocsConfig) Enabled() bool { return strings.TrimSpace(d.Endpoint) != "" }

// WebhookConfig points the audit-event notifier at one subscriber. Unset URL
// disables the notifier.
type WebhookConfig struct {
	URL             string `yaml:"url"`
	Secret          string `yaml:"secret"`
	IntervalSeconds int    `yaml:"interval_seconds"`
}

func (w WebhookConfig) Enabled() bool { return strings.TrimSpace(w.URL) != "" }

type LedgerConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Identity  IdentityConfig  `yaml:"identity"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	Admin     AdminConfig     `yaml:"admin"`
	Docs      DocsConfig      `yaml:"docs"`
	Webhook   WebhookConfig   `yaml:"webhook"`
}

type UnitsConfig struct {
	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	Log         LogConfig       `yaml:"log"`
	Bootstrap   BootstrapConfig `yaml:"bootstrap"`
	InitialCap  int64           `yaml:"initial_cap"`
	LockupUntil string          `yaml:"lockup_until"`
}

// LoadLedger reads the ledger service configuration. An empty path skips the
// file and uses defaults plus environment overrides only.
func LoadLedger(path string) (*LedgerConfig, error) {
	var cfg LedgerConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.Server.Addr = envStrDefault("LEDGER_ADDR", cfg.Server.Addr)
	cfg.Database.URL = envStrDefault("DATABASE_URL", cfg.Database.URL)
	cfg.Log.Level = envStrDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envStrDefault("LOG_FORMAT", cfg.Log.Format)
	cfg.Identity.Realm = envStrDefault("LEDGER_REALM", cfg.Identity.Realm)
	cfg.Identity.IssuerEntity = envStrDefault("LEDGER_ISSUER_ENTITY", cfg.Identity.IssuerEntity)
	cfg.Bootstrap.AuthorityToken = envStrDefault("LEDGER_AUTHORITY_TOKEN", cfg.Bootstrap.AuthorityToken)
	cfg.Bootstrap.VaultToken = envStrDefault("LEDGER_VAULT_TOKEN", cfg.Bootstrap.VaultToken)
	cfg.Webhook.URL = envStrDefault("LEDGER_WEBHOOK_URL", cfg.Webhook.URL)
	cfg.Webhook.Secret = envStrDefault("LEDGER_WEBHOOK_SECRET", cfg.Webhook.Secret)
	cfg.Webhook.IntervalSeconds = EnvIntDefault("LEDGER_WEBHOOK_INTERVAL_SECONDS", cfg.Webhook.IntervalSeconds)
	cfg.Admin.RateLimitPerMinute = EnvIntDefault("LEDGER_ADMIN_RATE_LIMIT", cfg.Admin.RateLimitPerMinute)
	cfg.Docs.UseSSL = EnvBoolDefault("LEDGER_DOCS_SSL", cfg.Docs.UseSSL)

	// Defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 262144
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Identity.Realm == "" {
		cfg.Identity.Realm = "mainline"
	}
	if cfg.Bootstrap.AuthorityID == "" {
		cfg.Bootstrap.AuthorityID = "prn_authority"
	}

	return &cfg, nil
}

// LoadUnits reads the units service configuration with the same file/env
// layering as LoadLedger.
func LoadUnits(path string) (*UnitsConfig, error) {
	var cfg UnitsConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.Server.Addr = envStrDefault("UNITS_ADDR", cfg.Server.Addr)
	cfg.Database.URL = envStrDefault("DATABASE_URL", cfg.Database.URL)
	cfg.Log.Level = envStrDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envStrDefault("LOG_FORMAT", cfg.Log.Format)
	cfg.Bootstrap.AuthorityToken = envStrDefault("UNITS_ADMIN_TOKEN", cfg.Bootstrap.AuthorityToken)

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8081"
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 262144
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Bootstrap.AuthorityID == "" {
		cfg.Bootstrap.AuthorityID = "prn_units_admin"
	}

	return &cfg, nil
}

func envStrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func EnvBoolDefault(key string, def bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if raw == "" {
		return def
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func EnvIntDefault(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if v < 0 {
		return 0
	}
	return v
}
