package main

import (
	"fmt"
	"time"

	"github.com/glyzier/auth"
)

// BaseConfig is the root application configuration. Values load from config
// files and environment overrides through the config container.
type BaseConfig struct {
	App         AppConfig         `json:"app" yaml:"app"`
	Auth        AuthConfig        `json:"auth" yaml:"auth"`
	Persistence PersistenceConfig `json:"persistence" yaml:"persistence"`
	Metrics     MetricsConfig     `json:"metrics" yaml:"metrics"`
}

func (c *BaseConfig) Validate() error {
	if c.Auth.SigningKey == "" {
		return fmt.Errorf("auth.signing_key is required")
	}
	if c.Auth.TokenTTLMillis <= 0 {
		return fmt.Errorf("auth.token_ttl_ms must be positive")
	}
	return nil
}

func (c *BaseConfig) GetAuth() *AuthConfig {
	return &c.Auth
}

func (c *BaseConfig) GetPersistence() *PersistenceConfig {
	return &c.Persistence
}

func (c *BaseConfig) GetMetrics() *MetricsConfig {
	return &c.Metrics
}

type AppConfig struct {
	Name    string `json:"name" yaml:"name"`
	Address string `json:"address" yaml:"address"`
}

func (a AppConfig) GetName() string {
	if a.Name == "" {
		return "glyzier"
	}
	return a.Name
}

func (a AppConfig) GetAddress() string {
	if a.Address == "" {
		return ":8080"
	}
	return a.Address
}

// AuthConfig carries the token issuance settings. The TTL is configured in
// milliseconds and fixed for the process lifetime.
type AuthConfig struct {
	SigningKey     string   `json:"signing_key" yaml:"signing_key"`
	SigningMethod  string   `json:"signing_method" yaml:"signing_method"`
	ContextKey     string   `json:"context_key" yaml:"context_key"`
	TokenTTLMillis int64    `json:"token_ttl_ms" yaml:"token_ttl_ms"`
	TokenLookup    string   `json:"token_lookup" yaml:"token_lookup"`
	AuthScheme     string   `json:"auth_scheme" yaml:"auth_scheme"`
	Issuer         string   `json:"issuer" yaml:"issuer"`
	Audience       []string `json:"audience" yaml:"audience"`
}

var _ auth.Config = (*AuthConfig)(nil)

func (c *AuthConfig) GetSigningKey() string {
	return c.SigningKey
}

func (c *AuthConfig) GetSigningMethod() string {
	if c.SigningMethod == "" {
		return "HS256"
	}
	return c.SigningMethod
}

func (c *AuthConfig) GetContextKey() string {
	if c.ContextKey == "" {
		return "user"
	}
	return c.ContextKey
}

func (c *AuthConfig) GetTokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMillis) * time.Millisecond
}

func (c *AuthConfig) GetTokenLookup() string {
	if c.TokenLookup == "" {
		return "header:Authorization,cookie:user"
	}
	return c.TokenLookup
}

func (c *AuthConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return "Bearer"
	}
	return c.AuthScheme
}

func (c *AuthConfig) GetIssuer() string {
	if c.Issuer == "" {
		return "glyzier"
	}
	return c.Issuer
}

func (c *AuthConfig) GetAudience() []string {
	if len(c.Audience) == 0 {
		return []string{"glyzier"}
	}
	return c.Audience
}

type PersistenceConfig struct {
	Debug                 bool   `json:"debug" yaml:"debug"`
	Driver                string `json:"driver" yaml:"driver"`
	Server                string `json:"server" yaml:"server"`
	Database              string `json:"database" yaml:"database"`
	DSN                   string `json:"dsn" yaml:"dsn"`
	PingTimeoutExpression string `json:"ping_timeout" yaml:"ping_timeout"`
}

func (p *PersistenceConfig) GetDebug() bool {
	return p.Debug
}

func (p *PersistenceConfig) GetDriver() string {
	if p.Driver == "" {
		return "sqlite"
	}
	return p.Driver
}

func (p *PersistenceConfig) GetServer() string {
	return p.Server
}

func (p *PersistenceConfig) GetDatabase() string {
	if p.Database == "" {
		return "glyzier.db"
	}
	return p.Database
}

func (p *PersistenceConfig) GetDSN() string {
	if p.DSN == "" {
		return "file:glyzier.db?cache=shared&mode=rwc"
	}
	return p.DSN
}

func (p *PersistenceConfig) GetPingTimeout() time.Duration {
	if p.PingTimeoutExpression == "" {
		return 5 * time.Second
	}
	dur, err := time.ParseDuration(p.PingTimeoutExpression)
	if err != nil {
		panic(
			fmt.Sprintf("unable to parse time: expr %s", p.PingTimeoutExpression),
		)
	}
	return dur
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Address string `json:"address" yaml:"address"`
}

func (m MetricsConfig) GetAddress() string {
	if m.Address == "" {
		return ":9091"
	}
	return m.Address
}
