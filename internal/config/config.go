package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "NOTEGRAPH"
	defaultHTTPAddress     = "127.0.0.1:8089"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultAuthIssuer      = "notegraph"
	defaultAuthAudience    = "notegraph-intake"
	defaultTokenTTLMinutes = 60 * 24
	defaultMaxIngestBytes  = 4 << 20
)

// AppConfig captures runtime configuration for the notegraph service.
type AppConfig struct {
	HTTPAddress     string
	MaxIngestBytes  int64
	LogLevel        string
	LogFormat       string
	NotifyReactions bool
	SigningSecret   string
	AuthIssuer      string
	AuthAudience    string
	TokenTTL        time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.max_ingest_bytes", defaultMaxIngestBytes)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("ingest.notify_reactions", false)
	configViper.SetDefault("auth.issuer", defaultAuthIssuer)
	configViper.SetDefault("auth.audience", defaultAuthAudience)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		MaxIngestBytes:  configViper.GetInt64("http.max_ingest_bytes"),
		LogLevel:        configViper.GetString("log.level"),
		LogFormat:       configViper.GetString("log.format"),
		NotifyReactions: configViper.GetBool("ingest.notify_reactions"),
		SigningSecret:   configViper.GetString("auth.signing_secret"),
		AuthIssuer:      configViper.GetString("auth.issuer"),
		AuthAudience:    configViper.GetString("auth.audience"),
		TokenTTL:        time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if c.MaxIngestBytes <= 0 {
		return fmt.Errorf("http.max_ingest_bytes must be positive")
	}
	if strings.TrimSpace(c.AuthIssuer) == "" {
		return fmt.Errorf("auth.issuer is required")
	}
	if strings.TrimSpace(c.AuthAudience) == "" {
		return fmt.Errorf("auth.audience is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console")
	}
	return nil
}
