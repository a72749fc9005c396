package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. RUNNER_ORCHESTRATOR_TOKEN.
const EnvPrefix = "RUNNER"

// Config holds the configuration for the application.
type Config struct {
	Orchestrator struct {
		URL          string   `mapstructure:"url"`
		Organization string   `mapstructure:"organization"`
		Tenant       string   `mapstructure:"tenant"`
		Token        string   `mapstructure:"token"`
		ClientID     string   `mapstructure:"client_id"`
		ClientSecret string   `mapstructure:"client_secret"`
		TokenURL     string   `mapstructure:"token_url"`
		Scopes       []string `mapstructure:"scopes"`
	} `mapstructure:"orchestrator"`
	HTTP struct {
		Timeout    time.Duration `mapstructure:"timeout"`
		RetryCount int           `mapstructure:"retry_count"`
		Debug      bool          `mapstructure:"debug"`
	} `mapstructure:"http"`
	Server struct {
		Addr string `mapstructure:"addr"`
		TLS  struct {
			Enable     bool     `mapstructure:"enable"`
			SelfSigned bool     `mapstructure:"self_signed"`
			CertFile   string   `mapstructure:"cert_file"`
			KeyFile    string   `mapstructure:"key_file"`
			Hostnames  []string `mapstructure:"hostnames"`
		} `mapstructure:"tls"`
	} `mapstructure:"server"`
	Auth struct {
		Environment   string `mapstructure:"environment"`
		DevModeBypass bool   `mapstructure:"dev_mode_bypass"`
		Issuer        string `mapstructure:"issuer"`
		ClientID      string `mapstructure:"client_id"`
	} `mapstructure:"auth"`
	Log struct {
		Level string `mapstructure:"level"`
		JSON  bool   `mapstructure:"json"`
	} `mapstructure:"log"`
	Telemetry struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"telemetry"`
}

// LoadConfig loads the configuration from configFile (or config.yaml in the
// working directory), the environment and an optional .env file. A missing
// config file is not an error; every setting can come from the environment.
func LoadConfig(configFile, envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	config.Orchestrator.URL = strings.TrimRight(strings.TrimSpace(config.Orchestrator.URL), "/")
	config.Auth.Issuer = normalizeIssuer(config.Auth.Issuer)
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("orchestrator.url", "https://cloud.uipath.com")
	v.SetDefault("orchestrator.organization", "")
	v.SetDefault("orchestrator.tenant", "")
	v.SetDefault("orchestrator.token", "")
	v.SetDefault("orchestrator.client_id", "")
	v.SetDefault("orchestrator.client_secret", "")
	v.SetDefault("orchestrator.token_url", "")
	v.SetDefault("orchestrator.scopes", []string{"OR.Folders.Read", "OR.Execution.Read", "OR.Jobs"})
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.retry_count", 0)
	v.SetDefault("http.debug", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.tls.enable", false)
	v.SetDefault("server.tls.self_signed", false)
	v.SetDefault("server.tls.cert_file", "certs/server.crt")
	v.SetDefault("server.tls.key_file", "certs/server.key")
	v.SetDefault("server.tls.hostnames", []string{"localhost", "127.0.0.1"})
	v.SetDefault("auth.environment", "PROD")
	v.SetDefault("auth.dev_mode_bypass", false)
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.client_id", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("telemetry.enabled", true)
}

// loadEnvFile exports the variables of path. An empty path tries .env and
// ignores its absence.
func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// UsesClientCredentials reports whether an external application login is
// configured instead of a personal access token.
func (c *Config) UsesClientCredentials() bool {
	return c.Orchestrator.ClientID != "" && c.Orchestrator.ClientSecret != ""
}

// Validate checks that the orchestrator credential triple can be formed.
func (c *Config) Validate() error {
	var missing []string
	if c.Orchestrator.Organization == "" {
		missing = append(missing, "orchestrator.organization")
	}
	if c.Orchestrator.Tenant == "" {
		missing = append(missing, "orchestrator.tenant")
	}
	if c.Orchestrator.Token == "" && !c.UsesClientCredentials() {
		missing = append(missing, "orchestrator.token (or client_id and client_secret)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// BypassAuth reports whether inbound authentication is disabled. It only
// applies in the DEV environment.
func (c *Config) BypassAuth() bool {
	return strings.EqualFold(c.Auth.Environment, "DEV") && c.Auth.DevModeBypass
}

// normalizeIssuer strips surrounding space and any trailing slash so a URL
// pasted from the identity provider console matches the token's iss claim.
func normalizeIssuer(input string) string {
	return strings.TrimRight(strings.TrimSpace(input), "/")
}
