// Package config resolves service and CLI settings from defaults, an
// optional .gitfolio.yaml, GITFOLIO_* environment variables and bound flags.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/ZanzyTHEbar/gitfolio/internal/errors"
	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "GITFOLIO"
	FileName   = ".gitfolio"
	APIVersion = "1.0.0"
)

// Config is the validated runtime configuration
type Config struct {
	GitHubToken   string `mapstructure:"github_token"`
	GitHubBaseURL string `mapstructure:"github_base_url"`

	Port    string `mapstructure:"port"`
	DataDir string `mapstructure:"data_dir"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	MaxAge          time.Duration `mapstructure:"max_age"`
	AnalysisTimeout time.Duration `mapstructure:"analysis_timeout"`
	// Retention deletes stored profiles older than this; zero keeps them forever.
	Retention time.Duration `mapstructure:"retention"`

	Workers       int     `mapstructure:"workers"`
	SourceRPS     float64 `mapstructure:"source_rps"`
	SourceBurst   int     `mapstructure:"source_burst"`
	IPLimitPerMin int     `mapstructure:"ip_limit_per_min"`

	LogLevel   string `mapstructure:"log_level"`
	EnableHSTS bool   `mapstructure:"enable_hsts"`
}

// SetDefaults registers every key so environment variables resolve on Unmarshal
func SetDefaults(v *viper.Viper) {
	v.SetDefault("github_token", "")
	v.SetDefault("github_base_url", "")
	v.SetDefault("port", "8000")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("cache_ttl", "15m")
	v.SetDefault("max_age", "24h")
	v.SetDefault("analysis_timeout", "2m")
	v.SetDefault("retention", "0s")
	v.SetDefault("workers", 8)
	v.SetDefault("source_rps", 10.0)
	v.SetDefault("source_burst", 5)
	v.SetDefault("ip_limit_per_min", 30)
	v.SetDefault("log_level", "info")
	v.SetDefault("enable_hsts", false)
}

// New returns a viper instance with defaults, env binding and the config
// file search path. GITHUB_TOKEN is honored when GITFOLIO_GITHUB_TOKEN is unset.
func New(configFile string) *viper.Viper {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("github_token", EnvPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN")

	SetDefaults(v)
	return v
}

// Load reads the config file if present, then unmarshals and validates
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, apperrors.NewConfigurationError("error reading config file", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.NewConfigurationError("unable to unmarshal config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that would otherwise fail deep inside a component
func (c *Config) Validate() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))

	var problems []string
	if port, err := strconv.Atoi(c.Port); err != nil || port <= 0 || port > 65535 {
		problems = append(problems, fmt.Sprintf("port %q is not a valid TCP port", c.Port))
	}
	if c.DataDir == "" {
		problems = append(problems, "data_dir must not be empty")
	}
	if c.Workers < 1 {
		problems = append(problems, "workers must be at least 1")
	}
	if c.SourceRPS <= 0 {
		problems = append(problems, "source_rps must be positive")
	}
	if c.SourceBurst < 1 {
		problems = append(problems, "source_burst must be at least 1")
	}
	if c.IPLimitPerMin < 1 {
		problems = append(problems, "ip_limit_per_min must be at least 1")
	}
	if c.CacheTTL <= 0 || c.MaxAge <= 0 || c.AnalysisTimeout <= 0 {
		problems = append(problems, "cache_ttl, max_age and analysis_timeout must be positive")
	}
	if c.Retention < 0 {
		problems = append(problems, "retention must not be negative")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}

	if len(problems) > 0 {
		return apperrors.NewConfigurationError(strings.Join(problems, "; "), nil)
	}
	return nil
}

// TokenConfigured reports the /health token field
func (c *Config) TokenConfigured() string {
	if c.GitHubToken != "" {
		return "configured"
	}
	return "not configured"
}
