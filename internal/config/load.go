package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take
// precedence over values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("jira.session_cookie_name", "tenant.session.token")
	v.SetDefault("jira.timezone", "UTC")
	v.SetDefault("sync.max_concurrency", 2)
	v.SetDefault("sync.issue_fanout", 4)
	v.SetDefault("sync.max_search_results", 80)
	v.SetDefault("sync.request_timeout_seconds", 30)

	// Configure to read from an optional config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; everything can come from env vars.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Configure to read from environment variables with HOURSYNC_ prefix
	v.SetEnvPrefix("HOURSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind critical environment variables
	bindEnvs := []struct {
		key    string
		envVar string
	}{
		{"jira.base_url", "HOURSYNC_JIRA_BASE_URL"},
		{"jira.session_cookie_value", "HOURSYNC_JIRA_SESSION_COOKIE_VALUE"},
		{"jira.timezone", "HOURSYNC_JIRA_TIMEZONE"},
		{"server.port", "HOURSYNC_SERVER_PORT"},
		{"server.log_level", "HOURSYNC_SERVER_LOG_LEVEL"},
	}
	for _, env := range bindEnvs {
		if err := v.BindEnv(env.key, env.envVar); err != nil {
			return nil, fmt.Errorf("error binding environment variable %s: %w", env.envVar, err)
		}
	}

	// Unmarshal and validate
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
