// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	BotToken string
	Port     string
	DBPath   string
	Airtable AirtableConfig
	Wizard   WizardConfig
}

// AirtableConfig holds the external record store credentials.
type AirtableConfig struct {
	APIKey string
	BaseID string
	Table  string
}

// WizardConfig controls the wizard's timing behavior.
type WizardConfig struct {
	SessionTTL       time.Duration
	AutoApproveDelay time.Duration
	CleanupDelay     time.Duration
	NoticeDelay      time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		BotToken: getEnv("BOT_TOKEN", ""),
		Port:     getEnv("PORT", "8080"),
		DBPath:   getEnv("DB_PATH", "./data/toolbot.db"),
		Airtable: AirtableConfig{
			APIKey: getEnv("AIRTABLE_API_KEY", ""),
			BaseID: getEnv("AIRTABLE_BASE_ID", ""),
			Table:  getEnv("AIRTABLE_TABLE", "Pintegram"),
		},
		Wizard: WizardConfig{
			SessionTTL:       getEnvDuration("WIZARD_SESSION_TTL", 2*time.Minute),
			AutoApproveDelay: getEnvDuration("WIZARD_AUTO_APPROVE_DELAY", 15*time.Second),
			CleanupDelay:     getEnvDuration("WIZARD_CLEANUP_DELAY", 15*time.Second),
			NoticeDelay:      getEnvDuration("WIZARD_NOTICE_DELAY", 5*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN cannot be empty")
	}
	if c.Airtable.APIKey == "" {
		return fmt.Errorf("AIRTABLE_API_KEY cannot be empty")
	}
	if c.Airtable.BaseID == "" {
		return fmt.Errorf("AIRTABLE_BASE_ID cannot be empty")
	}
	if c.Airtable.Table == "" {
		return fmt.Errorf("AIRTABLE_TABLE cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Wizard.SessionTTL <= 0 {
		return fmt.Errorf("WIZARD_SESSION_TTL must be > 0")
	}
	if c.Wizard.AutoApproveDelay <= 0 {
		return fmt.Errorf("WIZARD_AUTO_APPROVE_DELAY must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
