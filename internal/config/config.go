package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"PG_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"PG_DB_MAX_CONNS" default:"8"`

	RedisURL string `envconfig:"REDIS_URL" default:"redis://127.0.0.1:6379/0"`

	// Translation feature settings. Captured into a translator.Settings
	// snapshot once per request or task; never read mid-flight.
	TranslatorEnabled            bool   `envconfig:"TRANSLATOR_ENABLED" default:"true"`
	TranslatorProvider           string `envconfig:"TRANSLATOR_PROVIDER" default:"local"`
	TranslatorAllowGuests        bool   `envconfig:"TRANSLATOR_ALLOW_GUESTS" default:"false"`
	TranslatorRateLimitPerMinute int    `envconfig:"TRANSLATOR_RATE_LIMIT_PER_MINUTE" default:"10"`
	TranslatorMaxPostLength      int    `envconfig:"TRANSLATOR_MAX_POST_LENGTH" default:"0"`
	TranslatorExcludedCategories string `envconfig:"TRANSLATOR_EXCLUDED_CATEGORIES" default:""`
	DetectTimeoutSeconds         int    `envconfig:"TRANSLATOR_DETECT_TIMEOUT_SECONDS" default:"20"`
	DetectLockTTLSeconds         int    `envconfig:"TRANSLATOR_DETECT_LOCK_TTL_SECONDS" default:"30"`

	// Provider credentials. Each provider reads only its own substate.
	GoogleCredentialsFile string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS" default:""`
	MicrosoftAPIKey       string `envconfig:"MICROSOFT_TRANSLATOR_API_KEY" default:""`
	MicrosoftRegion       string `envconfig:"MICROSOFT_TRANSLATOR_REGION" default:""`
	YandexAPIKey          string `envconfig:"YANDEX_TRANSLATE_API_KEY" default:""`
	YandexFolderID        string `envconfig:"YANDEX_TRANSLATE_FOLDER_ID" default:""`
	LocalEndpoint         string `envconfig:"TRANSLATION_ENDPOINT" default:"http://127.0.0.1:8845/v1"`
	LocalModel            string `envconfig:"TRANSLATION_MODEL" default:"tencent/HY-MT1.5-7B"`

	DefaultAdminUser     string `envconfig:"DEFAULT_ADMIN_USER" default:"admin"`
	DefaultAdminPassword string `envconfig:"DEFAULT_ADMIN_PASSWORD" default:""`
	SessionTTLHours      int    `envconfig:"SESSION_TTL_HOURS" default:"168"`
	SessionCookieName    string `envconfig:"SESSION_COOKIE_NAME" default:"polyglot_session"`
	SessionCookieSecure  bool   `envconfig:"SESSION_COOKIE_SECURE" default:"false"`
	CORSAllowedOrigins   string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimSpace(c.RedisURL) == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("PG_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("PG_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("PG_DB_MIN_CONNS (%d) cannot exceed PG_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.TranslatorRateLimitPerMinute < 1 {
		return fmt.Errorf("TRANSLATOR_RATE_LIMIT_PER_MINUTE must be >= 1")
	}
	if c.TranslatorMaxPostLength < 0 {
		return fmt.Errorf("TRANSLATOR_MAX_POST_LENGTH must be >= 0 (0 = unlimited)")
	}
	if c.DetectTimeoutSeconds < 1 {
		return fmt.Errorf("TRANSLATOR_DETECT_TIMEOUT_SECONDS must be >= 1")
	}
	if c.DetectLockTTLSeconds < 1 {
		return fmt.Errorf("TRANSLATOR_DETECT_LOCK_TTL_SECONDS must be >= 1")
	}
	if _, err := c.ExcludedCategoryIDs(); err != nil {
		return err
	}
	if strings.TrimSpace(c.DefaultAdminUser) == "" {
		return fmt.Errorf("DEFAULT_ADMIN_USER is required")
	}
	if c.SessionTTLHours < 1 {
		return fmt.Errorf("SESSION_TTL_HOURS must be >= 1")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME is required")
	}
	return nil
}

// ExcludedCategoryIDs parses TRANSLATOR_EXCLUDED_CATEGORIES as a comma-separated
// list of category identifiers.
func (c *Config) ExcludedCategoryIDs() ([]int64, error) {
	if c == nil {
		return nil, nil
	}

	parts := strings.Split(c.TranslatorExcludedCategories, ",")
	ids := make([]int64, 0, len(parts))
	seen := make(map[int64]struct{}, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		id, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil || id < 1 {
			return nil, fmt.Errorf("TRANSLATOR_EXCLUDED_CATEGORIES entry %q must be a positive integer", trimmed)
		}
		if _, exists := seen[id]; exists {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
