package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/polyglot/internal/cli"
	"horse.fit/polyglot/internal/config"
	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/translator"
)

// settingsFromConfig snapshots the translation feature state. Callers pass
// the snapshot down per request or per task so a mid-flight env change
// cannot split one operation across two configurations.
func settingsFromConfig(cfg *config.Config) (translator.Settings, error) {
	excluded, err := cfg.ExcludedCategoryIDs()
	if err != nil {
		return translator.Settings{}, err
	}
	return translator.Settings{
		Enabled:            cfg.TranslatorEnabled,
		Provider:           strings.TrimSpace(strings.ToLower(cfg.TranslatorProvider)),
		AllowGuests:        cfg.TranslatorAllowGuests,
		RateLimitPerMinute: cfg.TranslatorRateLimitPerMinute,
		MaxPostLength:      cfg.TranslatorMaxPostLength,
		ExcludedCategories: excluded,
	}, nil
}

// buildRegistry registers every provider whose credentials are present in
// the environment. The local provider needs no credentials and is always
// registered. The returned cleanup closes providers that hold connections.
func buildRegistry(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*translator.Registry, func(), error) {
	registry := translator.NewRegistry()
	registry.Register(translator.NewLocalProvider(cfg.LocalEndpoint, cfg.LocalModel))

	var closers []func()
	if strings.TrimSpace(cfg.GoogleCredentialsFile) != "" {
		google, err := translator.NewGoogleProvider(ctx, cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize google provider: %w", err)
		}
		registry.Register(google)
		closers = append(closers, func() { _ = google.Close() })
	}
	if strings.TrimSpace(cfg.MicrosoftAPIKey) != "" {
		registry.Register(translator.NewMicrosoftProvider(cfg.MicrosoftAPIKey, cfg.MicrosoftRegion))
	}
	if strings.TrimSpace(cfg.YandexAPIKey) != "" {
		registry.Register(translator.NewYandexProvider(cfg.YandexAPIKey, cfg.YandexFolderID))
	}

	logger.Info().Strs("providers", registry.Names()).Msg("translation providers registered")

	cleanup := func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}
	return registry, cleanup, nil
}

func connectPool(timeout time.Duration, envLoader *cli.EnvLoader) (context.Context, context.CancelFunc, *config.Config, *db.Pool, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		cancel()
		return nil, nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return ctx, cancel, cfg, pool, nil
}
