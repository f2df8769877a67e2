package app

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/polyglot/internal/cli"
	"horse.fit/polyglot/internal/language"
	"horse.fit/polyglot/internal/logging"
	"horse.fit/polyglot/internal/queue"
	"horse.fit/polyglot/internal/translator"
)

func runTranslate(args []string) int {
	fs := flag.NewFlagSet("translate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	lang := fs.String("lang", "", "Target language (ISO 639-1, for example: en, zh)")
	provider := fs.String("provider", "", "Translation provider name (for example: local, google)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "translate requires exactly one post UUID argument")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	targetLang := language.NormalizeCode(*lang)
	if targetLang == "" {
		fmt.Fprintln(os.Stderr, "--lang is required and must be a valid language code")
		return 2
	}

	postUUID := strings.TrimSpace(fs.Arg(0))
	if postUUID == "" {
		fmt.Fprintln(os.Stderr, "translate argument must not be empty")
		return 2
	}

	ctx, cancel, cfg, pool, err := connectPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer pool.Close()

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	redisClient, err := queue.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to redis: %v\n", err)
		return 1
	}
	defer redisClient.Close()

	registry, closeProviders, err := buildRegistry(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build provider registry: %v\n", err)
		return 1
	}
	defer closeProviders()

	settings, err := settingsFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid translator settings: %v\n", err)
		return 1
	}
	if resolved := strings.TrimSpace(strings.ToLower(*provider)); resolved != "" {
		settings.Provider = resolved
	}
	// Explicit operator invocation overrides the feature flag.
	settings.Enabled = true

	tasks := queue.New(redisClient)
	limiter := translator.NewRateLimiter(redisClient)
	providerTimeout := time.Duration(cfg.DetectTimeoutSeconds) * time.Second
	manager := translator.NewManager(pool, registry, limiter, tasks, logger, providerTimeout)

	// Operator invocation: trusted so the per-user rate limit is skipped.
	viewer := translator.Viewer{
		Authenticated: true,
		Trusted:       true,
		Locale:        targetLang,
	}

	result, err := manager.Translate(ctx, settings, viewer, postUUID)
	if err != nil {
		if errors.Is(err, translator.ErrPostNotFound) {
			fmt.Fprintf(os.Stderr, "Post not found: %s\n", postUUID)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Translate failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		payload := map[string]any{
			"post_uuid":     postUUID,
			"detected_lang": result.DetectedLang,
			"target_lang":   result.TargetLang,
			"provider":      result.ProviderName,
			"cached":        result.Cached,
			"translation":   result.Text,
		}
		encoded, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Encode output failed: %v\n", err)
			return 1
		}
		fmt.Println(string(encoded))
		return 0
	}

	fmt.Printf(
		"translate post=%s lang=%s->%s provider=%s cached=%t\n",
		postUUID,
		result.DetectedLang,
		result.TargetLang,
		result.ProviderName,
		result.Cached,
	)
	fmt.Println(result.Text)
	return 0
}
