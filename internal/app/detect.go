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
	"horse.fit/polyglot/internal/locks"
	"horse.fit/polyglot/internal/logging"
	"horse.fit/polyglot/internal/queue"
	"horse.fit/polyglot/internal/translator"
)

func runDetect(args []string) int {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	provider := fs.String("provider", "", "Detection provider name (for example: local, google)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "detect requires exactly one post UUID argument")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	postUUID := strings.TrimSpace(fs.Arg(0))
	if postUUID == "" {
		fmt.Fprintln(os.Stderr, "detect argument must not be empty")
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
	locker := locks.NewLocker(redisClient, time.Duration(cfg.DetectLockTTLSeconds)*time.Second)
	detectTimeout := time.Duration(cfg.DetectTimeoutSeconds) * time.Second
	coordinator := translator.NewDetectionCoordinator(pool, registry, locker, tasks, logger, detectTimeout)

	post, err := pool.GetPostByUUID(ctx, postUUID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load post failed: %v\n", err)
		return 1
	}
	if post == nil {
		fmt.Fprintf(os.Stderr, "Post not found: %s\n", postUUID)
		return 1
	}

	if err := coordinator.ProcessDetection(ctx, settings, postUUID); err != nil {
		fmt.Fprintf(os.Stderr, "Detect failed: %v\n", err)
		return 1
	}

	detection, err := pool.GetDetection(ctx, post.PostID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load detection failed: %v\n", err)
		return 1
	}
	if detection == nil {
		fmt.Printf("detect post=%s result=skipped\n", postUUID)
		return 0
	}

	if outputFormat == outputFormatJSON {
		payload := map[string]any{
			"post_uuid":     postUUID,
			"detected_lang": detection.DetectedLang,
			"provider":      detection.ProviderName,
			"post_revision": detection.PostRevision,
			"detected_at":   formatUTCTimestamp(detection.DetectedAt),
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
		"detect post=%s lang=%s provider=%s revision=%d current=%t\n",
		postUUID,
		detection.DetectedLang,
		detection.ProviderName,
		detection.PostRevision,
		detection.PostRevision == post.Revision,
	)
	return 0
}
