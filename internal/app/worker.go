package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"horse.fit/polyglot/internal/cli"
	"horse.fit/polyglot/internal/config"
	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/locks"
	"horse.fit/polyglot/internal/logging"
	"horse.fit/polyglot/internal/queue"
	"horse.fit/polyglot/internal/translator"
)

func runWorker(args []string) int {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	pollTimeout := fs.Duration("poll-timeout", 5*time.Second, "Queue poll timeout per iteration")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *pollTimeout <= 0 {
		fmt.Fprintln(os.Stderr, "--poll-timeout must be positive")
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("worker failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	redisClient, err := queue.NewClient(dbCtx, cfg.RedisURL)
	if err != nil {
		logger.Error().Err(err).Msg("worker failed to connect to redis")
		fmt.Fprintf(os.Stderr, "Failed to connect to redis: %v\n", err)
		return 1
	}
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	registry, closeProviders, err := buildRegistry(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("worker failed to build provider registry")
		fmt.Fprintf(os.Stderr, "Failed to build provider registry: %v\n", err)
		return 1
	}
	defer closeProviders()

	settings, err := settingsFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid translator settings: %v\n", err)
		return 1
	}

	tasks := queue.New(redisClient)
	locker := locks.NewLocker(redisClient, time.Duration(cfg.DetectLockTTLSeconds)*time.Second)
	detectTimeout := time.Duration(cfg.DetectTimeoutSeconds) * time.Second
	coordinator := translator.NewDetectionCoordinator(pool, registry, locker, tasks, logger, detectTimeout)

	logger.Info().Dur("poll_timeout", *pollTimeout).Msg("detection worker started")

	for {
		if ctx.Err() != nil {
			logger.Info().Msg("detection worker stopped")
			return 0
		}

		task, err := tasks.DequeueDetection(ctx, *pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info().Msg("detection worker stopped")
				return 0
			}
			logger.Error().Err(err).Msg("dequeue detection task failed")
			time.Sleep(time.Second)
			continue
		}
		if task == nil {
			continue
		}

		if err := coordinator.ProcessDetection(ctx, settings, task.PostUUID); err != nil {
			logger.Error().
				Err(err).
				Str("post_uuid", task.PostUUID).
				Str("reason", task.Reason).
				Msg("process detection task failed")
		}
	}
}
