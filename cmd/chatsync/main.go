package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatsync/internal/cache"
	"chatsync/internal/config"
	"chatsync/internal/constants"
	"chatsync/internal/models"
	"chatsync/internal/retry"
	"chatsync/internal/service"
	"chatsync/internal/tracing"
	"chatsync/pkg/backend"
	"chatsync/pkg/media"
	"chatsync/pkg/realtime"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("chatsync %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting chatsync")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
		} else {
			if level > logrus.InfoLevel {
				level = logrus.InfoLevel
			}
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	// Initialize OpenTelemetry tracing
	tracingManager := tracing.NewTracingManager(tracing.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)

	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Initialize the timeline cache with exponential backoff retry
	var timelineCache *cache.Cache
	backoffConfig := retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultCacheRetryAttempts,
		Jitter:       true,
	}
	backoff := retry.NewBackoff(backoffConfig)

	err = backoff.Retry(ctx, func() error {
		var initErr error
		timelineCache, initErr = cache.New(cfg.Cache.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize timeline cache: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize timeline cache after retries: %w", err)
	}
	defer timelineCache.Close()

	authToken := os.Getenv("CHATSYNC_API_TOKEN")
	if authToken == "" {
		return fmt.Errorf("CHATSYNC_API_TOKEN environment variable is required")
	}

	httpTimeout := cfg.Backend.HTTPTimeoutSec
	if httpTimeout <= 0 {
		httpTimeout = constants.DefaultBackendHTTPTimeoutSec
	}
	backendClient := backend.NewClientWithLogger(cfg.Backend.APIBaseURL, authToken, &http.Client{
		Timeout: time.Duration(httpTimeout) * time.Second,
	}, logger)

	subscriber := realtime.NewClient(cfg.Realtime.WSURL, authToken, logger)

	uploader := media.NewHTTPUploader(cfg.Media.UploadURL, authToken, cfg.Media.MaxVoiceSizeMB, cfg.Media.VoiceTypes, logger)
	recorder := media.NewNullRecorder()

	ctxWithVerbose := context.WithValue(ctx, service.VerboseContextKey, *verbose)

	sessions := make(map[string]*service.ChannelSession, len(cfg.Channels))
	for _, channel := range cfg.Channels {
		session := service.NewChannelSession(service.SessionConfig{
			ChannelID:  channel.ChannelID,
			Viewer:     viewerFromConfig(cfg),
			Backend:    backendClient,
			Subscriber: subscriber,
			Cache:      timelineCache,
			Recorder:   recorder,
			Uploader:   uploader,
			Sync:       cfg.Sync,
			Logger:     logger,
		})
		if err := session.Open(ctxWithVerbose); err != nil {
			logger.WithError(err).WithField("channelId", channel.ChannelID).Warn("Failed to open channel session")
			continue
		}
		sessions[channel.ChannelID] = session
	}
	if len(sessions) == 0 {
		return fmt.Errorf("no channel session could be opened")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
		defer cancel()
		for _, session := range sessions {
			session.Close(shutdownCtx)
		}
	}()

	logger.WithField("channels", len(sessions)).Info("Channel sessions opened")

	scheduler := service.NewScheduler(timelineCache, cfg.Cache.RetentionDays, constants.CacheCleanupSchedulerIntervalHours, logger)
	go scheduler.Start(ctx)
	defer scheduler.Stop()

	server := NewServer(logger, sessions)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}

func viewerFromConfig(cfg *models.Config) models.Sender {
	return models.Sender{
		ID:          cfg.Viewer.UserID,
		DisplayName: cfg.Viewer.DisplayName,
		AvatarURL:   cfg.Viewer.AvatarURL,
	}
}
