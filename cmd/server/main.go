package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vitrine-imob/vitrine/internal/config"
	"github.com/vitrine-imob/vitrine/internal/db"
	"github.com/vitrine-imob/vitrine/internal/email"
	"github.com/vitrine-imob/vitrine/internal/ratelimit"
	"github.com/vitrine-imob/vitrine/internal/scheduler"
	"github.com/vitrine-imob/vitrine/internal/scheduling"
)

const shutdownTimeout = 30 * time.Second

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func newCache(ctx context.Context, cfg config.CacheConfig) (scheduling.SlotCache, func(), error) {
	switch cfg.Driver {
	case "redis":
		client, err := scheduling.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisToken, cfg.RedisDB)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("Using redis slot cache")
		return scheduling.NewRedisCache(client, cfg.TTL), func() { client.Close() }, nil
	default:
		log.Info().Int("size", cfg.Size).Dur("ttl", cfg.TTL).Msg("Using in-memory slot cache")
		return scheduling.NewMemoryCache(cfg.Size, cfg.TTL), func() {}, nil
	}
}

func newSender(ctx context.Context, cfg config.EmailConfig) (email.Sender, error) {
	if !cfg.Enabled {
		log.Warn().Msg("Email disabled; notifications will be dropped")
		return email.NopSender{}, nil
	}
	return email.NewSESClient(ctx, cfg.AccessKeyID, cfg.SecretAccessKey, cfg.Region, cfg.Sender)
}

func main() {
	cfg, err := config.Load(getEnv("CONFIG_PATH", "config/app.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.App.Environment)

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, closeCache, err := newCache(ctx, cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize slot cache")
	}
	defer closeCache()

	sender, err := newSender(ctx, cfg.Email)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize email sender")
	}

	svc := scheduling.NewService(database,
		scheduling.WithCache(cache),
		scheduling.WithSender(sender),
		scheduling.WithPhoneRegion(cfg.App.DefaultRegion),
	)

	if err := scheduler.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}
	if err := scheduler.RegisterVisitJobs(svc, cfg.Jobs); err != nil {
		log.Fatal().Err(err).Msg("Failed to register visit jobs")
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(&ratelimit.Config{
			ContactCooldown:   cfg.RateLimit.ContactCooldown,
			ContactMaxPerHour: cfg.RateLimit.ContactMaxPerHour,
			IPMaxPerHour:      cfg.RateLimit.IPMaxPerHour,
		})
	}

	server := newServer(cfg, svc, limiter)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Str("environment", cfg.App.Environment).Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := scheduler.Stop(); err != nil {
			log.Error().Err(err).Msg("Scheduler shutdown error")
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}
