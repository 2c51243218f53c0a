// Package main starts the Beitak API server: configuration, logging, the
// postgres store, the token revocation list, services, handlers and
// optional TLS.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/beitak/beitak/internal/config"
	"github.com/beitak/beitak/internal/db"
	"github.com/beitak/beitak/internal/logger"
	"github.com/beitak/beitak/internal/metrics"
	"github.com/beitak/beitak/internal/middleware"
	"github.com/beitak/beitak/internal/repository"
	"github.com/beitak/beitak/internal/server/handler/http"
	"github.com/beitak/beitak/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const shutdownTimeout = 10 * time.Second

func main() {
	options, err := config.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, options, log.Log); err != nil {
		log.Log.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, options *config.Options, zapLogger *zap.Logger) error {
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("cannot init database: %w", err)
	}
	defer postgresDB.Close()

	revoked, closeRevoked, err := newRevocationList(ctx, options.RedisURL, zapLogger)
	if err != nil {
		return err
	}
	defer closeRevoked()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	cleaner := &db.CodeCleaner{
		DB:        postgresDB,
		Interval:  15 * time.Minute,
		BatchSize: options.CleanupBatch,
		Removed:   m.AddCodesExpired,
		Log:       zapLogger,
	}
	cleaner.Start(ctx)

	if options.JWTSecret == config.DefaultJWTSecret {
		zapLogger.Warn("using the default jwt secret, set -k or JWT_SECRET outside development")
	}

	authRepo := repository.NewPostgresAuthRepository(postgresDB)
	profileRepo := repository.NewPostgresProfileRepository(postgresDB)

	authOpts := service.AuthOptions{CallbackURL: options.CallbackURL}
	if options.GoogleClientID != "" {
		idTokens := service.NewOIDCVerifier()
		idTokens.Register(service.ProviderGoogle, service.NewGoogleVerifier(ctx, options.GoogleClientID))
		authOpts.IDTokens = idTokens
	} else {
		zapLogger.Info("no google client id configured, oauth sign-in disabled")
	}

	tokens := service.NewTokenService(options.JWTSecret, options.TokenTTL, revoked)
	authService := service.NewAuthService(authRepo, profileRepo, tokens, service.NewLogMailer(zapLogger), m, zapLogger, authOpts)
	profileService := service.NewProfileService(profileRepo, m)

	authHandler := &http.AuthHandler{AuthService: authService, Log: zapLogger}
	profileHandler := &http.ProfileHandler{ProfileService: profileService, Log: zapLogger}
	var limiter *middleware.RateLimiter
	if options.AuthRateLimit > 0 {
		limiter = middleware.NewRateLimiter(options.AuthRateLimit, time.Minute)
	}
	router := http.NewRouter(authHandler, profileHandler, authService, limiter, m, reg, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if options.TLSEnabled() {
			zapLogger.Info("starting HTTPS server", zap.String("addr", options.Port))
			err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
		} else {
			zapLogger.Info("starting HTTP server", zap.String("addr", options.Port))
			err = server.ListenAndServe()
		}
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	})
	if limiter != nil {
		g.Go(func() error {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					limiter.Sweep()
				}
			}
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newRevocationList connects to redis when url is set and falls back to an
// in-memory list otherwise.
func newRevocationList(ctx context.Context, url string, log *zap.Logger) (service.RevocationList, func(), error) {
	if url == "" {
		log.Info("no redis configured, revoked tokens are kept in memory")
		return service.NewMemoryRevocationList(), func() {}, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("cannot reach redis: %w", err)
	}
	return service.NewRedisRevocationList(client), func() { _ = client.Close() }, nil
}
