package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fathima-sithara/placement-service/internal/auth"
	"github.com/fathima-sithara/placement-service/internal/config"
	"github.com/fathima-sithara/placement-service/internal/crypto"
	"github.com/fathima-sithara/placement-service/internal/database"
	"github.com/fathima-sithara/placement-service/internal/handlers"
	"github.com/fathima-sithara/placement-service/internal/jobs"
	"github.com/fathima-sithara/placement-service/internal/logger"
	"github.com/fathima-sithara/placement-service/internal/metrics"
	"github.com/fathima-sithara/placement-service/internal/middleware"
	"github.com/fathima-sithara/placement-service/internal/notifier"
	"github.com/fathima-sithara/placement-service/internal/repository"
	"github.com/fathima-sithara/placement-service/internal/routes"
	"github.com/fathima-sithara/placement-service/internal/server"
	"github.com/fathima-sithara/placement-service/internal/services"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	sugar := zl.Sugar()
	sugar.Infof("Starting placement-service in %s environment on port %d", cfg.App.Env, cfg.App.Port)

	metrics.Init()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, mongoClient, err := database.ConnectMongo(ctx, cfg.Mongo, sugar)
	if err != nil {
		sugar.Fatal(err)
	}
	repo := repository.NewMongoAccountRepo(db, cfg.Mongo.Collection)
	idxCtx, idxCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := repo.EnsureIndexes(idxCtx); err != nil {
		sugar.Fatalf("failed to ensure indexes: %v", err)
	}
	idxCancel()

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		if rdb, err = database.ConnectRedis(ctx, cfg.Redis, sugar); err != nil {
			sugar.Fatal(err)
		}
	} else {
		sugar.Warn("Redis disabled; per-email rate limiting is off")
	}

	dispatcher, closeNotifier := buildNotifier(cfg, zl)

	tokens, err := buildTokenManager(cfg)
	if err != nil {
		sugar.Fatalf("failed to init token manager: %v", err)
	}

	policy := services.Policy{
		MinPasswordLength: cfg.Security.MinPasswordLength,
		OTPTTL:            cfg.Security.OTPTTL,
		ResetTokenTTL:     cfg.Security.ResetTokenTTL,
		OTPMaxAttempts:    cfg.Security.OTPMaxAttempts,
	}
	hasher := crypto.NewBcrypt(cfg.Security.BcryptCost)
	creds := services.NewCredentials(repo, hasher, tokens, dispatcher, policy, zl)
	accounts := services.NewAccounts(repo, hasher, creds, policy, zl)
	approvals := services.NewApprovals(repo, dispatcher, zl)
	gate := services.NewGate(repo, tokens, zl)

	if cfg.Bootstrap.SuperadminEmail != "" {
		bootCtx, bootCancel := context.WithTimeout(ctx, 10*time.Second)
		a, created, err := accounts.EnsureSuperadmin(bootCtx, cfg.Bootstrap.SuperadminEmail, cfg.Bootstrap.SuperadminPassword)
		bootCancel()
		switch {
		case err != nil:
			sugar.Fatalf("failed to bootstrap superadmin: %v", err)
		case created:
			sugar.Infow("superadmin created", "account_id", a.ID.Hex())
		}
	}

	if cfg.Jobs.PurgeEnabled {
		jobs.StartSecretPurgeJob(ctx, repo, cfg.Jobs.PurgeInterval, zl)
	}

	opts := routes.Options{
		Gate:      gate,
		IPLimiter: middleware.NewIPRateLimiter(ctx, cfg.Security.IPRequestsPerMinute, zl),
	}
	if rdb != nil {
		opts.OTPLimiter = middleware.NewRateLimiter(rdb, "placement:otp", cfg.Security.OTPRequestsPerHour, time.Hour, zl)
		opts.AttemptLimiter = middleware.NewRateLimiter(rdb, "placement:attempt", cfg.Security.AttemptsPerHour, time.Hour, zl)
	}

	h := handlers.NewHandler(accounts, creds, approvals, zl)
	app := server.New(cfg, h, opts, zl)

	go func() {
		listenAddr := fmt.Sprintf(":%d", cfg.App.Port)
		sugar.Infof("Server listening on %s", listenAddr)
		if err := app.Listen(listenAddr); err != nil {
			sugar.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	sugar.Info("Shutting down server...")
	stop()

	ctxShut, cancelShut := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancelShut()

	if err := app.ShutdownWithContext(ctxShut); err != nil {
		sugar.Errorf("Fiber app shutdown error: %v", err)
	}
	if err := closeNotifier(); err != nil {
		sugar.Errorf("Notifier close error: %v", err)
	}
	if err := mongoClient.Disconnect(ctxShut); err != nil {
		sugar.Errorf("MongoDB disconnect error: %v", err)
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			sugar.Errorf("Redis client close error: %v", err)
		}
	}
	sugar.Info("Graceful shutdown complete")
}

func buildTokenManager(cfg *config.Config) (*auth.TokenManager, error) {
	if cfg.JWT.Algorithm == "RS256" {
		return auth.NewRSAManager(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath, cfg.JWT.Issuer, cfg.JWT.AccessTTL)
	}
	return auth.NewHMACManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTTL)
}

// buildNotifier selects the dispatchers for cfg.Notify.Driver. The returned func
// flushes and closes any broker connection.
func buildNotifier(cfg *config.Config, zl *zap.Logger) (notifier.Dispatcher, func() error) {
	noop := func() error { return nil }
	logDispatcher := &notifier.LogDispatcher{Logger: zl, IncludeSecrets: cfg.IsDevelopment()}

	var brevo *notifier.Brevo
	if cfg.Notify.Driver == config.DriverBrevo || cfg.Notify.Driver == config.DriverAll {
		brevo = notifier.NewBrevo(notifier.BrevoConfig{
			APIKey:    cfg.Notify.Brevo.APIKey,
			FromEmail: cfg.Notify.Brevo.SenderEmail,
			FromName:  cfg.Notify.Brevo.SenderName,
			ResetURL:  cfg.Notify.Brevo.ResetURL,
		}, zl)
		if !brevo.IsConfigured() {
			zl.Warn("Brevo client not fully configured; emails will fail")
		}
	}
	var kafka *notifier.KafkaPublisher
	if cfg.Notify.Driver == config.DriverKafka || cfg.Notify.Driver == config.DriverAll {
		kafka = notifier.NewKafkaPublisher(cfg.Notify.Kafka.Brokers, cfg.Notify.Kafka.Topic)
	}

	switch {
	case brevo != nil && kafka != nil:
		return notifier.Fanout{brevo, kafka}, kafka.Close
	case brevo != nil:
		return brevo, noop
	case kafka != nil:
		return kafka, kafka.Close
	}
	if !cfg.IsDevelopment() {
		zl.Warn("notify driver is log; verification codes and reset tokens are not delivered")
	}
	return logDispatcher, noop
}
