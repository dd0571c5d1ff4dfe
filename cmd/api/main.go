package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/hris-retropay/internal/config"
	appHTTP "github.com/cmlabs-hris/hris-retropay/internal/handler/http"
	"github.com/cmlabs-hris/hris-retropay/internal/pkg/cron"
	"github.com/cmlabs-hris/hris-retropay/internal/pkg/database"
	"github.com/cmlabs-hris/hris-retropay/internal/pkg/idempotency"
	"github.com/cmlabs-hris/hris-retropay/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-retropay/internal/pkg/kafka"
	"github.com/cmlabs-hris/hris-retropay/internal/repository/postgresql"
	retroPayService "github.com/cmlabs-hris/hris-retropay/internal/service/retropay"
	"github.com/cmlabs-hris/hris-retropay/migrations"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(cfg.DatabaseURL())
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, migrations.FS); err != nil {
			return err
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, cancelPing := context.WithTimeout(ctx, 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		// Idempotency fails open, so the API still serves without Redis.
		slog.Warn("Redis unavailable, idempotency keys will not be enforced", "addr", cfg.Redis.Addr, "error", err)
	}
	cancelPing()

	kafkaWriter := kafka.NewWriter(cfg.Kafka.Brokers)
	publisher := kafka.NewPublisher(kafkaWriter)
	defer publisher.Close()

	transactor := postgresql.NewTransactor(db)
	retroPayRepo := postgresql.NewRetroPayRepository(db)
	employeeRepo := postgresql.NewEmployeeRepository(db)
	outboxRepo := postgresql.NewOutboxRepository(db)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	retroPaySvc := retroPayService.NewRetroPayService(transactor, retroPayRepo, employeeRepo, outboxRepo, cfg.Kafka.RetroPayTopic)

	scheduler := cron.NewScheduler(ctx)
	relay := kafka.NewRelay(outboxRepo, publisher, cfg.Outbox.BatchSize)
	cron.NewOutboxJobs(relay, cfg.Outbox.PollInterval).RegisterJobs(scheduler)
	scheduler.Start()
	defer scheduler.Stop()

	retroPayHandler := appHTTP.NewRetroPayHandler(retroPaySvc)
	router := appHTTP.NewRouter(JWTService, retroPayHandler, appHTTP.RouterOptions{
		AllowedOrigins: cfg.App.CORSAllowedOrigins,
		Env:            cfg.App.Env,
		LogLevel:       cfg.SlogLevel(),
		Idempotency:    idempotency.NewStore(redisClient, cfg.Redis.IdempotencyTTL),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server running", "addr", server.Addr, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
