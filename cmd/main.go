/**
 * @description
 * This is the main entry point for the custody service. It initializes all
 * components (configuration, database pool, optional Redis and RabbitMQ,
 * repository, the core services, the OTP expiry sweeper, and the HTTP server),
 * wires them together, and runs until shutdown.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: For HTTP routing (via internal/api).
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages.
 * - pkg/rabbitmq: Outbound notification events.
 */

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/chequevault/custody-service/internal/api"
	"github.com/chequevault/custody-service/internal/app"
	"github.com/chequevault/custody-service/internal/config"
	"github.com/chequevault/custody-service/internal/store"
	"github.com/chequevault/custody-service/pkg/rabbitmq"
)

func main() {
	// Load a local .env file if present; environment variables win either way.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.AuthJWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"auth jwt secret must be configured\" env=AUTH_JWT_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting custody-service\" port=%s env=%s", cfg.ServerPort, cfg.AppEnv)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}
	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer for outbound notification events.
	// A missing broker degrades to a logging fallback rather than blocking boot.
	var producer rabbitmq.Publisher
	eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.NotificationExchange)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		defer eventProducer.Close()
		producer = eventProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Optional Redis for OTP endpoint throttling.
	var limiter *app.RedisRateLimiter
	if cfg.OtpGeneratePerMinute > 0 || cfg.OtpVerifyPerMinute > 0 {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; otp endpoint throttling disabled\" env=REDIS_URL")
		} else if redisOptions, parseErr := redis.ParseURL(cfg.RedisURL); parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; otp endpoint throttling disabled\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; otp endpoint throttling disabled\" err=%v", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				limiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
			cancelPing()
		}
	}

	// Initialize the data access layer and the core services.
	repository := store.NewPostgresRepository(dbpool)
	codec := app.NewOtpCodec([]byte(cfg.OtpHashSecret))

	chequeService := app.NewChequeService(repository)
	otpService := app.NewOtpService(repository, codec, producer, app.OtpConfig{
		Expiry:         time.Duration(cfg.OtpExpiryMinutes) * time.Minute,
		MaxAttempts:    cfg.OtpMaxAttempts,
		MaxPerWindow:   cfg.OtpMaxPerWindow,
		RateWindow:     time.Duration(cfg.OtpRateWindowHours) * time.Hour,
		DevMode:        cfg.IsDevelopment(),
		GeneratePerMin: cfg.OtpGeneratePerMinute,
		VerifyPerMin:   cfg.OtpVerifyPerMinute,
	})
	if limiter != nil {
		otpService.ConfigureThrottle(limiter)
	}
	overrideService := app.NewOverrideService(repository, producer)

	// Start the periodic OTP expiry sweep.
	sweeper := app.NewSweeper(otpService, cfg.OtpSweepSchedule)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"failed to start otp sweeper\" err=%v", err)
	}

	handlers := api.NewHandlers(chequeService, otpService, overrideService)
	router := api.NewRouter(handlers, cfg.AuthJWTSecret)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	// Run the server and wait for a shutdown signal.
	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("level=info component=bootstrap msg=\"http server listening\" addr=%s", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("level=fatal component=bootstrap msg=\"http server failed\" err=%v", err)
		}
	case sig := <-shutdown:
		log.Printf("level=info component=bootstrap msg=\"shutdown signal received\" signal=%v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		<-sweeper.Stop().Done()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("level=warn component=bootstrap msg=\"graceful shutdown failed; forcing close\" err=%v", err)
			server.Close()
		}
	}
}
