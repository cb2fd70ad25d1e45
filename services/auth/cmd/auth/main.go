package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Skotchmaster/sst_backend/pkg/config"
	"github.com/Skotchmaster/sst_backend/pkg/db"
	"github.com/Skotchmaster/sst_backend/pkg/logging"
	"github.com/Skotchmaster/sst_backend/pkg/metrics"
	"github.com/Skotchmaster/sst_backend/pkg/middleware/ratelimit"
	"github.com/Skotchmaster/sst_backend/pkg/mykafka"
	"github.com/Skotchmaster/sst_backend/pkg/tokens"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/audit"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/httpserver"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/middleware"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/notify"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/repo"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	if err == nil {
		err = repo.Migrate(initCtx, gdb)
	}
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			logger.Warn("db_close_failed", "error", err)
		}
	}()

	sink, closeSink, err := auditSink(cfg, logger)
	if err != nil {
		log.Fatalf("audit init error: %v", err)
	}
	defer closeSink()

	limiter, closeLimiter := rateLimiter(cfg, logger)
	defer closeLimiter()

	reg := metrics.New()
	svc := service.New(
		repo.New(gdb),
		tokens.NewCodec(cfg.SecretKey),
		notifier(cfg, logger),
		service.Config{
			AccessTTL:             cfg.AccessTokenTTL,
			RefreshTTL:            cfg.RefreshTokenTTL,
			OTPTTL:                cfg.OTPTTL,
			StrictPermissionCodes: cfg.StrictPermissionCodes,
		},
		service.WithAudit(sink),
		service.WithMetrics(reg),
	)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{Svc: svc},
		Gate:        middleware.NewGate(svc),
		Limiter:     limiter,
		Metrics:     reg,
		Logger:      logger,
		Ready: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})

	addr := ":" + strconv.Itoa(cfg.ServerPort)
	go func() {
		logger.Info("server_starting", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo_shutdown_failed", "error", err)
	}
}

func notifier(cfg config.Config, logger *slog.Logger) notify.Notifier {
	if cfg.SMTP.Host == "" {
		logger.Warn("smtp_not_configured", "detail", "OTP codes will not be delivered")
		return notify.Log{Logger: logger}
	}
	return notify.NewSMTP(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}

// auditSink fans events out to Kafka and Elasticsearch when either is configured.
func auditSink(cfg config.Config, logger *slog.Logger) (audit.Sink, func(), error) {
	var sinks audit.Multi
	closeFn := func() {}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			return nil, closeFn, fmt.Errorf("kafka producer: %w", err)
		}
		closeFn = func() {
			if err := producer.Close(); err != nil {
				logger.Warn("kafka_close_failed", "error", err)
			}
		}
		sinks = append(sinks, audit.NewKafkaSink(producer, cfg.KafkaAuditTopic))
	}

	if cfg.ESURL != "" {
		es, err := audit.NewElasticClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			closeFn()
			return nil, func() {}, fmt.Errorf("elasticsearch client: %w", err)
		}
		sinks = append(sinks, audit.NewElasticSink(es, cfg.ESAuditIndex))
	}

	if len(sinks) == 0 {
		return audit.Nop{}, closeFn, nil
	}
	return sinks, closeFn, nil
}

func rateLimiter(cfg config.Config, logger *slog.Logger) (ratelimit.Limiter, func()) {
	if cfg.RedisAddr == "" {
		return ratelimit.NewMemory(cfg.RateLimitPerMinute, cfg.RateLimitBurst), func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return ratelimit.NewRedis(client, "sst:rl", cfg.RateLimitPerMinute, time.Minute), func() {
		if err := client.Close(); err != nil {
			logger.Warn("redis_close_failed", "error", err)
		}
	}
}
