package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/challenge-escrow/internal/challenge-service/engine"
	httpapi "github.com/radieske/challenge-escrow/internal/challenge-service/http"
	"github.com/radieske/challenge-escrow/internal/challenge-service/notify"
	"github.com/radieske/challenge-escrow/internal/challenge-service/repo"
	"github.com/radieske/challenge-escrow/internal/shared/cache"
	"github.com/radieske/challenge-escrow/internal/shared/config"
	"github.com/radieske/challenge-escrow/internal/shared/kafka"
	"github.com/radieske/challenge-escrow/internal/shared/logger"
	"github.com/radieske/challenge-escrow/internal/shared/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Inicializa logger estruturado
	log, err := logger.New("challenge-service", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "challenge-service"), zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store: Postgres (com migrations) ou memória
	backend, err := repo.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("store open", zap.Error(err))
	}
	defer backend.Close()

	// Notifier: Kafka (challenge_events) + Redis Pub/Sub (broadcast para o notification-service)
	brokers := kafka.Brokers(cfg.KafkaBrokers)
	if cfg.Env == "local" {
		if err := kafka.EnsureTopic(ctx, brokers, cfg.TopicChallengeEvents); err != nil {
			log.Warn("ensure topic", zap.String("topic", cfg.TopicChallengeEvents), zap.Error(err))
		}
	}
	kafkaNotifier := notify.NewKafka(kafka.NewWriter(brokers, cfg.TopicChallengeEvents), log)
	defer kafkaNotifier.Close()

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	notifier := notify.Multi{kafkaNotifier, notify.NewRedis(rdb, cfg.RedisPubSubChannel)}

	eng := engine.New(backend.Store, backend.Admins, notifier, log,
		engine.WithMetrics(engine.NewMetrics(prometheus.DefaultRegisterer)))

	api := httpapi.NewServer(log, eng, cfg.JWTSecret)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort, // ex: 8083
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Métricas e health check: store + redis
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := backend.Health(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})
	log.Info("metrics/health listening", zap.String("port", cfg.MetricsPort))

	go func() {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api srv", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}
