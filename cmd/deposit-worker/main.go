package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/challenge-escrow/internal/challenge-service/engine"
	"github.com/radieske/challenge-escrow/internal/challenge-service/repo"
	"github.com/radieske/challenge-escrow/internal/deposit-worker/consumer"
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
	log, err := logger.New("deposit-worker", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := repo.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("store open", zap.Error(err))
	}
	defer backend.Close()

	// O worker só credita depósitos; eventos de challenge não são emitidos aqui
	eng := engine.New(backend.Store, backend.Admins, nil, log,
		engine.WithMetrics(engine.NewMetrics(prometheus.DefaultRegisterer)))

	brokers := kafka.Brokers(cfg.KafkaBrokers)
	if cfg.Env == "local" {
		for _, topic := range []string{cfg.TopicDepositCredited, cfg.TopicDepositCreditedDLQ} {
			if err := kafka.EnsureTopic(ctx, brokers, topic); err != nil {
				log.Warn("ensure topic", zap.String("topic", topic), zap.Error(err))
			}
		}
	}

	reader := kafka.NewReader(brokers, cfg.TopicDepositCredited, "deposit-worker")
	defer reader.Close()
	dlq := kafka.NewWriter(brokers, cfg.TopicDepositCreditedDLQ)
	defer dlq.Close()

	// Métricas do consumo
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "deposit_worker_consumed_total", Help: "mensagens deposit_credited consumidas"})
	credited := prometheus.NewCounter(prometheus.CounterOpts{Name: "deposit_worker_credited_total", Help: "depósitos creditados"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{Name: "deposit_worker_duplicate_total", Help: "depósitos com external_ref repetido"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "deposit_worker_errors_total", Help: "falhas por etapa"}, []string{"phase"})
	prometheus.MustRegister(consumed, credited, duplicates, failures)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, backend.Health)

	p := &consumer.Processor{
		Log:         log,
		Reader:      reader,
		Depositor:   eng,
		DLQ:         dlq,
		OnConsumed:  consumed.Inc,
		OnCredited:  credited.Inc,
		OnDuplicate: duplicates.Inc,
		OnError:     func(phase string) { failures.WithLabelValues(phase).Inc() },
	}

	log.Info("deposit-worker started",
		zap.String("consume", cfg.TopicDepositCredited),
		zap.String("dlq", cfg.TopicDepositCreditedDLQ),
	)
	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer stopped", zap.Error(err))
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}
