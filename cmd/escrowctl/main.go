package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/radieske/challenge-escrow/internal/challenge-service/engine"
	"github.com/radieske/challenge-escrow/internal/challenge-service/notify"
	"github.com/radieske/challenge-escrow/internal/challenge-service/repo"
	"github.com/radieske/challenge-escrow/internal/escrowctl/cli"
	"github.com/radieske/challenge-escrow/internal/shared/cache"
	"github.com/radieske/challenge-escrow/internal/shared/config"
	"github.com/radieske/challenge-escrow/internal/shared/logger"
)

func main() {
	if err := cli.Execute(open); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// open conecta no mesmo store do challenge-service. Resoluções feitas pelo
// CLI também chegam ao notification-service quando o Redis está disponível.
func open(ctx context.Context) (cli.Escrow, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New("escrowctl", cfg.Env)
	if err != nil {
		return nil, nil, err
	}

	backend, err := repo.Open(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	var notifier engine.Notifier
	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Warn("redis unavailable, events will not be broadcast", zap.Error(err))
	} else {
		notifier = notify.NewRedis(rdb, cfg.RedisPubSubChannel)
	}

	eng := engine.New(backend.Store, backend.Admins, notifier, log)
	closer := func() error {
		if rdb != nil {
			_ = rdb.Close()
		}
		_ = log.Sync()
		return backend.Close()
	}
	return eng, closer, nil
}
