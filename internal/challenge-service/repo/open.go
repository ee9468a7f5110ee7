package repo

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/challenge-escrow/internal/challenge-service/engine"
	"github.com/radieske/challenge-escrow/internal/shared/config"
	"github.com/radieske/challenge-escrow/internal/shared/db"
)

// Backend agrupa o store escolhido por STORE_DRIVER e seus ganchos de ciclo de vida.
type Backend struct {
	Store  engine.Store
	Admins engine.AdminChecker
	Health func(ctx context.Context) error
	Close  func() error
}

type adminPromoter interface {
	PromoteAdmin(ctx context.Context, id string) error
}

// Open conecta o backend configurado, aplica as migrations (postgres) e
// promove ADMIN_USER_IDS a administradores.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (*Backend, error) {
	var (
		b        *Backend
		promoter adminPromoter
	)
	switch cfg.StoreDriver {
	case "memory":
		m := NewMemory()
		for _, id := range cfg.SeedUserIDs {
			m.PutUser(id, cfg.SeedBalanceCents, false)
		}
		b = &Backend{
			Store:  m,
			Admins: m,
			Health: func(context.Context) error { return nil },
			Close:  func() error { return nil },
		}
		promoter = m
	case "postgres", "":
		pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := Migrate(ctx, pg); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		store := NewPostgres(pg)
		b = &Backend{Store: store, Admins: store, Health: pg.PingContext, Close: pg.Close}
		promoter = store
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	for _, id := range cfg.AdminUserIDs {
		if err := promoter.PromoteAdmin(ctx, id); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("promote admin %s: %w", id, err)
		}
	}
	log.Info("store ready", zap.String("driver", cfg.StoreDriver), zap.Int("admins", len(cfg.AdminUserIDs)))
	return b, nil
}
