package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/MikeMC777/product-service/internal/config"
	"github.com/MikeMC777/product-service/internal/db"
	prod "github.com/MikeMC777/product-service/internal/product"
)

// openStore builds the backend selected by cfg.Store. The returned func
// releases its connections.
func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (prod.Store, func(), error) {
	switch cfg.Store {
	case "memory":
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return prod.NewMemoryStore(), func() {}, nil

	case "redis":
		client, err := db.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("addr", client.Options().Addr).Int("db", client.Options().DB).Msg("connected to redis")
		return prod.NewRedisRepo(client), func() { _ = client.Close() }, nil

	case "postgres":
		pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			return nil, nil, err
		}
		repo := prod.NewPGRepo(pool)
		if cfg.PostgresEnsureSchema {
			if err := repo.EnsureSchema(ctx); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		log.Info().Int32("max_conns", cfg.PostgresMaxConns).Msg("connected to postgres")
		return repo, pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}
