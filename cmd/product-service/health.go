package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	prod "github.com/MikeMC777/product-service/internal/product"
)

const healthServiceName = "product.ProductService"

func newGRPCServer() (*grpc.Server, *health.Server) {
	s := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(healthServiceName, healthpb.HealthCheckResponse_SERVING)
	return s, hs
}

// watchStore pings the store every interval and mirrors the result into the
// product service health status until ctx is done.
func watchStore(ctx context.Context, store prod.Store, hs *health.Server, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pingCtx, cancel := context.WithTimeout(ctx, interval)
		err := store.Ping(pingCtx)
		cancel()

		switch {
		case err != nil && serving:
			log.Warn().Err(err).Msg("store ping failed, reporting NOT_SERVING")
			hs.SetServingStatus(healthServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
			serving = false
		case err == nil && !serving:
			log.Info().Msg("store reachable again, reporting SERVING")
			hs.SetServingStatus(healthServiceName, healthpb.HealthCheckResponse_SERVING)
			serving = true
		}
	}
}
