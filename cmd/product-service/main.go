package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	_ "github.com/MikeMC777/product-service/docs"
	"github.com/MikeMC777/product-service/internal/config"
	"github.com/MikeMC777/product-service/internal/logx"
	prod "github.com/MikeMC777/product-service/internal/product"
	"github.com/MikeMC777/product-service/internal/telemetry"
)

const storeCheckInterval = 10 * time.Second

// @title           Product Service API
// @version         1.0
// @description     CRUD operations for products
// @BasePath        /
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "product-service: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	log := logx.New(cfg.Environment, cfg.LogLevel)
	log.Info().
		Str("env", cfg.Environment).
		Str("http_addr", cfg.ProductSvcAddr).
		Str("grpc_addr", cfg.ProductGRPCAddr).
		Str("store", cfg.Store).
		Msg("starting product-service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telem, err := telemetry.New(ctx, cfg.OTel, cfg.Environment, log)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		_ = telem.Shutdown(context.Background())
		return err
	}

	svc, err := prod.NewService(store,
		telem.TracerProvider.Tracer(cfg.OTel.ServiceName),
		telem.MeterProvider.Meter(cfg.OTel.ServiceName),
		log,
	)
	if err != nil {
		closeStore()
		_ = telem.Shutdown(context.Background())
		return err
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(svc, store, telem.MetricsHandler(), log)

	srv := &http.Server{
		Addr:              cfg.ProductSvcAddr,
		Handler:           otelhttp.NewHandler(router, cfg.OTel.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcSrv, health := newGRPCServer()
	lis, err := net.Listen("tcp", cfg.ProductGRPCAddr)
	if err != nil {
		closeStore()
		_ = telem.Shutdown(context.Background())
		return fmt.Errorf("listen grpc: %w", err)
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go watchStore(watchCtx, store, health, storeCheckInterval, log)

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.ProductSvcAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		log.Info().Str("addr", cfg.ProductGRPCAddr).Msg("grpc health server listening")
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("server failed")
	}

	stopWatch()
	health.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server forced to shutdown")
	}
	grpcSrv.GracefulStop()
	closeStore()
	if err := telem.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("telemetry shutdown")
	}

	log.Info().Msg("product-service stopped")
	return runErr
}
