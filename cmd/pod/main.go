// Command pod runs one symmetric member of the sharded cluster: it serves
// the pod-to-pod gRPC transport, applies shard assignments pushed by the
// Shard Manager, and hosts whatever entity types and singletons the
// embedding application registers against the *pod.Pod it builds.
//
// Configuration is read from environment variables (prefixed SHARDRT_) and
// an optional shardrt config file; see internal/config for the full key
// list and defaults.
package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/dreamware/shardrt/internal/config"
	"github.com/dreamware/shardrt/internal/logging"
	"github.com/dreamware/shardrt/internal/metrics"
	"github.com/dreamware/shardrt/internal/pod"
	"github.com/dreamware/shardrt/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	sink := metrics.NewPrometheus(prometheus.DefaultRegisterer)

	p, err := pod.New(cfg, sink, logger)
	if err != nil {
		logger.Fatal("build pod", zap.Error(err))
	}

	grpcServer := grpc.NewServer()
	transport.Register(grpcServer, p.Handler())

	lis, err := net.Listen("tcp", net.JoinHostPort(cfg.Pod.Host, strconv.Itoa(cfg.Pod.Port)))
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server stopped", zap.Error(err))
		}
	}()

	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Endpoint, sink.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	metricsServer := &http.Server{
		Addr:              cfg.Metrics.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", zap.String("addr", cfg.Metrics.ListenAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := p.Start(startCtx); err != nil {
		startCancel()
		logger.Fatal("start pod", zap.Error(err))
	}
	startCancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutdown signal received, draining pod")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Sharding.ToSharding().EntityTerminationTimeout+5*time.Second)
	defer shutdownCancel()

	if err := p.Shutdown(shutdownCtx); err != nil {
		logger.Error("pod shutdown error", zap.Error(err))
	}

	grpcServer.GracefulStop()

	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpShutdownCancel()
	if err := metricsServer.Shutdown(httpShutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}

	logger.Info("pod exited")
}
