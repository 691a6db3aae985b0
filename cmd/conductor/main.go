// Command conductor runs the training-job reconciliation loop: it
// loads configuration, builds the registry and orchestrator clients,
// and drives the event loop until told to stop.
package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/train-conductor/conductor/internal/config"
	"github.com/train-conductor/conductor/pkg/diagnostics"
	"github.com/train-conductor/conductor/pkg/eventloop"
	"github.com/train-conductor/conductor/pkg/materialiser"
	"github.com/train-conductor/conductor/pkg/orchestrator"
	"github.com/train-conductor/conductor/pkg/reaper"
	"github.com/train-conductor/conductor/pkg/reconciler"
	"github.com/train-conductor/conductor/pkg/registry"
)

// trainingEntrypoint is the fixed command every submitted job runs;
// the image carries the actual training code, the conductor only ever
// points it at the launcher script.
var trainingEntrypoint = []string{"python", "/app/launch_training.py"}

var (
	configPath            = flag.String("config", "config.yaml", "path to the conductor's trainer_config file")
	redisAddr             = flag.String("redis-addr", "localhost:6379", "address of the registry redis instance")
	redisDB               = flag.Int("redis-db", 0, "registry redis logical database")
	kubeconfig            = flag.String("kubeconfig", "", "path to a kubeconfig; empty uses in-cluster configuration")
	insecureSkipTLSVerify = flag.Bool("insecure-skip-tls-verify", false, "skip TLS verification against the orchestrator API server (testing only)")
	logLevel              = flag.String("log-level", "info", "log level, one of logrus.AllLevels")
	metricsAddr           = flag.String("metrics-addr", ":9090", "address to serve /metrics on")
)

func main() {
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.WithError(err).Fatal("invalid log level")
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})

	cfgLoader, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatalf("failed to load configuration from %s", *configPath)
	}
	cfg := cfgLoader.Current()

	redisClient := redis.NewClient(&redis.Options{
		Addr: *redisAddr,
		DB:   *redisDB,
	})
	reg := registry.NewRedisRegistry(redisClient)

	orch, err := orchestrator.NewClientFromOptions(orchestrator.ClientOptions{
		KubeConfigPath:        *kubeconfig,
		InsecureSkipTLSVerify: *insecureSkipTLSVerify,
	})
	if err != nil {
		logrus.WithError(err).Fatal("failed to build orchestrator client")
	}

	m := materialiser.New(orch, reg, materialiser.Config{
		Image:               cfg.TuningImage,
		Namespace:           cfg.TargetNamespace,
		ImagePullSecret:     cfg.ImagePullSecrets,
		Command:             trainingEntrypoint,
		DefaultGPUs:         cfg.DefaultGPUs,
		JobTimeLimitSeconds: cfg.JobTimeLimitSeconds,
		Volumes:             cfg.Volumes,
	})
	rp := reaper.New(orch, reg)
	capturer := diagnostics.New(orch, reg)
	rec := reconciler.New(orch, reg, m, rp, capturer, cfg.TargetNamespace)
	loop := eventloop.New(orch, reg, rec, eventloop.Config{
		Namespace:         cfg.TargetNamespace,
		ReconcileInterval: cfg.ReconcileInterval,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsServer := &http.Server{Addr: *metricsAddr, Handler: promhttp.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("metrics server exited unexpectedly")
		}
	}()

	logrus.WithField("namespace", cfg.TargetNamespace).Info("starting training conductor")
	runErr := loop.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("metrics server did not shut down cleanly")
	}

	if runErr != nil {
		logrus.WithError(runErr).Fatal("event loop exited with error")
	}
	logrus.Info("shutdown complete")
}
