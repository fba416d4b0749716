package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/EznRB/utmify-hooks/internal/config"
	"github.com/EznRB/utmify-hooks/internal/db"
	"github.com/EznRB/utmify-hooks/internal/deadletter"
	"github.com/EznRB/utmify-hooks/internal/delivery"
	"github.com/EznRB/utmify-hooks/internal/endpoint"
	"github.com/EznRB/utmify-hooks/internal/health"
	"github.com/EznRB/utmify-hooks/internal/logging"
	"github.com/EznRB/utmify-hooks/internal/metrics"
	"github.com/EznRB/utmify-hooks/internal/queue"
	"github.com/EznRB/utmify-hooks/internal/retry"
	"github.com/EznRB/utmify-hooks/internal/stats"
	"github.com/EznRB/utmify-hooks/internal/tracing"
	"github.com/EznRB/utmify-hooks/internal/worker"
)

const serviceName = "utmify-worker"

func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	logger := logging.New(serviceName)

	shutdownTracing, err := tracing.Init(ctx, serviceName)
	if err != nil {
		logger.Plain().WithError(err).Fatal("init tracing")
	}
	defer shutdownTracing()

	pool, err := db.Connect(ctx, cfg.DSN())
	if err != nil {
		logger.Plain().WithError(err).Fatal("db connect")
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	producer, err := nsq.NewProducer(cfg.NSQ.NsqdTCPAddr, nsq.NewConfig())
	if err != nil {
		logger.Plain().WithError(err).Fatal("nsq producer")
	}
	defer producer.Stop()

	endpoints := endpoint.NewPostgresStore(pool)
	collector := stats.NewRedisCollector(rdb, logger)
	scheduler := retry.NewScheduler(producer, cfg.NSQ.RetryTopic)
	dlq := deadletter.NewHandler(deadletter.NewPostgresStore(pool), endpoints,
		producer, collector, nil, &cfg, logger)
	w := worker.New(endpoints, delivery.NewSender(cfg.Delivery), scheduler,
		dlq, collector, logger)

	// First attempts and retries carry different job shapes, so each topic
	// gets its own handler; both feed the same attempt pipeline.
	registry := queue.NewRegistry()
	if err := registry.Register(cfg.NSQ.DeliveriesTopic, w.JobHandler()); err != nil {
		logger.Plain().WithError(err).Fatal("register handler")
	}
	if err := registry.Register(cfg.NSQ.RetryTopic, w.RetryHandler()); err != nil {
		logger.Plain().WithError(err).Fatal("register handler")
	}
	if err := registry.Require(cfg.NSQ.DeliveriesTopic, cfg.NSQ.RetryTopic); err != nil {
		logger.Plain().WithError(err).Fatal("verify handlers")
	}

	consumers, err := queue.StartConsumers(registry, queue.ConsumerConfig{
		Channel:        cfg.NSQ.WorkerChannel,
		Concurrency:    cfg.Delivery.Concurrency,
		MaxInFlight:    cfg.Delivery.MaxInFlight,
		NsqdTCPAddr:    cfg.NSQ.NsqdTCPAddr,
		LookupHTTPAddr: cfg.NSQ.LookupHTTPAddr,
	})
	if err != nil {
		logger.Plain().WithError(err).Fatal("start consumers")
	}

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	worker.StartBacklogMonitor(monitorCtx, &cfg, logger)

	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", health.HTTPHandler(pool, health.RedisPinger{Client: rdb}))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: cfg.WorkerHTTPPort, Handler: mux}
	go func() {
		logger.Plain().WithField("addr", cfg.WorkerHTTPPort).Info("worker HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Plain().WithError(err).Fatal("http serve")
		}
	}()

	logger.Plain().
		WithField("concurrency", cfg.Delivery.Concurrency).
		WithField("maxAttempts", cfg.Delivery.MaxAttempts).
		Info("worker started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	logger.Plain().Info("shutting down")
	consumers.Stop()
	stopMonitor()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Plain().Info("worker stopped")
}
