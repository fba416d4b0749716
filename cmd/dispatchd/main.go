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

	"github.com/EznRB/utmify-hooks/internal/admin"
	"github.com/EznRB/utmify-hooks/internal/config"
	"github.com/EznRB/utmify-hooks/internal/db"
	"github.com/EznRB/utmify-hooks/internal/deadletter"
	"github.com/EznRB/utmify-hooks/internal/delivery"
	"github.com/EznRB/utmify-hooks/internal/dispatch"
	"github.com/EznRB/utmify-hooks/internal/endpoint"
	"github.com/EznRB/utmify-hooks/internal/health"
	"github.com/EznRB/utmify-hooks/internal/logging"
	"github.com/EznRB/utmify-hooks/internal/metrics"
	"github.com/EznRB/utmify-hooks/internal/queue"
	"github.com/EznRB/utmify-hooks/internal/stats"
	"github.com/EznRB/utmify-hooks/internal/tracing"
)

const serviceName = "utmify-dispatchd"

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

	if cfg.AutoMigrate {
		if err := db.EnsureSchema(ctx, pool); err != nil {
			logger.Plain().WithError(err).Fatal("ensure schema")
		}
	}

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
	dlq := deadletter.NewHandler(deadletter.NewPostgresStore(pool), endpoints,
		producer, collector, nil, &cfg, logger)
	dispatcher := dispatch.NewDispatcher(endpoints, producer, collector,
		delivery.NewSender(cfg.Delivery), dlq, &cfg, logger)

	// Every consumed topic gets its handler here; Require catches a missing
	// one before any message flows.
	registry := queue.NewRegistry()
	if err := registry.Register(cfg.NSQ.EventsTopic, dispatcher.EventHandler()); err != nil {
		logger.Plain().WithError(err).Fatal("register handler")
	}
	if err := registry.Require(cfg.NSQ.EventsTopic); err != nil {
		logger.Plain().WithError(err).Fatal("verify handlers")
	}

	consumers, err := queue.StartConsumers(registry, queue.ConsumerConfig{
		Channel:        cfg.NSQ.DispatchChannel,
		Concurrency:    cfg.Delivery.Concurrency,
		MaxInFlight:    cfg.Delivery.MaxInFlight,
		NsqdTCPAddr:    cfg.NSQ.NsqdTCPAddr,
		LookupHTTPAddr: cfg.NSQ.LookupHTTPAddr,
	})
	if err != nil {
		logger.Plain().WithError(err).Fatal("start consumers")
	}

	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	api := admin.NewServer(dispatcher, endpoints, collector, dlq,
		health.HTTPHandler(pool, health.RedisPinger{Client: rdb}),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), logger)

	srv := &http.Server{Addr: cfg.HTTPPort, Handler: api}
	go func() {
		logger.Plain().WithField("addr", cfg.HTTPPort).Info("admin API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Plain().WithError(err).Fatal("http serve")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	logger.Plain().Info("shutting down")
	consumers.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Plain().Info("dispatchd stopped")
}
