package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// nsqStats is the slice of nsqd's /stats JSON the monitor reads.
type nsqStats struct {
	Topics []struct {
		TopicName string `json:"topic_name"`
		Channels  []struct {
			ChannelName   string `json:"channel_name"`
			Depth         int64  `json:"depth"`
			InFlightCount int64  `json:"in_flight_count"`
		} `json:"channels"`
		Depth int64 `json:"depth"`
	} `json:"topics"`
}

var (
	// Total delivery backlog on the worker channel, the number operators
	// actually page on.
	queueBacklog = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "utmify_webhook_queue_backlog",
		Help: "Messages waiting on the deliveries topics for the worker channel",
	})

	channelDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "utmify_webhook_nsq_channel_depth",
		Help: "Depth of NSQ channels by topic and channel",
	}, []string{"topic", "channel"})

	channelInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "utmify_webhook_nsq_channel_inflight",
		Help: "In-flight messages for NSQ channels by topic and channel",
	}, []string{"topic", "channel"})
)

func init() {
	prometheus.MustRegister(queueBacklog)
	prometheus.MustRegister(channelDepth)
	prometheus.MustRegister(channelInflight)
}

type watchCfg struct {
	deliveriesTopic string
	retryTopic      string
	workerChannel   string
}

func main() {
	nsqdHost := getEnv("NSQD_HTTP_ADDR", "nsqd:4151")
	port := getEnv("PORT", "8084")
	interval := getEnvInt("POLL_INTERVAL_SECONDS", 15)
	watch := watchCfg{
		deliveriesTopic: getEnv("NSQ_DELIVERIES_TOPIC", "deliveries"),
		retryTopic:      getEnv("NSQ_RETRY_TOPIC", "deliveries_retry"),
		workerChannel:   getEnv("NSQ_WORKER_CHANNEL", "workers"),
	}

	log.Printf("nsq-monitor starting on port %s", port)
	log.Printf("monitoring nsqd at %s every %d seconds", nsqdHost, interval)

	go collectMetrics(nsqdHost, watch, time.Duration(interval)*time.Second)

	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	log.Fatal(http.ListenAndServe(":"+port, nil))
}

func collectMetrics(nsqdHost string, watch watchCfg, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if err := updateMetrics(nsqdHost, watch); err != nil {
			log.Printf("error updating metrics: %v", err)
		}
	}
}

func updateMetrics(nsqdHost string, watch watchCfg) error {
	resp, err := http.Get(fmt.Sprintf("http://%s/stats?format=json", nsqdHost))
	if err != nil {
		return fmt.Errorf("get nsqd stats: %w", err)
	}
	defer resp.Body.Close()

	var stats nsqStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return fmt.Errorf("decode nsqd stats: %w", err)
	}

	var backlog int64
	for _, topic := range stats.Topics {
		for _, channel := range topic.Channels {
			channelDepth.WithLabelValues(topic.TopicName, channel.ChannelName).Set(float64(channel.Depth))
			channelInflight.WithLabelValues(topic.TopicName, channel.ChannelName).Set(float64(channel.InFlightCount))

			if channel.ChannelName != watch.workerChannel {
				continue
			}
			if topic.TopicName == watch.deliveriesTopic || topic.TopicName == watch.retryTopic {
				backlog += channel.Depth
			}
		}
	}
	queueBacklog.Set(float64(backlog))

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
