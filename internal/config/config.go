package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type DB struct {
	User string
	Pass string
	Host string
	Port string
	Name string
}

type Redis struct {
	Addr     string // e.g. redis:6379
	Password string
	DB       int
}

type NSQ struct {
	NsqdTCPAddr     string // e.g. nsqd:4150
	LookupHTTPAddr  string // e.g. http://nsqlookupd:4161
	EventsTopic     string // inbound domain events
	DeliveriesTopic string // first-attempt delivery jobs
	RetryTopic      string // deferred retry jobs
	DLQTopic        string // dead-letter audit envelopes
	WorkerChannel   string // channel name for delivery workers
	DispatchChannel string // channel name for the event dispatcher
}

type Delivery struct {
	MaxAttempts          int           // attempt ceiling per lineage
	Concurrency          int           // handler goroutines per topic
	MaxInFlight          int           // NSQ max in-flight messages
	HTTPTimeout          time.Duration // per-attempt request timeout
	ResponseLimit        int64         // max response bytes read per attempt
	SignatureHeader      string        // HTTP header for the webhook signature
	EventTypeHeader      string        // HTTP header for the event type
	DeliveryIDHeader     string        // HTTP header for the delivery id
	UserAgent            string
	DisableAfterFailures int  // auto-disable endpoint after N dead letters, 0 = never
	PublishDLQTopic      bool // publish dead-letter envelopes to the DLQ topic
}

type Receiver struct {
	Port          string        // fake receiver listen port
	Secret        string        // secret for signature verification, empty skips
	FailFirstN    int           // number of requests to fail initially
	FailStatus    int           // status code for injected failures
	ResponseDelay time.Duration // simulated processing delay
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
}

type Config struct {
	AppName        string
	HTTPPort       string // dispatchd admin API, e.g. :8080
	WorkerHTTPPort string // worker health/metrics, e.g. :8082
	AutoMigrate    bool   // create engine-owned tables at startup
	DB             DB
	Redis          Redis
	NSQ            NSQ
	Delivery       Delivery
	Receiver       Receiver
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func FromEnv() Config {
	return Config{
		AppName:        getenv("APP_NAME", "utmify-hooks"),
		HTTPPort:       getenv("HTTP_PORT", ":8080"),
		WorkerHTTPPort: getenv("WORKER_HTTP_PORT", ":8082"),
		AutoMigrate:    getenvBool("DB_AUTO_MIGRATE", true),
		DB: DB{
			User: getenv("DB_USER", "postgres"),
			Pass: getenv("DB_PASS", "postgres"),
			Host: getenv("DB_HOST", "postgres"),
			Port: getenv("DB_PORT", "5432"),
			Name: getenv("DB_NAME", "utmify"),
		},
		Redis: Redis{
			Addr:     getenv("REDIS_ADDR", "redis:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		NSQ: NSQ{
			NsqdTCPAddr:     getenv("NSQD_TCP_ADDR", "nsqd:4150"),
			LookupHTTPAddr:  getenv("NSQ_LOOKUP_HTTP_ADDR", "http://nsqlookupd:4161"),
			EventsTopic:     getenv("NSQ_EVENTS_TOPIC", "events"),
			DeliveriesTopic: getenv("NSQ_DELIVERIES_TOPIC", "deliveries"),
			RetryTopic:      getenv("NSQ_RETRY_TOPIC", "deliveries_retry"),
			DLQTopic:        getenv("NSQ_DLQ_TOPIC", "deliveries_dlq"),
			WorkerChannel:   getenv("NSQ_WORKER_CHANNEL", "workers"),
			DispatchChannel: getenv("NSQ_DISPATCH_CHANNEL", "dispatch"),
		},
		Delivery: Delivery{
			MaxAttempts:          getenvInt("MAX_ATTEMPTS", 3),
			Concurrency:          getenvInt("WORKER_CONCURRENCY", 4),
			MaxInFlight:          getenvInt("NSQ_MAX_IN_FLIGHT", 64),
			HTTPTimeout:          getenvDuration("DELIVERY_TIMEOUT", 10*time.Second),
			ResponseLimit:        getenvInt64("DELIVERY_RESPONSE_LIMIT", 4096),
			SignatureHeader:      getenv("WEBHOOK_SIGNATURE_HEADER", "X-Utmify-Signature"),
			EventTypeHeader:      getenv("WEBHOOK_EVENT_TYPE_HEADER", "X-Utmify-Event-Type"),
			DeliveryIDHeader:     getenv("WEBHOOK_DELIVERY_ID_HEADER", "X-Utmify-Delivery-Id"),
			UserAgent:            getenv("WEBHOOK_USER_AGENT", "utmify-hooks/1.0"),
			DisableAfterFailures: getenvInt("DISABLE_AFTER_FAILURES", 0),
			PublishDLQTopic:      getenvBool("PUBLISH_DLQ_TOPIC", true),
		},
		Receiver: Receiver{
			Port:          getenv("FAKE_RECEIVER_PORT", ":8081"),
			Secret:        getenv("ENDPOINT_SECRET", ""),
			FailFirstN:    getenvInt("FAIL_FIRST_N", 0),
			FailStatus:    getenvInt("FAIL_STATUS", 500),
			ResponseDelay: getenvDuration("RESPONSE_DELAY", 0),
			ReadTimeout:   getenvDuration("FAKE_RECEIVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:  getenvDuration("FAKE_RECEIVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:   getenvDuration("FAKE_RECEIVER_IDLE_TIMEOUT", 60*time.Second),
		},
	}
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DB.User, c.DB.Pass, c.DB.Host, c.DB.Port, c.DB.Name)
}
