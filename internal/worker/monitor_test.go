package worker

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/EznRB/utmify-hooks/internal/metrics"
)

func TestNsqdHTTPAddr(t *testing.T) {
	tests := []struct {
		name string
		addr string
		want string
	}{
		{name: "hostname", addr: "nsqd:4150", want: "nsqd:4151"},
		{name: "loopback", addr: "127.0.0.1:4150", want: "127.0.0.1:4151"},
		{name: "custom port", addr: "nsqd:5150", want: "nsqd:5151"},
		{name: "no port passed through", addr: "nsqd", want: "nsqd"},
		{name: "bad port passed through", addr: "nsqd:tcp", want: "nsqd:tcp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nsqdHTTPAddr(tt.addr); got != tt.want {
				t.Errorf("nsqdHTTPAddr(%q) = %q, want %q", tt.addr, got, tt.want)
			}
		})
	}
}

func TestPollBacklog(t *testing.T) {
	const statsJSON = `{
		"topics": [
			{
				"topic_name": "deliveries",
				"channels": [
					{"channel_name": "workers", "depth": 7},
					{"channel_name": "audit", "depth": 99}
				]
			},
			{
				"topic_name": "deliveries_retry",
				"channels": [
					{"channel_name": "workers", "depth": 3}
				]
			},
			{
				"topic_name": "events",
				"channels": [
					{"channel_name": "dispatch", "depth": 5}
				]
			}
		]
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(statsJSON))
	}))
	defer srv.Close()

	if err := pollBacklog(srv.Client(), srv.URL+"/stats?format=json", testConfig()); err != nil {
		t.Fatalf("pollBacklog() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.WorkerBacklog); got != 10 {
		t.Errorf("worker backlog = %v, want 10 (deliveries 7 + retry 3)", got)
	}
	if got := testutil.ToFloat64(metrics.NSQTopicDepth.WithLabelValues("deliveries", "workers")); got != 7 {
		t.Errorf("deliveries/workers depth = %v, want 7", got)
	}
	if got := testutil.ToFloat64(metrics.NSQTopicDepth.WithLabelValues("deliveries", "audit")); got != 99 {
		t.Errorf("deliveries/audit depth = %v, want 99", got)
	}
	if got := testutil.ToFloat64(metrics.NSQTopicDepth.WithLabelValues("events", "dispatch")); got != 5 {
		t.Errorf("events/dispatch depth = %v, want 5", got)
	}
}

func TestPollBacklogUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	if err := pollBacklog(http.DefaultClient, srv.URL+"/stats?format=json", testConfig()); err == nil {
		t.Error("pollBacklog() error = nil, want connection error")
	}
}
