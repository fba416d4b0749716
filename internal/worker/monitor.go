package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/EznRB/utmify-hooks/internal/config"
	"github.com/EznRB/utmify-hooks/internal/logging"
	"github.com/EznRB/utmify-hooks/internal/metrics"
)

// nsqdStats is the slice of nsqd's /stats JSON the monitor reads.
type nsqdStats struct {
	Topics []struct {
		Name     string `json:"topic_name"`
		Channels []struct {
			Name  string `json:"channel_name"`
			Depth int64  `json:"depth"`
		} `json:"channels"`
	} `json:"topics"`
}

// StartBacklogMonitor polls nsqd's HTTP stats endpoint every 15s and exports
// queue depths. The worker backlog gauge sums the depth of the consumed
// topics on the worker channel.
func StartBacklogMonitor(ctx context.Context, cfg *config.Config, logger *logging.Logger) {
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		client := &http.Client{Timeout: 5 * time.Second}
		url := fmt.Sprintf("http://%s/stats?format=json", nsqdHTTPAddr(cfg.NSQ.NsqdTCPAddr))

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := pollBacklog(client, url, cfg); err != nil {
					logger.Plain().WithError(err).Error("poll nsqd stats")
				}
			}
		}
	}()
}

func pollBacklog(client *http.Client, url string, cfg *config.Config) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var st nsqdStats
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return fmt.Errorf("decode nsqd stats: %w", err)
	}

	var backlog int64
	for _, topic := range st.Topics {
		for _, ch := range topic.Channels {
			metrics.UpdateNSQTopicDepth(topic.Name, ch.Name, float64(ch.Depth))
			if ch.Name != cfg.NSQ.WorkerChannel {
				continue
			}
			if topic.Name == cfg.NSQ.DeliveriesTopic || topic.Name == cfg.NSQ.RetryTopic {
				backlog += ch.Depth
			}
		}
	}
	metrics.UpdateWorkerBacklog(float64(backlog))
	return nil
}

// nsqdHTTPAddr derives the nsqd HTTP address from its TCP address; nsqd
// serves HTTP on the TCP port plus one (4150 -> 4151).
func nsqdHTTPAddr(tcpAddr string) string {
	host, port, err := net.SplitHostPort(tcpAddr)
	if err != nil {
		return tcpAddr
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return tcpAddr
	}
	return net.JoinHostPort(host, strconv.Itoa(p+1))
}
