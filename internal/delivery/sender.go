package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/EznRB/utmify-hooks/internal/config"
	"github.com/EznRB/utmify-hooks/internal/endpoint"
	"github.com/EznRB/utmify-hooks/internal/signature"
	"github.com/EznRB/utmify-hooks/internal/tracing"
)

// Result holds the outcome of a single delivery attempt.
type Result struct {
	StatusCode int
	Latency    time.Duration
	Err        error
}

// OK reports a 2xx response with no transport error.
func (r Result) OK() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

func (r Result) ErrString() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	if r.StatusCode != 0 && !r.OK() {
		return fmt.Sprintf("http status %d", r.StatusCode)
	}
	return ""
}

// Sender performs one signed HTTP delivery attempt.
type Sender struct {
	client *http.Client
	cfg    config.Delivery
}

func NewSender(cfg config.Delivery) *Sender {
	return &Sender{
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		cfg:    cfg,
	}
}

// Send signs the wire payload with the endpoint secret and POSTs it. The
// response body is drained up to the configured cap so connections get
// reused; its content is not kept.
func (s *Sender) Send(ctx context.Context, ep endpoint.Endpoint, d Delivery) Result {
	body, err := json.Marshal(NewPayload(d, time.Now()))
	if err != nil {
		return Result{Err: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return Result{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set(s.cfg.SignatureHeader, signature.Sign(body, ep.Secret))
	req.Header.Set(s.cfg.EventTypeHeader, d.Event.Type)
	req.Header.Set(s.cfg.DeliveryIDHeader, d.DeliveryID)

	// Trace ID travels as a plain header for receiver-side correlation
	if traceID := tracing.GetTraceID(ctx); traceID != "" {
		req.Header.Set("X-Trace-Id", traceID)
	}

	start := time.Now()
	resp, doErr := s.client.Do(req)
	latency := time.Since(start)
	if doErr != nil {
		return Result{Latency: latency, Err: doErr}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, s.cfg.ResponseLimit))
	_ = resp.Body.Close()

	return Result{StatusCode: resp.StatusCode, Latency: latency}
}

// Classify maps a failed attempt to a reason label used by metrics and
// dead-letter records.
func Classify(r Result) string {
	if r.Err != nil {
		errLower := strings.ToLower(r.Err.Error())
		if strings.Contains(errLower, "timeout") || strings.Contains(errLower, "deadline exceeded") {
			return "timeout"
		}
		if strings.Contains(errLower, "connection refused") {
			return "connection_refused"
		}
		if strings.Contains(errLower, "no such host") || strings.Contains(errLower, "dns") {
			return "dns_error"
		}
		return "network"
	}
	if r.StatusCode >= 500 {
		return "http_5xx"
	}
	if r.StatusCode == 429 {
		return "http_429"
	}
	if r.StatusCode >= 400 {
		return "http_4xx"
	}
	return "other"
}
