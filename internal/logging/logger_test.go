package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// captureOutput redirects stdout while fn runs and returns what was written
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error: %v", err)
	}
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("reading captured output: %v", err)
	}
	return buf.String()
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		serviceName string
	}{
		{
			name:        "create logger with service name",
			serviceName: "test-service",
		},
		{
			name:        "create logger with empty service name",
			serviceName: "",
		},
		{
			name:        "create logger with complex service name",
			serviceName: "utmify-hooks-worker-v2.1.3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.serviceName)

			if logger == nil {
				t.Fatal("New() returned nil logger")
			}
			if logger.service != tt.serviceName {
				t.Errorf("New() service = %q, want %q", logger.service, tt.serviceName)
			}
		})
	}
}

func TestLogger_WithContext(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(trace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)

	tests := []struct {
		name     string
		hasTrace bool
	}{
		{
			name:     "with trace context",
			hasTrace: true,
		},
		{
			name:     "without trace context",
			hasTrace: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New("test-service")
			ctx := context.Background()

			if tt.hasTrace {
				tracer := otel.Tracer("test-tracer")
				newCtx, span := tracer.Start(ctx, "test-span")
				ctx = newCtx
				defer span.End()
			}

			before := time.Now().UTC()
			entry := logger.WithContext(ctx)
			after := time.Now().UTC()

			if entry == nil {
				t.Fatal("WithContext() returned nil entry")
			}
			if entry.Service != "test-service" {
				t.Errorf("WithContext() Service = %q, want %q", entry.Service, "test-service")
			}
			if entry.Time.Before(before) || entry.Time.After(after) {
				t.Errorf("WithContext() Time %v not between %v and %v", entry.Time, before, after)
			}

			if tt.hasTrace {
				if entry.TraceID == "" {
					t.Error("WithContext() TraceID should not be empty with trace context")
				}
			} else {
				if entry.TraceID != "" {
					t.Errorf("WithContext() TraceID = %q, want empty string without trace", entry.TraceID)
				}
			}
		})
	}
}

func TestLogEntry_FluentMethods(t *testing.T) {
	tests := []struct {
		name    string
		setupFn func(*LogEntry) *LogEntry
		checkFn func(*testing.T, *LogEntry)
	}{
		{
			name: "WithTraceID",
			setupFn: func(e *LogEntry) *LogEntry {
				return e.WithTraceID("trace-123")
			},
			checkFn: func(t *testing.T, e *LogEntry) {
				if e.TraceID != "trace-123" {
					t.Errorf("WithTraceID() TraceID = %q, want %q", e.TraceID, "trace-123")
				}
			},
		},
		{
			name: "WithTenant",
			setupFn: func(e *LogEntry) *LogEntry {
				return e.WithTenant("tenant-456")
			},
			checkFn: func(t *testing.T, e *LogEntry) {
				if e.TenantID != "tenant-456" {
					t.Errorf("WithTenant() TenantID = %q, want %q", e.TenantID, "tenant-456")
				}
			},
		},
		{
			name: "WithEvent",
			setupFn: func(e *LogEntry) *LogEntry {
				return e.WithEvent("event-789")
			},
			checkFn: func(t *testing.T, e *LogEntry) {
				if e.EventID != "event-789" {
					t.Errorf("WithEvent() EventID = %q, want %q", e.EventID, "event-789")
				}
			},
		},
		{
			name: "WithEventType",
			setupFn: func(e *LogEntry) *LogEntry {
				return e.WithEventType("campaign.created")
			},
			checkFn: func(t *testing.T, e *LogEntry) {
				if e.EventType != "campaign.created" {
					t.Errorf("WithEventType() EventType = %q, want %q", e.EventType, "campaign.created")
				}
			},
		},
		{
			name: "WithDelivery",
			setupFn: func(e *LogEntry) *LogEntry {
				return e.WithDelivery("delivery-abc")
			},
			checkFn: func(t *testing.T, e *LogEntry) {
				if e.DeliveryID != "delivery-abc" {
					t.Errorf("WithDelivery() DeliveryID = %q, want %q", e.DeliveryID, "delivery-abc")
				}
			},
		},
		{
			name: "WithEndpoint",
			setupFn: func(e *LogEntry) *LogEntry {
				return e.WithEndpoint("endpoint-def")
			},
			checkFn: func(t *testing.T, e *LogEntry) {
				if e.EndpointID != "endpoint-def" {
					t.Errorf("WithEndpoint() EndpointID = %q, want %q", e.EndpointID, "endpoint-def")
				}
			},
		},
		{
			name: "WithAttempt",
			setupFn: func(e *LogEntry) *LogEntry {
				return e.WithAttempt(3)
			},
			checkFn: func(t *testing.T, e *LogEntry) {
				if e.Attempt != 3 {
					t.Errorf("WithAttempt() Attempt = %d, want 3", e.Attempt)
				}
			},
		},
		{
			name: "chained calls",
			setupFn: func(e *LogEntry) *LogEntry {
				return e.WithTenant("t1").WithEndpoint("e1").WithDelivery("d1").WithAttempt(2)
			},
			checkFn: func(t *testing.T, e *LogEntry) {
				if e.TenantID != "t1" || e.EndpointID != "e1" || e.DeliveryID != "d1" || e.Attempt != 2 {
					t.Errorf("chained calls produced %+v", e)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New("test-service")
			entry := tt.setupFn(logger.Plain())

			if entry == nil {
				t.Fatal("fluent method returned nil entry")
			}
			tt.checkFn(t, entry)
		})
	}
}

func TestLogEntry_WithField(t *testing.T) {
	logger := New("test-service")

	entry := logger.Plain().WithField("count", 42).WithField("active", true)
	if entry.Fields["count"] != 42 {
		t.Errorf("WithField() Fields[count] = %v, want 42", entry.Fields["count"])
	}
	if entry.Fields["active"] != true {
		t.Errorf("WithField() Fields[active] = %v, want true", entry.Fields["active"])
	}

	// WithField must initialize a nil map
	bare := &LogEntry{}
	bare.WithField("key", "value")
	if bare.Fields["key"] != "value" {
		t.Errorf("WithField() on bare entry Fields[key] = %v, want %q", bare.Fields["key"], "value")
	}
}

func TestLogEntry_WithError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantField bool
	}{
		{
			name:      "non-nil error",
			err:       errors.New("delivery timed out"),
			wantField: true,
		},
		{
			name:      "nil error",
			err:       nil,
			wantField: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := New("test-service").Plain().WithError(tt.err)

			if tt.wantField {
				if entry.Fields["error"] != tt.err.Error() {
					t.Errorf("WithError() Fields[error] = %v, want %q", entry.Fields["error"], tt.err.Error())
				}
			} else {
				if _, ok := entry.Fields["error"]; ok {
					t.Error("WithError(nil) should not set the error field")
				}
			}
		})
	}
}

func TestLogEntry_LoggingMethods(t *testing.T) {
	tests := []struct {
		name      string
		logFn     func(*LogEntry)
		wantLevel LogLevel
		wantMsg   string
	}{
		{
			name:      "Info",
			logFn:     func(e *LogEntry) { e.Info("delivery succeeded") },
			wantLevel: LevelInfo,
			wantMsg:   "delivery succeeded",
		},
		{
			name:      "Infof",
			logFn:     func(e *LogEntry) { e.Infof("dispatched %d deliveries", 3) },
			wantLevel: LevelInfo,
			wantMsg:   "dispatched 3 deliveries",
		},
		{
			name:      "Warn",
			logFn:     func(e *LogEntry) { e.Warn("endpoint inactive") },
			wantLevel: LevelWarn,
			wantMsg:   "endpoint inactive",
		},
		{
			name:      "Error",
			logFn:     func(e *LogEntry) { e.Error("delivery failed") },
			wantLevel: LevelError,
			wantMsg:   "delivery failed",
		},
		{
			name:      "Debugf",
			logFn:     func(e *LogEntry) { e.Debugf("attempt %d", 2) },
			wantLevel: LevelDebug,
			wantMsg:   "attempt 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureOutput(t, func() {
				tt.logFn(New("test-service").Plain())
			})

			var entry LogEntry
			if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
				t.Fatalf("log output is not valid JSON: %v (output: %q)", err, out)
			}
			if entry.Level != tt.wantLevel {
				t.Errorf("log Level = %q, want %q", entry.Level, tt.wantLevel)
			}
			if entry.Message != tt.wantMsg {
				t.Errorf("log Message = %q, want %q", entry.Message, tt.wantMsg)
			}
			if entry.Service != "test-service" {
				t.Errorf("log Service = %q, want %q", entry.Service, "test-service")
			}
		})
	}
}

func TestLogEntryJSONFieldNames(t *testing.T) {
	out := captureOutput(t, func() {
		New("svc").Plain().
			WithTenant("tenant-1").
			WithEventType("campaign.created").
			WithDelivery("delivery-1").
			WithEndpoint("endpoint-1").
			WithAttempt(2).
			Info("hello")
	})

	var raw map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &raw); err != nil {
		t.Fatalf("log output is not valid JSON: %v", err)
	}

	for _, key := range []string{"time", "level", "msg", "service", "tenant_id", "event_type", "delivery_id", "endpoint_id", "attempt"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("expected JSON key %q in log output, got %v", key, raw)
		}
	}
}

func TestSetDefaultService(t *testing.T) {
	original := defaultLogger.service
	defer func() { defaultLogger.service = original }()

	SetDefaultService("renamed-service")
	entry := Plain()
	if entry.Service != "renamed-service" {
		t.Errorf("Plain() after SetDefaultService Service = %q, want %q", entry.Service, "renamed-service")
	}
}

func TestLogLevelConstants(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LevelFatal, "fatal"},
	}

	for _, tt := range tests {
		if string(tt.level) != tt.expected {
			t.Errorf("LogLevel %v = %q, want %q", tt.level, string(tt.level), tt.expected)
		}
	}
}
