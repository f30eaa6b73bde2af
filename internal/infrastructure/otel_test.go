package infrastructure

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

// TestOTelInitialization tests OpenTelemetry initialization
func TestOTelInitialization(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Test with default configuration
	providers, err := InitializeOTel(nil, logger)
	require.NoError(t, err)
	require.NotNil(t, providers)

	// Verify tracer provider is set
	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)

	// Verify meter provider is set
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)

	// Verify Prometheus handler is available
	assert.NotNil(t, providers.PrometheusHTTP)

	// Test shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = providers.Shutdown(ctx)
	assert.NoError(t, err)
}

// TestTraceCorrelation tests trace ID correlation
func TestTraceCorrelation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx := context.Background()

	// Start a span
	tracer := otel.Tracer("test")
	ctx, span := tracer.Start(ctx, "test-operation")
	defer span.End()

	// Extract trace ID
	traceID := TraceIDFromContext(ctx)
	assert.NotEmpty(t, traceID)

	// Verify trace ID matches span context
	expectedTraceID := span.SpanContext().TraceID().String()
	assert.Equal(t, expectedTraceID, traceID)

	// Test context with trace ID
	ctx = WithTraceID(ctx, traceID)
	retrievedTraceID := GetTraceID(ctx)
	assert.Equal(t, traceID, retrievedTraceID)
}

// TestBusinessMetrics tests business metrics creation
func TestBusinessMetrics(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	// Verify HTTP metrics
	assert.NotNil(t, metrics.HTTPRequestsTotal)
	assert.NotNil(t, metrics.HTTPRequestDuration)
	assert.NotNil(t, metrics.HTTPActiveRequests)

	// Verify operation metrics
	assert.NotNil(t, metrics.OperationExecutionsTotal)
	assert.NotNil(t, metrics.OperationExecutionDuration)
	assert.NotNil(t, metrics.OperationStepsTotal)
	assert.NotNil(t, metrics.OperationActiveOperations)
	assert.NotNil(t, metrics.OperationDataProcessed)

	// Verify analysis metrics
	assert.NotNil(t, metrics.AnalysisFilesProcessed)
	assert.NotNil(t, metrics.AnalysisSummaryRows)
	assert.NotNil(t, metrics.AnalysisSegmentsDetected)
	assert.NotNil(t, metrics.AnalysisFileDuration)

	// Verify chart and upload metrics
	assert.NotNil(t, metrics.ChartRequestsTotal)
	assert.NotNil(t, metrics.ChartBuildDuration)
	assert.NotNil(t, metrics.UploadBytesReceived)

	// Verify system metrics
	assert.NotNil(t, metrics.SystemErrors)
	assert.NotNil(t, metrics.SystemUptime)
}

// TestRecordFileAnalyzed tests the analysis metric recording helper
func TestRecordFileAnalyzed(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()

	// Nil metrics must be a no-op, not a panic
	RecordFileAnalyzed(ctx, nil, "P0012", 3, 4, 4, time.Second, "success")

	RecordFileAnalyzed(ctx, metrics, "P0012", 3, 4, 4, 125*time.Millisecond, "success")
	RecordFileAnalyzed(ctx, metrics, "A1", 1, 0, 0, 10*time.Millisecond, "no_usable_data")

	RecordChartRequest(ctx, nil, "histogram", "flow", time.Millisecond)
	RecordChartRequest(ctx, metrics, "histogram", "flow", 3*time.Millisecond)
}

// TestSpanOperations tests span operations and attributes
func TestSpanOperations(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx := context.Background()
	tracer := otel.Tracer("test")
	ctx, span := tracer.Start(ctx, "test-span")
	defer span.End()

	// Test adding span attributes
	attributes := map[string]interface{}{
		"string_attr": "test_value",
		"int_attr":    42,
		"float_attr":  3.14,
		"bool_attr":   true,
	}

	SetSpanAttributes(ctx, attributes)

	// Test adding span events
	AddSpanEvent(ctx, "test.event", map[string]interface{}{
		"event_data": "test_event_value",
		"timestamp":  time.Now().Unix(),
	})

	// Test error recording
	testErr := assert.AnError
	RecordError(ctx, testErr)

	// Verify span is recording
	assert.True(t, span.IsRecording())
}

// TestPrometheusEndpoint tests the Prometheus metrics endpoint
func TestPrometheusEndpoint(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	// Create test server with Prometheus handler
	server := httptest.NewServer(providers.PrometheusHTTP)
	defer server.Close()

	// Make request to metrics endpoint
	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	// Verify response
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
}

// TestOTelConfiguration tests different configuration options
func TestOTelConfiguration(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	tests := []struct {
		name   string
		config *OTelConfig
	}{
		{
			name: "development_config",
			config: &OTelConfig{
				ServiceName:    "test-service",
				ServiceVersion: "v1.0.0",
				Environment:    "development",
				TraceExporter:  "stdout",
				MetricExporter: "prometheus",
				EnableMetrics:  true,
				EnableTracing:  true,
				SampleRatio:    1.0,
			},
		},
		{
			name: "disabled_tracing",
			config: &OTelConfig{
				ServiceName:    "test-service",
				ServiceVersion: "v1.0.0",
				Environment:    "test",
				TraceExporter:  "none",
				MetricExporter: "prometheus",
				EnableMetrics:  true,
				EnableTracing:  false,
				SampleRatio:    0.0,
			},
		},
		{
			name: "disabled_metrics",
			config: &OTelConfig{
				ServiceName:    "test-service",
				ServiceVersion: "v1.0.0",
				Environment:    "test",
				TraceExporter:  "stdout",
				MetricExporter: "none",
				EnableMetrics:  false,
				EnableTracing:  true,
				SampleRatio:    1.0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers, err := InitializeOTel(tt.config, logger)
			require.NoError(t, err)
			require.NotNil(t, providers)

			// Verify configuration
			if tt.config.EnableTracing {
				assert.NotNil(t, providers.TracerProvider)
				assert.NotNil(t, providers.Tracer)
			}

			if tt.config.EnableMetrics {
				assert.NotNil(t, providers.MeterProvider)
				assert.NotNil(t, providers.Meter)
			}

			// Test shutdown
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			err = providers.Shutdown(ctx)
			assert.NoError(t, err)
		})
	}
}

// TestSystemMetricsCollector tests runtime metrics collection
func TestSystemMetricsCollector(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	collector, err := NewSystemMetricsCollector(providers.Meter, 50*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, collector.GetMetrics())

	stats := collector.GetCurrentStats(context.Background())
	require.NotNil(t, stats)
	assert.Greater(t, stats.GoRoutines, int64(0))
	assert.Greater(t, stats.MemoryUsage, int64(0))
	assert.Greater(t, stats.CPUCount, 0)
	assert.False(t, stats.Timestamp.IsZero())

	formatted := stats.FormatStats()
	assert.Contains(t, formatted, "runtime")
	assert.Contains(t, formatted, "system")
	assert.Contains(t, formatted, "timestamp")

	// Run the periodic loop briefly, then stop it
	done := make(chan struct{})
	go func() {
		collector.Start(context.Background())
		close(done)
	}()

	time.Sleep(120 * time.Millisecond)
	collector.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}

// BenchmarkTraceOperations benchmarks trace operations to validate performance impact
func BenchmarkTraceOperations(b *testing.B) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(b, err)
	defer providers.Shutdown(context.Background())

	tracer := otel.Tracer("benchmark")

	b.ResetTimer()
	b.ReportAllocs()

	b.Run("span_creation", func(b *testing.B) {
		ctx := context.Background()
		for i := 0; i < b.N; i++ {
			_, span := tracer.Start(ctx, "benchmark-span")
			span.End()
		}
	})

	b.Run("span_attributes", func(b *testing.B) {
		ctx := context.Background()
		ctx, span := tracer.Start(ctx, "benchmark-span")
		defer span.End()

		attributes := map[string]interface{}{
			"operation": "benchmark",
			"iteration": 0,
			"success":   true,
		}

		for i := 0; i < b.N; i++ {
			attributes["iteration"] = i
			SetSpanAttributes(ctx, attributes)
		}
	})

	b.Run("span_events", func(b *testing.B) {
		ctx := context.Background()
		ctx, span := tracer.Start(ctx, "benchmark-span")
		defer span.End()

		for i := 0; i < b.N; i++ {
			AddSpanEvent(ctx, "benchmark.event", map[string]interface{}{
				"iteration": i,
				"timestamp": time.Now().Unix(),
			})
		}
	})
}

// BenchmarkMetricOperations benchmarks metric operations
func BenchmarkMetricOperations(b *testing.B) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(b, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(b, err)

	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	b.Run("counter_increment", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			metrics.HTTPRequestsTotal.Add(ctx, 1)
		}
	})

	b.Run("histogram_record", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			metrics.HTTPRequestDuration.Record(ctx, float64(i)*0.001)
		}
	})

	b.Run("updown_counter", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if i%2 == 0 {
				metrics.HTTPActiveRequests.Add(ctx, 1)
			} else {
				metrics.HTTPActiveRequests.Add(ctx, -1)
			}
		}
	})
}

// TestTracePropagation tests trace propagation across contexts
func TestTracePropagation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	tracer := otel.Tracer("propagation-test")

	// Start parent span
	ctx := context.Background()
	ctx, parentSpan := tracer.Start(ctx, "parent-operation")
	defer parentSpan.End()

	parentTraceID := parentSpan.SpanContext().TraceID().String()

	// Create child span in same trace
	ctx, childSpan := tracer.Start(ctx, "child-operation")
	defer childSpan.End()

	childTraceID := childSpan.SpanContext().TraceID().String()

	// Verify trace propagation
	assert.Equal(t, parentTraceID, childTraceID, "Child span should have same trace ID as parent")

	// Verify spans are in same trace but different spans
	assert.Equal(t, parentSpan.SpanContext().TraceID(), childSpan.SpanContext().TraceID())
	assert.NotEqual(t, parentSpan.SpanContext().SpanID(), childSpan.SpanContext().SpanID())
}
