package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"groutflow/internal/errors"
	"groutflow/internal/infrastructure"
)

// OperationGate rejects mutating requests while an analysis run holds the
// data directory. Uploading or deleting logs mid-run would change files the
// run is reading, so writes wait until the run finishes. Read requests and
// exempted paths pass through untouched.
type OperationGate struct {
	checker         OperationStatusChecker
	logger          *slog.Logger
	metrics         *GateMetrics
	enabled         bool
	excludePaths    []string
	excludePrefixes []string
}

// GateMetrics holds OpenTelemetry metrics for the operation gate
type GateMetrics struct {
	RequestsTotal  metric.Int64Counter
	ChecksTotal    metric.Int64Counter
	ConflictsTotal metric.Int64Counter
	PathExclusions metric.Int64Counter
	CheckDuration  metric.Float64Histogram
}

// NewGateMetrics creates the gate metric instruments on the given meter.
func NewGateMetrics(meter metric.Meter) (*GateMetrics, error) {
	requestsTotal, err := meter.Int64Counter("operation_gate_requests_total",
		metric.WithDescription("Total requests seen by the operation gate"))
	if err != nil {
		return nil, err
	}
	checksTotal, err := meter.Int64Counter("operation_gate_checks_total",
		metric.WithDescription("Status checks performed by the operation gate"))
	if err != nil {
		return nil, err
	}
	conflictsTotal, err := meter.Int64Counter("operation_gate_conflicts_total",
		metric.WithDescription("Requests rejected because a run was active"))
	if err != nil {
		return nil, err
	}
	pathExclusions, err := meter.Int64Counter("operation_gate_path_exclusions_total",
		metric.WithDescription("Requests skipped due to path exclusion"))
	if err != nil {
		return nil, err
	}
	checkDuration, err := meter.Float64Histogram("operation_gate_check_duration_seconds",
		metric.WithDescription("Duration of operation status checks"))
	if err != nil {
		return nil, err
	}

	return &GateMetrics{
		RequestsTotal:  requestsTotal,
		ChecksTotal:    checksTotal,
		ConflictsTotal: conflictsTotal,
		PathExclusions: pathExclusions,
		CheckDuration:  checkDuration,
	}, nil
}

// NewOperationGate creates the gate middleware around a status checker.
func NewOperationGate(checker OperationStatusChecker, logger *slog.Logger) *OperationGate {
	return &OperationGate{
		checker: checker,
		logger:  logger.With(slog.String("component", "operation_gate")),
		enabled: true,
		excludePaths: []string{
			"/",
			"/api/health",
			"/api/health/ready",
			"/api/health/live",
			"/api/version",
			"/ws",
			"/metrics",
			"/favicon.ico",
		},
		excludePrefixes: []string{
			"/static/",
			"/assets/",
		},
	}
}

// Handler returns the middleware handler function.
func (g *OperationGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := otel.Tracer("operation-gate")

		ctx, span := tracer.Start(ctx, "operation_gate.check",
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.url", r.URL.Path),
				attribute.String("component", "operation_gate"),
			),
		)
		defer span.End()
		r = r.WithContext(ctx)

		reqID := middleware.GetReqID(ctx)
		traceID := infrastructure.TraceIDFromContext(ctx)
		if traceID == "" {
			traceID = reqID
		}

		if g.metrics != nil {
			g.metrics.RequestsTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("path", r.URL.Path),
				attribute.String("method", r.Method),
			))
		}

		if !g.enabled {
			next.ServeHTTP(w, r)
			return
		}

		// Reads never conflict with a run; the analyzer works on a
		// snapshot of whatever files exist when it starts.
		if isSafeMethod(r.Method) {
			span.SetAttributes(attribute.String("gate.result", "safe_method"))
			next.ServeHTTP(w, r)
			return
		}

		if g.shouldExcludePath(r.URL.Path) {
			span.SetAttributes(
				attribute.String("gate.result", "excluded"),
				attribute.String("exclusion_reason", "path_excluded"),
			)

			if g.metrics != nil {
				g.metrics.PathExclusions.Add(ctx, 1, metric.WithAttributes(
					attribute.String("path", r.URL.Path),
				))
			}

			g.logger.DebugContext(ctx, "skipping gate for excluded path",
				slog.String("path", r.URL.Path),
				slog.String("trace_id", traceID))
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		claim, busy := g.checker.ActiveOperation()
		checkDuration := time.Since(start)

		if g.metrics != nil {
			g.metrics.ChecksTotal.Add(ctx, 1)
			g.metrics.CheckDuration.Record(ctx, checkDuration.Seconds())
		}

		span.SetAttributes(
			attribute.String("gate.result", gateResult(busy)),
			attribute.Bool("gate.busy", busy),
		)

		if !busy {
			next.ServeHTTP(w, r)
			return
		}

		if g.metrics != nil {
			g.metrics.ConflictsTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("path", r.URL.Path),
				attribute.String("method", r.Method),
			))
		}

		g.logger.WarnContext(ctx, "rejecting write during active run",
			slog.String("path", r.URL.Path),
			slog.String("method", r.Method),
			slog.String("running_operation_id", claim.ID),
			slog.String("trace_id", traceID))

		g.rejectConflict(w, r, claim, traceID)
	})
}

// rejectConflict writes the 409 response for a blocked request.
func (g *OperationGate) rejectConflict(w http.ResponseWriter, r *http.Request, claim OperationClaim, traceID string) {
	if isAPIRequest(r) {
		details := &errors.OperationConflictDetails{
			RunningID:   claim.ID,
			RunningType: claim.Type,
			Files:       claim.Files,
		}
		if !claim.StartedAt.IsZero() {
			startedAt := claim.StartedAt
			details.StartedAt = &startedAt
		}

		problem := errors.NewOperationConflictError(details, traceID)
		render.Render(w, r, problem)
		return
	}

	http.Error(w, "An analysis run is in progress. Please retry when it finishes.", http.StatusConflict)
}

// shouldExcludePath checks if a path should be excluded from gating
func (g *OperationGate) shouldExcludePath(path string) bool {
	for _, excluded := range g.excludePaths {
		if path == excluded {
			return true
		}
	}

	for _, prefix := range g.excludePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	return false
}

// AddExcludePath adds a path to be excluded from gating
func (g *OperationGate) AddExcludePath(path string) {
	g.excludePaths = append(g.excludePaths, path)
}

// AddExcludePrefix adds a path prefix to be excluded from gating
func (g *OperationGate) AddExcludePrefix(prefix string) {
	g.excludePrefixes = append(g.excludePrefixes, prefix)
}

// SetEnabled enables or disables the gate
func (g *OperationGate) SetEnabled(enabled bool) {
	g.enabled = enabled
}

// SetMetrics sets the OpenTelemetry metrics for the gate
func (g *OperationGate) SetMetrics(metrics *GateMetrics) {
	g.metrics = metrics
}

func gateResult(busy bool) string {
	if busy {
		return "conflict"
	}
	return "allowed"
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// isAPIRequest checks if the request expects a JSON response
func isAPIRequest(r *http.Request) bool {
	// Check Accept header
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") {
		return true
	}

	// Check Content-Type header
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		return true
	}

	// Check path prefix
	return strings.HasPrefix(r.URL.Path, "/api/")
}
