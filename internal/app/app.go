package app

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"groutflow/internal/config"
	"groutflow/internal/dataprocessing"
	apierrors "groutflow/internal/errors"
	"groutflow/internal/exporter"
	"groutflow/internal/files"
	"groutflow/internal/infrastructure"
	customMiddleware "groutflow/internal/middleware"
	"groutflow/internal/operations"
	"groutflow/internal/report"
	"groutflow/internal/services"
	handlers "groutflow/internal/transport/http"
	ws "groutflow/internal/websocket"
	"groutflow/pkg/contracts"
)

// AppName is the human-readable service name used in startup logs.
const AppName = "Grout Injection Analyzer"

var (
	// BuildTime is set at compile time
	BuildTime = time.Now().Format(time.RFC3339)
	// BuildID is a unique identifier for this build
	BuildID = generateBuildID()
)

func generateBuildID() string {
	h := sha256.New()
	h.Write([]byte(contracts.Version))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application is the composition root of the web service. It owns the
// configuration, the wired services, the router and the HTTP server,
// and drives their lifecycle.
type Application struct {
	Config           *config.Config
	Paths            *config.Paths
	Router           *chi.Mux
	Server           *http.Server
	WebSocketHub     *ws.Hub
	Manager          *operations.Manager
	JobQueue         *operations.JobQueue
	OperationService *services.OperationService
	AnalysisService  *services.AnalysisService
	ReportService    *services.ReportService
	HealthService    *services.HealthService
	Logger           *slog.Logger
	OTelProviders    *infrastructure.OTelProviders

	errorHandler    *apierrors.ErrorHandler
	validation      *customMiddleware.ValidationMiddleware
	businessMetrics *infrastructure.BusinessMetrics
	runtimeMetrics  *infrastructure.SystemMetricsCollector
}

// NewApplication creates a fully wired application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("build_id", BuildID))

	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	if err := ws.InitOTelMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize WebSocket metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices wires the domain components, the run machinery and
// the service layer in dependency order
func (a *Application) initializeServices() error {
	hub := ws.NewHub(a.Logger)
	a.WebSocketHub = hub

	// One instrument set; the HTTP middleware and the analysis service
	// record against the same meters.
	businessMetrics, err := infrastructure.CreateBusinessMetrics(a.OTelProviders.Meter)
	if err != nil {
		a.Logger.Warn("business metrics unavailable", slog.String("error", err.Error()))
	}
	a.businessMetrics = businessMetrics

	if collector, err := infrastructure.NewSystemMetricsCollector(a.OTelProviders.Meter, 30*time.Second); err != nil {
		a.Logger.Warn("runtime metrics unavailable", slog.String("error", err.Error()))
	} else {
		a.runtimeMetrics = collector
	}

	discovery := files.NewDiscovery(a.Paths.DataDir)
	loader := dataprocessing.NewLoader(a.Logger)
	assembler := report.NewAssembler(a.Logger)
	writer := exporter.NewReportWriter(a.Logger)

	adapter := ws.NewOperationHubAdapter(hub)
	manager := operations.NewManager(adapter, nil, operations.NewConfig())

	stepOptions := &operations.StepOptions{
		Hub:               adapter,
		StatusBroadcaster: manager.GetBroadcaster(),
		EnableProgress:    true,
	}
	steps := []operations.Step{
		operations.NewScanStep(discovery, a.Logger, stepOptions),
		operations.NewLoadStep(loader, a.Logger, stepOptions),
		operations.NewAnalyzeStep(assembler, a.Logger, stepOptions),
		operations.NewExportStep(writer, a.Logger, stepOptions),
	}
	for _, step := range steps {
		if err := manager.RegisterStep(step); err != nil {
			return fmt.Errorf("failed to register step %s: %w", step.ID(), err)
		}
	}

	if tracer, err := operations.NewOperationTracer(a.OTelProviders); err != nil {
		a.Logger.Warn("operation tracing disabled", slog.String("error", err.Error()))
	} else {
		manager.SetTracer(tracer)
	}
	a.Manager = manager

	// One worker: a run claims the whole data directory, so extra
	// workers would only turn queued runs into conflict failures.
	jobStore := operations.NewMemoryJobStore()
	a.JobQueue = operations.NewJobQueue(1, jobStore, manager, a.Logger)

	a.OperationService = services.NewOperationService(a.JobQueue, manager, a.Paths, a.Logger)
	a.AnalysisService = services.NewAnalysisService(discovery, loader, a.Paths, a.businessMetrics, a.Logger)
	a.ReportService = services.NewReportService(discovery, a.Paths, a.Logger)
	a.HealthService = services.NewHealthServiceWithBuildInfo(
		contracts.Version, BuildTime, BuildID, a.Paths, manager, hub, a.Logger)

	a.errorHandler = apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)
	a.validation = customMiddleware.NewValidationMiddleware(a.Logger, a.errorHandler)

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Minimal middleware that won't interfere with the WebSocket
	// upgrade. These are safe because they don't wrap the
	// ResponseWriter.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// WebSocket route before the main group; the full middleware chain
	// would break the connection hijack.
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).HandleFunc("/ws", a.handleWebSocket)

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	// Everything else gets the full middleware chain
	r.Group(func(r chi.Router) {
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
		if err != nil {
			a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}

		r.Use(customMiddleware.BusinessMetricsMiddleware(a.businessMetrics))
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))

		secureHeaders := customMiddleware.DefaultSecureHeaders()
		secureHeaders.DevMode = a.Config.Logging.Development
		r.Use(secureHeaders.Handler)

		r.Use(customMiddleware.CORS(a.getCORSConfig()))

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		// Writes are rejected while a run holds the data directory
		gate := customMiddleware.NewOperationGate(a.Manager, a.Logger)
		if gateMetrics, err := customMiddleware.NewGateMetrics(a.OTelProviders.Meter); err == nil {
			gate.SetMetrics(gateMetrics)
		}
		r.Use(gate.Handler)

		a.setupAPIRoutes(r)
		a.setupHTMLRoutes(r)
	})

	// Prometheus scrape endpoint outside the middleware group
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		// Health and version stay open so probes work on locked-down
		// deployments
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

			healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
			r.Get("/health", healthHandler.HealthCheck)
			r.Get("/health/ready", healthHandler.ReadinessCheck)
			r.Get("/health/live", healthHandler.LivenessCheck)
			r.Get("/health/detailed", healthHandler.DetailedHealth)
			r.Get("/health/stats", healthHandler.SystemStats)
			r.Get("/version", healthHandler.Version)
		})

		r.Group(func(r chi.Router) {
			// Rig-site LAN deployments configure shared keys; every
			// keyed request also gets an audit record.
			if len(a.Config.Security.APIKeys) > 0 {
				r.Use(customMiddleware.APIKeyAuth(a.Logger, a.Config.Security.APIKeys))
				r.Use(customMiddleware.AuditLog(a.Logger))
			}

			// Standard timeout for request/response endpoints
			r.Group(func(r chi.Router) {
				r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

				analysisHandler := handlers.NewAnalysisHandler(a.AnalysisService, a.validation, a.Logger, a.errorHandler)
				analysisHandler.RegisterRoutes(r)

				reportHandler := handlers.NewReportHandler(a.ReportService, a.Logger, a.errorHandler)
				r.Mount("/reports", reportHandler.Routes())

				r.Post("/logs", handlers.NewClientLogHandler(a.Logger).Handle)
			})

			// Runs can outlive the read timeout many times over
			r.Group(func(r chi.Router) {
				r.Use(customMiddleware.Timeout(a.Config.Server.OperationTimeout, a.Logger))

				operationsHandler := handlers.NewOperationsHandler(a.OperationService, a.Logger)
				r.Mount("/operations", operationsHandler.Routes())

				// Shortcut for curl-from-the-rig workflows: submit a
				// full run without the operations envelope.
				r.Post("/analyze", customMiddleware.OperationTraceHandler("analyze", a.handleAnalyzeShortcut))
			})
		})
	})
}

// handleAnalyzeShortcut accepts an optional parameter object and queues
// a full analysis run.
func (a *Application) handleAnalyzeShortcut(w http.ResponseWriter, r *http.Request) {
	var params map[string]interface{}
	if r.ContentLength > 0 {
		if err := render.DecodeJSON(r.Body, &params); err != nil {
			a.errorHandler.HandleError(w, r, apierrors.ErrInvalidRequest)
			return
		}
	}

	submission, err := a.OperationService.Start(r.Context(), services.StartRequest{
		Mode:       operations.ModeFull,
		Parameters: params,
		TraceID:    infrastructure.TraceIDFromContext(r.Context()),
	})
	if err != nil {
		a.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, submission)
}

// setupHTMLRoutes configures the dashboard shell and static assets
func (a *Application) setupHTMLRoutes(r chi.Router) {
	webDir := a.Config.GetWebDir()

	r.Get("/", handlers.ServeIndexPage(webDir))
	r.Get("/status", handlers.ServeStatusPage())

	staticDir := filepath.Join(webDir, "static")
	r.Route("/static", func(r chi.Router) {
		r.Use(chimiddleware.Compress(5))
		r.Handle("/*", http.StripPrefix("/static", http.FileServer(http.Dir(staticDir))))
	})
}

// getCORSConfig returns the CORS policy for browser clients
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	cfg := customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-API-Key",
			"X-CSRF-Token",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}

	if !a.Config.Security.EnableCORS {
		cfg.AllowedOrigins = []string{fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)}
	}

	return cfg
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start launches the background services. The HTTP listener itself is
// driven by Run, which keeps Start usable in tests without binding a
// port.
func (a *Application) Start(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	a.Logger.InfoContext(ctx, "Application paths",
		slog.String("data_dir", a.Paths.DataDir),
		slog.String("uploads_dir", a.Paths.UploadsDir),
		slog.String("reports_dir", a.Paths.ReportsDir),
		slog.String("logs_dir", a.Paths.LogsDir))

	a.WebSocketHub.Start()
	a.JobQueue.Start(ctx)
	if a.runtimeMetrics != nil {
		go a.runtimeMetrics.Start(ctx)
	}

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.JobQueue != nil {
		a.Logger.InfoContext(ctx, "Stopping job queue")
		if err := a.JobQueue.Stop(a.Config.Server.ShutdownTimeout); err != nil {
			a.Logger.ErrorContext(ctx, "Failed to stop job queue gracefully", slog.String("error", err.Error()))
		}
	}

	a.WebSocketHub.Stop()

	if a.runtimeMetrics != nil {
		a.runtimeMetrics.Stop()
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run starts the application and blocks until interrupted
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(gctx, "HTTP server listening",
			slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.Stop(context.Background())
	})

	return g.Wait()
}

// handleWebSocket upgrades the connection and hands it to the hub
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = fmt.Sprintf("ws-%d", time.Now().UnixNano())
	}

	ctx := infrastructure.WithTraceID(r.Context(), reqID)
	a.Logger.InfoContext(ctx, "WebSocket upgrade request",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("origin", r.Header.Get("Origin")))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser clients send no Origin header
			if origin == "" {
				return true
			}
			if origin == "http://"+r.Host || origin == "https://"+r.Host {
				return true
			}
			for _, allowed := range a.Config.Security.AllowedOrigins {
				if origin == allowed {
					return true
				}
			}
			a.Logger.WarnContext(ctx, "WebSocket origin rejected",
				slog.String("origin", origin),
				slog.String("host", r.Host))
			return false
		},
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			a.Logger.ErrorContext(ctx, "WebSocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()))
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.ErrorContext(ctx, "WebSocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("origin", r.Header.Get("Origin")))
		return
	}

	client := ws.NewClientWithTrace(a.WebSocketHub, conn, reqID, a.Logger)
	a.WebSocketHub.Register(client)

	a.Logger.InfoContext(ctx, "WebSocket client connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("request_id", reqID))

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				a.Logger.ErrorContext(ctx, "WebSocket write pump panic",
					slog.Any("panic", rec),
					slog.String("request_id", reqID))
			}
		}()
		client.WritePump()
	}()

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				a.Logger.ErrorContext(ctx, "WebSocket read pump panic",
					slog.Any("panic", rec),
					slog.String("request_id", reqID))
			}
		}()
		client.ReadPump()
	}()
}

// performStartupHealthCheck verifies the critical directories are
// writable before the first request arrives
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []string

	directories := map[string]string{
		"Data":    a.Paths.DataDir,
		"Uploads": a.Paths.UploadsDir,
		"Reports": a.Paths.ReportsDir,
		"Logs":    a.Paths.LogsDir,
	}

	for name, dir := range directories {
		testFile := filepath.Join(dir, ".write_test")
		if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s directory not writable: %s", name, dir))
		} else {
			os.Remove(testFile)
		}
	}

	if !config.FileExists(a.Paths.WebDir) {
		warnings = append(warnings, fmt.Sprintf("Web directory not found: %s", a.Paths.WebDir))
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}
