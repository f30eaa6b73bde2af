package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "groutflow/internal/errors"
	"groutflow/internal/infrastructure"
	"groutflow/internal/middleware"
	"groutflow/internal/services"
	api "groutflow/pkg/contracts/api/v1"
	"groutflow/pkg/contracts/domain"
)

// maxUploadBytes caps a single spreadsheet upload. Field logs run a few
// megabytes; anything near this limit is not an injection log.
const maxUploadBytes = 100 << 20

// AnalysisHandler handles selection, chart and upload HTTP requests
// with RFC 7807 compliance
type AnalysisHandler struct {
	service      *services.AnalysisService
	validation   *middleware.ValidationMiddleware
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(service *services.AnalysisService, validation *middleware.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AnalysisHandler {
	return &AnalysisHandler{
		service:      service,
		validation:   validation,
		logger:       logger.With(slog.String("handler", "analysis")),
		errorHandler: errorHandler,
	}
}

// RegisterRoutes attaches the analysis endpoints. They span several
// top-level API paths, so this registers on the parent router instead
// of mounting a subtree.
func (h *AnalysisHandler) RegisterRoutes(r chi.Router) {
	r.Get("/selections", h.GetSelections)
	r.Route("/charts/{view}", func(r chi.Router) {
		r.Use(h.ChartViewCtx)
		r.Get("/", h.GetChart)
	})
	r.Post("/upload", h.Upload)
}

// ChartViewCtx rejects unknown chart views before any file work happens
func (h *AnalysisHandler) ChartViewCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch chi.URLParam(r, "view") {
		case domain.ChartViewTimeseries, domain.ChartViewScatter, domain.ChartViewHistogram, domain.ChartViewBox:
			next.ServeHTTP(w, r)
		default:
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("view",
				"View must be one of: timeseries, scatter, histogram, box"))
		}
	})
}

// GetSelections handles GET /api/selections
func (h *AnalysisHandler) GetSelections(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.InfoContext(r.Context(), "listing selections",
		slog.String("request_id", reqID))

	selections, err := h.service.Selections(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list selections",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   selections,
		"count":  len(selections),
	})
}

// GetChart handles GET /api/charts/{view}
func (h *AnalysisHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	view := chi.URLParam(r, "view")

	query := r.URL.Query()
	req := api.ChartDataRequest{
		HoleID: query.Get("hole"),
		Stage:  query.Get("stage"),
		Metric: query.Get("metric"),
	}
	if err := h.validation.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "building chart",
		slog.String("request_id", reqID),
		slog.String("view", view),
		slog.String("hole", req.HoleID),
		slog.String("stage", req.Stage),
		slog.String("metric", req.Metric))

	chart, err := h.service.Chart(r.Context(), domain.ChartRequest{
		HoleID: req.HoleID,
		Stage:  req.Stage,
		View:   view,
		Metric: req.Metric,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build chart",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("view", view))

		if errors.Is(err, services.ErrInvalidInput) {
			h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}

		traceID := infrastructure.TraceIDFromContext(r.Context())
		render.Render(w, r, apierrors.MapAnalysisError(err, traceID))
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   chart,
		"view":   view,
	})
}

// Upload handles POST /api/upload
func (h *AnalysisHandler) Upload(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		h.logger.WarnContext(r.Context(), "upload rejected, no file field",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		h.errorHandler.HandleError(w, r, apierrors.New(
			http.StatusBadRequest,
			"MISSING_FILE",
			"Multipart field 'file' is required",
		))
		return
	}
	defer file.Close()

	h.logger.InfoContext(r.Context(), "receiving upload",
		slog.String("request_id", reqID),
		slog.String("filename", header.Filename),
		slog.Int64("declared_size", header.Size))

	selection, written, err := h.service.SaveUpload(r.Context(), header.Filename, file)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to save upload",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("filename", header.Filename))

		if errors.Is(err, services.ErrInvalidFileType) {
			h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusBadRequest,
				"INVALID_FILE_TYPE",
				"Only .xlsx, .xlsm and .csv injection logs are accepted",
				map[string]interface{}{
					"filename": header.Filename,
				},
			))
			return
		}

		traceID := infrastructure.TraceIDFromContext(r.Context())
		render.Render(w, r, apierrors.MapAnalysisError(err, traceID))
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status":    "success",
		"selection": selection,
		"bytes":     written,
	})
}
