package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "groutflow/internal/errors"
	"groutflow/internal/middleware"
	"groutflow/internal/services"
)

// ReportHandler handles generated-report HTTP requests with RFC 7807
// compliance
type ReportHandler struct {
	service      *services.ReportService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewReportHandler creates a new report handler
func NewReportHandler(service *services.ReportService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ReportHandler {
	return &ReportHandler{
		service:      service,
		logger:       logger.With(slog.String("handler", "reports")),
		errorHandler: errorHandler,
	}
}

// Routes returns the report routes
func (h *ReportHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.GetReports)
	r.Get("/manifest", h.GetManifest)
	r.Get("/download/{filename}", h.DownloadReport)

	return r
}

// GetReports handles GET /api/reports
func (h *ReportHandler) GetReports(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.InfoContext(r.Context(), "listing reports",
		slog.String("request_id", reqID))

	reports, err := h.service.Reports(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list reports",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   reports,
		"count":  len(reports),
	})
}

// GetManifest handles GET /api/reports/manifest
func (h *ReportHandler) GetManifest(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	manifest, err := h.service.Manifest(r.Context())
	if err != nil {
		if errors.Is(err, services.ErrManifestNotFound) {
			h.errorHandler.HandleError(w, r, apierrors.New(
				http.StatusNotFound,
				"NO_MANIFEST",
				"No analysis run has been recorded yet",
			))
			return
		}

		h.logger.ErrorContext(r.Context(), "failed to load run manifest",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   manifest,
	})
}

// DownloadReport handles GET /api/reports/download/{filename}
func (h *ReportHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	filename := chi.URLParam(r, "filename")

	// Encoded separators (%2F) survive routing inside the one segment;
	// decode before the service's path guard sees them
	decoded, err := url.QueryUnescape(filename)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusBadRequest,
			"INVALID_PATH",
			"Invalid file path encoding",
			map[string]interface{}{
				"filename": filename,
			},
		))
		return
	}

	h.logger.InfoContext(r.Context(), "downloading report",
		slog.String("request_id", reqID),
		slog.String("filename", decoded))

	if err := h.service.Download(r.Context(), w, r, decoded); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to download report",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("filename", decoded))

		if !isResponseWritten(w) {
			switch {
			case errors.Is(err, services.ErrReportNotFound):
				h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
					http.StatusNotFound,
					"REPORT_NOT_FOUND",
					fmt.Sprintf("Report '%s' not found", decoded),
					map[string]interface{}{
						"filename": decoded,
					},
				))

			case errors.Is(err, services.ErrInvalidPath):
				h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
					http.StatusBadRequest,
					"INVALID_PATH",
					"Report downloads cannot leave the reports directory",
					map[string]interface{}{
						"filename": decoded,
					},
				))

			default:
				h.errorHandler.HandleError(w, r, err)
			}
		}
	}
}

// isResponseWritten checks if a response has already been written
func isResponseWritten(w http.ResponseWriter) bool {
	if ww, ok := w.(interface{ Status() int }); ok {
		return ww.Status() != 0
	}
	return false
}
