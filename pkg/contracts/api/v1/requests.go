// Package api contains the HTTP contract definitions for the grout
// injection analysis service. Version v1 represents the current stable
// API version.
package api

// Common request parameters

// PaginationRequest represents common pagination parameters
type PaginationRequest struct {
	Page     int    `json:"page" query:"page" validate:"min=1"`
	PageSize int    `json:"page_size" query:"page_size" validate:"min=1,max=100"`
	Sort     string `json:"sort" query:"sort" validate:"omitempty,oneof=asc desc"`
	SortBy   string `json:"sort_by" query:"sort_by"`
}

// Operation API Requests

// OperationStartRequest represents a request to start an analysis run.
// An empty step runs the whole scan/load/analyze/export chain; naming a
// step runs just that one against the data earlier runs left behind.
type OperationStartRequest struct {
	Mode       string                 `json:"mode,omitempty" validate:"omitempty,oneof=full single"`
	Step       string                 `json:"step,omitempty" validate:"omitempty,oneof=scan load analyze export"`
	TargetFile string                 `json:"target_file,omitempty" validate:"omitempty,max=255"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// OperationStopRequest represents a request to cancel a run
type OperationStopRequest struct {
	OperationID string `json:"operation_id" param:"id" validate:"required"`
}

// OperationListRequest represents a request to list queue history
type OperationListRequest struct {
	PaginationRequest
	Status string `json:"status" query:"status" validate:"omitempty,oneof=pending running completed failed cancelled"`
	Step   string `json:"step" query:"step" validate:"omitempty,oneof=scan load analyze export"`
}

// Chart API Requests

// ChartDataRequest represents the query parameters behind a chart view.
// Stage accepts both the bare number and the S-prefixed label the file
// names carry.
type ChartDataRequest struct {
	HoleID string `json:"hole" query:"hole" validate:"required,alphanum,max=32"`
	Stage  string `json:"stage" query:"stage" validate:"required,max=8"`
	Metric string `json:"metric" query:"metric" validate:"omitempty,oneof=flow effPressure Lugeon vmarshGrout"`
}

// Report API Requests

// ReportDownloadRequest represents a request to download a generated
// report CSV by name
type ReportDownloadRequest struct {
	Filename string `json:"filename" param:"filename" validate:"required,max=255"`
}

// WebSocket API Requests

// WebSocketSubscribeRequest represents a channel subscription sent over
// an established socket
type WebSocketSubscribeRequest struct {
	Channels []string `json:"channels" validate:"required,min=1,dive,oneof=operations reports connection"`
	ClientID string   `json:"client_id,omitempty"`
}

// Health API Requests

// HealthCheckRequest represents optional health check parameters
type HealthCheckRequest struct {
	Verbose bool     `json:"verbose" query:"verbose"`
	Include []string `json:"include,omitempty" query:"include" validate:"omitempty,dive,oneof=websocket operations data"`
}
