package services

import "errors"

// Service errors
var (
	// Report errors
	ErrReportNotFound   = errors.New("report not found")
	ErrManifestNotFound = errors.New("no run manifest recorded yet")

	// File errors
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrInvalidPath     = errors.New("invalid file path")

	// Operation errors
	ErrOperationNotFound = errors.New("operation not found")
	ErrJobNotFound       = errors.New("job not found")

	// General errors
	ErrInvalidInput = errors.New("invalid input")
)
