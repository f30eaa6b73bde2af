// Command web runs the grout injection analysis service: the REST API,
// the WebSocket progress stream and the dashboard static files.
package main

import (
	"log/slog"
	"os"

	"groutflow/internal/app"
)

func main() {
	application, err := app.NewApplication()
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
